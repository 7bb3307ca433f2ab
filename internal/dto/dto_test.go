package dto

import (
	"testing"
	"time"

	"github.com/prohmpiriya/eventdesk/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestPagination_Normalize(t *testing.T) {
	tests := []struct {
		name       string
		in         Pagination
		wantPage   int
		wantLimit  int
		wantOffset int
	}{
		{name: "defaults", in: Pagination{}, wantPage: 1, wantLimit: 20, wantOffset: 0},
		{name: "third page", in: Pagination{Page: 3, Limit: 10}, wantPage: 3, wantLimit: 10, wantOffset: 20},
		{name: "limit capped", in: Pagination{Page: 2, Limit: 500}, wantPage: 2, wantLimit: 100, wantOffset: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.in
			p.Normalize()
			assert.Equal(t, tt.wantPage, p.Page)
			assert.Equal(t, tt.wantLimit, p.Limit)
			assert.Equal(t, tt.wantOffset, p.Offset())
		})
	}
}

func TestFinanceEvent_KeyAndTopic(t *testing.T) {
	tests := []struct {
		name      string
		event     FinanceEvent
		wantKey   string
		wantTopic string
	}{
		{
			name:      "payment with invoice",
			event:     FinanceEvent{EventType: EventTypePaymentSucceeded, TenantID: "t", PaymentID: "p", InvoiceID: "i"},
			wantKey:   "i",
			wantTopic: TopicPaymentSucceeded,
		},
		{
			name:      "failed payment without invoice",
			event:     FinanceEvent{EventType: EventTypePaymentFailed, TenantID: "t", PaymentID: "p"},
			wantKey:   "p",
			wantTopic: TopicPaymentFailed,
		},
		{
			name:      "dispute closed",
			event:     FinanceEvent{EventType: EventTypeDisputeClosed, TenantID: "t"},
			wantKey:   "t",
			wantTopic: TopicDisputeUpdated,
		},
		{
			name:      "mode change",
			event:     FinanceEvent{EventType: EventTypeModeChanged, TenantID: "t"},
			wantKey:   "t",
			wantTopic: TopicFinanceModeChanged,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantKey, tt.event.Key())
			assert.Equal(t, tt.wantTopic, tt.event.Topic())
		})
	}
}

func TestMigrationReport(t *testing.T) {
	r := &MigrationReport{Checks: []FinanceModeCheck{
		{Name: "default_tax_structure", Passed: true},
		{Name: "no_draft_invoices", Passed: false},
		{Name: "no_pending_payments", Passed: false},
	}}
	assert.False(t, r.Passed())
	assert.Equal(t, []string{"no_draft_invoices", "no_pending_payments"}, r.FailedChecks())

	r.Checks = r.Checks[:1]
	assert.True(t, r.Passed())
	assert.Nil(t, r.FailedChecks())
}

func TestFromTenant(t *testing.T) {
	changed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	resp := FromTenant(&domain.Tenant{
		ID:                   "t1",
		Slug:                 "acme",
		FinanceMode:          domain.FinanceModeTenant,
		FinanceModeChangedAt: &changed,
	})
	assert.Equal(t, "2026-01-02T03:04:05Z", resp.FinanceModeChangedAt)
	assert.Equal(t, domain.FinanceModeTenant, resp.FinanceMode)

	req := CreateTenantRequest{Slug: "Acme"}
	ok, _ := req.ValidateSlug()
	assert.False(t, ok)

	upd := UpdateTenantRequest{}
	ok, _ = upd.Validate()
	assert.False(t, ok)
}

func TestToLineItems(t *testing.T) {
	items := ToLineItems([]LineItemRequest{{Description: "Booth", Quantity: 2, UnitPrice: 300}})
	assert.Equal(t, []domain.LineItem{{Description: "Booth", Quantity: 2, UnitPrice: 300}}, items)
}
