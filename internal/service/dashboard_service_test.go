package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prohmpiriya/eventdesk/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDashboardFixture(t *testing.T, now time.Time) (*memStore, *dashboardService) {
	t.Helper()
	store := newMemStore()
	store.putTenant(legacyTenant("tenant-1"))
	store.putTenant(legacyTenant("tenant-2"))
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		starts := now.Add(time.Duration(i-1) * 24 * time.Hour)
		require.NoError(t, memEvents{store}.Create(ctx, &domain.Event{
			ID: fmt.Sprintf("event-%d", i), TenantID: "tenant-1", Slug: fmt.Sprintf("day-%d", i),
			Name: "Day", Currency: "USD", StartsAt: starts, EndsAt: starts.Add(time.Hour),
			Status: domain.EventStatusPublished,
		}))
	}
	require.NoError(t, memEvents{store}.Create(ctx, &domain.Event{
		ID: "event-other", TenantID: "tenant-2", Slug: "other", Currency: "USD",
		StartsAt: now.Add(time.Hour), EndsAt: now.Add(2 * time.Hour),
	}))

	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	for i, created := range []time.Time{midnight, now.Add(-time.Minute), midnight.Add(-time.Second)} {
		reg := pendingRegistration(fmt.Sprintf("reg-%d", i), "tenant-1", 2500)
		reg.CreatedAt = created
		store.putRegistration(reg)
	}

	store.putPayment(&domain.PaymentRecord{ID: "pay-1", TenantID: "tenant-1", Gateway: domain.GatewayStripe,
		GatewayPaymentID: "pi_1", Amount: 2500, Status: domain.PaymentStatusSucceeded, CreatedAt: now.Add(-time.Hour)})
	store.putPayment(&domain.PaymentRecord{ID: "pay-2", TenantID: "tenant-2", Gateway: domain.GatewayStripe,
		GatewayPaymentID: "pi_2", Amount: 900, Status: domain.PaymentStatusSucceeded, CreatedAt: now})

	store.putInvoice(&domain.Invoice{ID: "inv-1", TenantID: "tenant-1", Status: domain.InvoiceStatusIssued})
	store.putInvoice(&domain.Invoice{ID: "inv-2", TenantID: "tenant-1", Status: domain.InvoiceStatusPaid})
	store.putInvoice(&domain.Invoice{ID: "inv-3", TenantID: "tenant-1", Status: domain.InvoiceStatusPaid})

	for _, l := range []struct {
		id        string
		processed bool
	}{{"evt_stuck", false}, {"evt_done", true}} {
		entry := domain.NewWebhookLog(domain.GatewayStripe, l.id, "payment_intent.succeeded", []byte(`{}`))
		entry.TenantID = "tenant-1"
		if l.processed {
			entry.MarkProcessed("payment succeeded", now)
		}
		_, _, err := memWebhookLogs{store}.Record(ctx, entry)
		require.NoError(t, err)
	}

	return store, &dashboardService{repos: store.repos(), now: func() time.Time { return now }}
}

func TestDashboardService_Summary(t *testing.T) {
	now := time.Date(2026, 10, 17, 15, 0, 0, 0, time.UTC)
	_, svc := newDashboardFixture(t, now)

	sum, err := svc.Summary(context.Background(), "tenant-1")
	require.NoError(t, err)

	assert.Equal(t, "tenant-1", sum.Tenant.ID)
	assert.Equal(t, int64(1), sum.Invoices.CountsByStatus[domain.InvoiceStatusIssued])
	assert.Equal(t, int64(2), sum.Invoices.CountsByStatus[domain.InvoiceStatusPaid])

	require.Len(t, sum.RecentPayments, 1)
	assert.Equal(t, "pay-1", sum.RecentPayments[0].ID)

	require.Len(t, sum.UnprocessedHooks, 1)
	assert.Equal(t, "evt_stuck", sum.UnprocessedHooks[0].EventID)

	// yesterday's event has started; the list is capped at five, soonest first
	require.Len(t, sum.UpcomingEvents, 5)
	assert.Equal(t, "event-2", sum.UpcomingEvents[0].ID)
	assert.Equal(t, "event-6", sum.UpcomingEvents[4].ID)

	assert.Equal(t, int64(2), sum.RegistrationsToday)
}

func TestDashboardService_SummaryErrors(t *testing.T) {
	now := time.Date(2026, 10, 17, 15, 0, 0, 0, time.UTC)
	errDown := errors.New("connection refused")

	tests := []struct {
		name     string
		tenantID string
		failOp   string
		wantErr  error
	}{
		{"unknown tenant", "tenant-9", "", ErrTenantNotFound},
		{"tenant lookup fails", "tenant-1", "tenants.GetByID", errDown},
		{"invoice totals fail", "tenant-1", "invoices.Summary", errDown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, svc := newDashboardFixture(t, now)
			if tt.failOp != "" {
				store.errs[tt.failOp] = errDown
			}

			sum, err := svc.Summary(context.Background(), tt.tenantID)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, sum)
		})
	}
}
