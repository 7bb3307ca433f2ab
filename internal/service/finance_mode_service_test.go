package service

import (
	"context"
	"testing"

	"github.com/prohmpiriya/eventdesk/internal/domain"
	"github.com/prohmpiriya/eventdesk/internal/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultGST(tenantID string) *domain.TaxStructure {
	ts, err := domain.NewTaxStructure(tenantID, "GST 18%", []domain.TaxComponent{
		{Name: "CGST", RateBps: 900},
		{Name: "SGST", RateBps: 900},
	}, false)
	if err != nil {
		panic(err)
	}
	ts.IsDefault = true
	return ts
}

func TestFinanceModeService_Migrate(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(s *memStore)
		dryRun     bool
		wantErr    error
		wantFailed []string
		wantMode   domain.FinanceMode
	}{
		{
			name: "all checks pass",
			setup: func(s *memStore) {
				s.putTax(defaultGST("tenant-1"))
			},
			wantMode: domain.FinanceModeTenant,
		},
		{
			name: "dry run changes nothing",
			setup: func(s *memStore) {
				s.putTax(defaultGST("tenant-1"))
			},
			dryRun:   true,
			wantMode: domain.FinanceModeLegacy,
		},
		{
			name:       "no default tax structure",
			setup:      func(s *memStore) {},
			wantErr:    ErrMigrationBlocked,
			wantFailed: []string{CheckDefaultTaxStructure},
			wantMode:   domain.FinanceModeLegacy,
		},
		{
			name: "inactive default does not count",
			setup: func(s *memStore) {
				ts := defaultGST("tenant-1")
				ts.IsActive = false
				s.putTax(ts)
			},
			wantErr:    ErrMigrationBlocked,
			wantFailed: []string{CheckDefaultTaxStructure},
			wantMode:   domain.FinanceModeLegacy,
		},
		{
			name: "drafts and pending payments block",
			setup: func(s *memStore) {
				s.putTax(defaultGST("tenant-1"))
				draft, _ := domain.NewInvoice("tenant-1", domain.FinanceModeLegacy, domain.RecipientVendor, "vendor-1", "USD",
					[]domain.LineItem{{Description: "Booth", Quantity: 1, UnitPrice: 1000}}, nil)
				s.putInvoice(draft)
				pending, _ := domain.NewPaymentRecord("tenant-1", domain.GatewayStripe, "pi_pending", 1000, "USD")
				s.putPayment(pending)
			},
			wantErr:    ErrMigrationBlocked,
			wantFailed: []string{CheckNoDraftInvoices, CheckNoPendingPayments},
			wantMode:   domain.FinanceModeLegacy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			store.putTenant(legacyTenant("tenant-1"))
			tt.setup(store)
			pub := &recordingPublisher{}
			svc := NewFinanceModeService(store.repos(), &passTx{}, pub, Config{})

			report, err := svc.Migrate(context.Background(), "tenant-1", "user-1", tt.dryRun)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				require.NotNil(t, report)
				assert.Equal(t, tt.wantFailed, report.FailedChecks())
				assert.False(t, report.Migrated)
				assert.Empty(t, pub.types())
			} else {
				require.NoError(t, err)
				assert.Len(t, report.Checks, 4)
				assert.True(t, report.Passed())
				assert.Equal(t, tt.dryRun, report.DryRun)
				assert.Equal(t, !tt.dryRun, report.Migrated)
			}

			tenant := store.tenant("tenant-1")
			assert.Equal(t, tt.wantMode, tenant.FinanceMode)

			history, err := svc.History(context.Background(), "tenant-1")
			require.NoError(t, err)
			if tt.wantMode == domain.FinanceModeTenant {
				require.Len(t, history, 1)
				assert.Equal(t, domain.FinanceModeLegacy, history[0].FromMode)
				assert.Equal(t, domain.FinanceModeTenant, history[0].ToMode)
				assert.Equal(t, "user-1", history[0].ActorID)
				assert.NotNil(t, tenant.FinanceModeChangedAt)
				assert.Equal(t, []string{dto.EventTypeModeChanged}, pub.types())
			} else {
				assert.Empty(t, history)
			}
		})
	}
}

func TestFinanceModeService_MigrateIsOneWay(t *testing.T) {
	store := newMemStore()
	store.putTenant(tenantModeTenant("tenant-1"))
	svc := NewFinanceModeService(store.repos(), &passTx{}, nil, Config{})

	_, err := svc.Migrate(context.Background(), "tenant-1", "user-1", false)
	assert.ErrorIs(t, err, domain.ErrFinanceModeUnchanged)

	_, err = svc.Migrate(context.Background(), "missing", "user-1", true)
	assert.ErrorIs(t, err, ErrTenantNotFound)
}

func TestFinanceModeService_Get(t *testing.T) {
	store := newMemStore()
	store.putTenant(legacyTenant("tenant-1"))
	svc := NewFinanceModeService(store.repos(), &passTx{}, nil, Config{})

	resp, err := svc.Get(context.Background(), "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, domain.FinanceModeLegacy, resp.Mode)
	assert.Nil(t, resp.ChangedAt)
}
