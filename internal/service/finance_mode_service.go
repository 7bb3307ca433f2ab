package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prohmpiriya/eventdesk/internal/domain"
	"github.com/prohmpiriya/eventdesk/internal/dto"
	"github.com/prohmpiriya/eventdesk/pkg/logger"
	"go.uber.org/zap"
)

// Names of the finance mode migration checks
const (
	CheckDefaultTaxStructure = "default_tax_structure"
	CheckNoDraftInvoices     = "no_draft_invoices"
	CheckNoPendingPayments   = "no_pending_payments"
	CheckInvoicePrefix       = "invoice_prefix"
)

// FinanceModeService defines the interface for the legacy to tenant finance migration
type FinanceModeService interface {
	// Get returns the tenant's current finance mode
	Get(ctx context.Context, tenantID string) (*dto.FinanceModeResponse, error)
	// Migrate moves the tenant from legacy to tenant mode once every check passes.
	// A dry run only evaluates the checks.
	Migrate(ctx context.Context, tenantID, actorID string, dryRun bool) (*dto.MigrationReport, error)
	// History lists completed migrations, newest first
	History(ctx context.Context, tenantID string) ([]*domain.FinanceModeMigration, error)
}

type financeModeService struct {
	ledger    *ledger
	tx        TxManager
	publisher FinancePublisher
	now       func() time.Time
}

// NewFinanceModeService creates a new FinanceModeService
func NewFinanceModeService(repos Repositories, tx TxManager, publisher FinancePublisher, cfg Config) FinanceModeService {
	if publisher == nil {
		publisher = NopFinancePublisher{}
	}
	return &financeModeService{
		ledger:    newLedger(repos, cfg),
		tx:        tx,
		publisher: publisher,
		now:       time.Now,
	}
}

func (s *financeModeService) Get(ctx context.Context, tenantID string) (*dto.FinanceModeResponse, error) {
	tenant, err := loadTenant(ctx, s.ledger.repos.Tenants, tenantID)
	if err != nil {
		return nil, err
	}
	return &dto.FinanceModeResponse{
		TenantID:  tenant.ID,
		Mode:      tenant.FinanceMode,
		ChangedAt: tenant.FinanceModeChangedAt,
	}, nil
}

func (s *financeModeService) Migrate(ctx context.Context, tenantID, actorID string, dryRun bool) (*dto.MigrationReport, error) {
	tenant, err := loadTenant(ctx, s.ledger.repos.Tenants, tenantID)
	if err != nil {
		return nil, err
	}
	if err := tenant.CanMigrateTo(domain.FinanceModeTenant); err != nil {
		return nil, err
	}

	report := &dto.MigrationReport{
		TenantID: tenant.ID,
		FromMode: tenant.FinanceMode,
		ToMode:   domain.FinanceModeTenant,
		DryRun:   dryRun,
	}
	if dryRun {
		if report.Checks, err = s.checks(ctx, tenant); err != nil {
			return nil, err
		}
		return report, nil
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		// Re-read under the row lock so concurrent finance writes cannot slip past the checks
		locked, err := s.ledger.repos.Tenants.GetByIDForUpdate(ctx, tenantID)
		if err != nil {
			return err
		}
		if locked == nil {
			return ErrTenantNotFound
		}
		if err := locked.CanMigrateTo(domain.FinanceModeTenant); err != nil {
			return err
		}
		if report.Checks, err = s.checks(ctx, locked); err != nil {
			return err
		}
		if !report.Passed() {
			return fmt.Errorf("%w: %s", ErrMigrationBlocked, strings.Join(report.FailedChecks(), ", "))
		}

		at := s.now()
		from := locked.FinanceMode
		if err := locked.MigrateFinanceMode(domain.FinanceModeTenant, at); err != nil {
			return err
		}
		if err := s.ledger.repos.Tenants.UpdateFinanceMode(ctx, locked); err != nil {
			return err
		}

		migration := &domain.FinanceModeMigration{
			ID:        uuid.New().String(),
			TenantID:  locked.ID,
			FromMode:  from,
			ToMode:    locked.FinanceMode,
			ActorID:   actorID,
			CreatedAt: at,
		}
		for _, c := range report.Checks {
			migration.Checks = append(migration.Checks, c.Name)
		}
		if err := s.ledger.repos.Tenants.CreateFinanceModeMigration(ctx, migration); err != nil {
			return err
		}
		report.Migration = migration
		return nil
	})
	if err != nil {
		return report, err
	}

	report.Migrated = true
	evt := &dto.FinanceEvent{
		EventType:   dto.EventTypeModeChanged,
		TenantID:    tenant.ID,
		FinanceMode: string(domain.FinanceModeTenant),
		Message:     fmt.Sprintf("%s -> %s", report.FromMode, report.ToMode),
		Timestamp:   s.now().UTC(),
	}
	if err := s.publisher.PublishFinanceEvent(ctx, evt); err != nil {
		logger.WarnCtx(ctx, "finance mode event publish failed", zap.String("tenant_id", tenant.ID), zap.Error(err))
	}
	logger.InfoCtx(ctx, "tenant finance mode migrated",
		zap.String("tenant_id", tenant.ID),
		zap.String("actor_id", actorID),
		zap.String("from", string(report.FromMode)),
		zap.String("to", string(report.ToMode)),
	)
	return report, nil
}

// checks evaluates every migration precondition so callers see all failures at once
func (s *financeModeService) checks(ctx context.Context, tenant *domain.Tenant) ([]dto.FinanceModeCheck, error) {
	repos := s.ledger.repos
	var out []dto.FinanceModeCheck

	ts, err := repos.Taxes.GetDefault(ctx, tenant.ID)
	if err != nil {
		return nil, err
	}
	c := dto.FinanceModeCheck{Name: CheckDefaultTaxStructure, Passed: ts != nil && ts.IsActive}
	if c.Passed {
		c.Message = ts.Name
	} else {
		c.Message = ErrNoDefaultTaxStructure.Error()
	}
	out = append(out, c)

	drafts, err := repos.Invoices.CountByStatus(ctx, tenant.ID, domain.InvoiceStatusDraft)
	if err != nil {
		return nil, err
	}
	c = dto.FinanceModeCheck{Name: CheckNoDraftInvoices, Passed: drafts == 0}
	if !c.Passed {
		c.Message = fmt.Sprintf("%d draft invoice(s): %s", drafts, ErrDraftInvoicesPending)
	}
	out = append(out, c)

	pending, err := repos.Payments.CountByStatus(ctx, tenant.ID, domain.PaymentStatusPending)
	if err != nil {
		return nil, err
	}
	c = dto.FinanceModeCheck{Name: CheckNoPendingPayments, Passed: pending == 0}
	if !c.Passed {
		c.Message = fmt.Sprintf("%d pending payment(s): %s", pending, ErrPendingPayments)
	}
	out = append(out, c)

	prefix := tenant.InvoicePrefix
	if prefix == "" {
		prefix = domain.DefaultInvoicePrefix(tenant.Slug)
	}
	c = dto.FinanceModeCheck{Name: CheckInvoicePrefix, Passed: prefix != "", Message: prefix}
	if !c.Passed {
		c.Message = "tenant has no invoice prefix"
	}
	out = append(out, c)

	return out, nil
}

func (s *financeModeService) History(ctx context.Context, tenantID string) ([]*domain.FinanceModeMigration, error) {
	if _, err := loadTenant(ctx, s.ledger.repos.Tenants, tenantID); err != nil {
		return nil, err
	}
	return s.ledger.repos.Tenants.ListFinanceModeMigrations(ctx, tenantID)
}
