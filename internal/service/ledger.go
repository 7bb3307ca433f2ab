package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prohmpiriya/eventdesk/internal/domain"
	"github.com/prohmpiriya/eventdesk/internal/dto"
	"github.com/prohmpiriya/eventdesk/internal/notification"
	"github.com/prohmpiriya/eventdesk/internal/repository"
	"github.com/prohmpiriya/eventdesk/pkg/logger"
	"github.com/prohmpiriya/eventdesk/pkg/money"
	"go.uber.org/zap"
)

// Repositories groups the data access the finance services share
type Repositories struct {
	Tenants       repository.TenantRepository
	Users         repository.UserRepository
	Events        repository.EventRepository
	Registrations repository.RegistrationRepository
	Seats         repository.SeatRepository
	Taxes         repository.TaxStructureRepository
	Invoices      repository.InvoiceRepository
	Payments      repository.PaymentRepository
	WebhookLogs   repository.WebhookLogRepository
	Partners      repository.PartnerRepository
	FloorPlans    repository.FloorPlanRepository
	Signatures    repository.SignatureRepository
}

// ledger holds the invoice, payment and registration bookkeeping used by
// manual finance operations and webhook reconciliation alike
type ledger struct {
	repos Repositories
	cfg   Config
}

func newLedger(repos Repositories, cfg Config) *ledger {
	return &ledger{repos: repos, cfg: cfg.withDefaults()}
}

// taxFor picks the tax structure for a new invoice in the given mode
func (l *ledger) taxFor(ctx context.Context, tenant *domain.Tenant, mode domain.FinanceMode, taxStructureID string) (*domain.TaxStructure, error) {
	if mode == domain.FinanceModeLegacy {
		if taxStructureID != "" {
			return nil, fmt.Errorf("%w: tax structures apply in tenant mode only", ErrFinanceModeMismatch)
		}
		return domain.LegacyTaxStructure(tenant.LegacyTaxRateBps), nil
	}

	var ts *domain.TaxStructure
	var err error
	if taxStructureID != "" {
		ts, err = l.repos.Taxes.GetByID(ctx, tenant.ID, taxStructureID)
		if err == nil && ts == nil {
			return nil, ErrTaxStructureNotFound
		}
	} else {
		ts, err = l.repos.Taxes.GetDefault(ctx, tenant.ID)
		if err == nil && ts == nil {
			return nil, ErrNoDefaultTaxStructure
		}
	}
	if err != nil {
		return nil, err
	}
	if !ts.IsActive {
		return nil, ErrTaxStructureNotFound
	}
	return ts, nil
}

// nextNumber allocates an invoice number for the invoice's finance mode
func (l *ledger) nextNumber(ctx context.Context, tenant *domain.Tenant, mode domain.FinanceMode) (string, error) {
	if mode == domain.FinanceModeLegacy {
		seq, err := l.repos.Invoices.NextLegacyNumber(ctx)
		if err != nil {
			return "", fmt.Errorf("legacy invoice sequence: %w", err)
		}
		return domain.LegacyInvoiceNumber(l.cfg.LegacyInvoicePrefix, seq), nil
	}

	year := time.Now().UTC().Year()
	seq, err := l.repos.Invoices.NextTenantSequence(ctx, tenant.ID, year)
	if err != nil {
		return "", fmt.Errorf("tenant invoice sequence: %w", err)
	}
	prefix := tenant.InvoicePrefix
	if prefix == "" {
		prefix = domain.DefaultInvoicePrefix(tenant.Slug)
	}
	return domain.TenantInvoiceNumber(prefix, year, seq), nil
}

// issue numbers and issues a draft invoice. dueAt defaults to the configured term.
func (l *ledger) issue(ctx context.Context, tenant *domain.Tenant, inv *domain.Invoice, dueAt *time.Time) error {
	number, err := l.nextNumber(ctx, tenant, inv.FinanceMode)
	if err != nil {
		return err
	}
	if dueAt == nil {
		due := time.Now().AddDate(0, 0, l.cfg.InvoiceDueDays)
		dueAt = &due
	}
	return inv.Issue(number, dueAt)
}

// lockInvoice loads an invoice for update. tenantID may be empty.
func (l *ledger) lockInvoice(ctx context.Context, tenantID, id string) (*domain.Invoice, error) {
	inv, err := l.repos.Invoices.GetByIDForUpdate(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, ErrInvoiceNotFound
	}
	return inv, nil
}

// registrationFor returns the registration a payment or invoice belongs to, if any
func registrationFor(rec *domain.PaymentRecord, inv *domain.Invoice) string {
	if rec != nil && rec.RegistrationID != "" {
		return rec.RegistrationID
	}
	if inv != nil && inv.RecipientType == domain.RecipientRegistration {
		return inv.RecipientID
	}
	return ""
}

// confirmRegistration confirms a registration after payment and books its seats.
// Money has already been collected, so a registration that can no longer be
// confirmed is logged rather than failing the payment.
func (l *ledger) confirmRegistration(ctx context.Context, id string) (*domain.Registration, error) {
	reg, err := l.repos.Registrations.GetByIDForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if reg == nil {
		return nil, ErrRegistrationNotFound
	}

	wasConfirmed := reg.Status == domain.RegistrationStatusConfirmed
	if err := reg.Confirm(); err != nil {
		logger.WarnCtx(ctx, "paid registration cannot be confirmed",
			zap.String("registration_id", reg.ID),
			zap.String("status", string(reg.Status)),
			zap.Error(err),
		)
		reg.SetPaymentStatus(domain.RegPaymentPaid)
		return reg, l.repos.Registrations.Update(ctx, reg)
	}

	if !wasConfirmed && reg.HoldsSeats() {
		if err := l.repos.Seats.Book(ctx, reg.FloorPlanID, reg.SeatIDs, reg.ID); err != nil {
			if !errors.Is(err, repository.ErrSeatsUnavailable) {
				return nil, err
			}
			logger.WarnCtx(ctx, "held seats were taken before payment completed",
				zap.String("registration_id", reg.ID),
				zap.Strings("seat_ids", reg.SeatIDs),
			)
		}
	}
	if err := l.repos.Registrations.Update(ctx, reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// refundRegistration records a refund on a registration. A full refund
// ends the registration and frees its seats.
func (l *ledger) refundRegistration(ctx context.Context, id string, full bool) (*domain.Registration, error) {
	reg, err := l.repos.Registrations.GetByIDForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if reg == nil {
		return nil, ErrRegistrationNotFound
	}

	if !full {
		reg.SetPaymentStatus(domain.RegPaymentPartiallyRefunded)
		return reg, l.repos.Registrations.Update(ctx, reg)
	}

	switch reg.Status {
	case domain.RegistrationStatusConfirmed:
		err = reg.MarkRefunded()
	case domain.RegistrationStatusPending:
		err = reg.Cancel()
		reg.SetPaymentStatus(domain.RegPaymentRefunded)
	default:
		reg.SetPaymentStatus(domain.RegPaymentRefunded)
	}
	if err != nil {
		return nil, err
	}
	if _, err := l.repos.Seats.ReleaseByRegistration(ctx, reg.ID); err != nil {
		return nil, err
	}
	return reg, l.repos.Registrations.Update(ctx, reg)
}

// setRegistrationPaymentStatus updates a registration's payment status only
func (l *ledger) setRegistrationPaymentStatus(ctx context.Context, id string, status domain.RegistrationPaymentStatus) (*domain.Registration, error) {
	reg, err := l.repos.Registrations.GetByIDForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if reg == nil {
		return nil, ErrRegistrationNotFound
	}
	reg.SetPaymentStatus(status)
	return reg, l.repos.Registrations.Update(ctx, reg)
}

// legacyReceipt creates the paid invoice that documents a legacy registration payment.
// The flat legacy rate is treated as included in the amount paid.
func (l *ledger) legacyReceipt(ctx context.Context, tenant *domain.Tenant, reg *domain.Registration, rec *domain.PaymentRecord) (*domain.Invoice, error) {
	tax := domain.LegacyTaxStructure(tenant.LegacyTaxRateBps)
	tax.Inclusive = true

	description := fmt.Sprintf("Registration %s (%d ticket(s))", reg.ID, reg.Quantity)
	if event, err := l.repos.Events.GetByID(ctx, reg.TenantID, reg.EventID); err == nil && event != nil {
		description = fmt.Sprintf("%s (%d ticket(s))", event.Name, reg.Quantity)
	}

	inv, err := domain.NewInvoice(tenant.ID, domain.FinanceModeLegacy, domain.RecipientRegistration, reg.ID, rec.Currency,
		[]domain.LineItem{{Description: description, Quantity: 1, UnitPrice: rec.Amount}}, tax)
	if err != nil {
		return nil, err
	}
	inv.EventID = reg.EventID
	inv.BillToName = reg.AttendeeName
	inv.BillToEmail = reg.Email
	if err := l.issue(ctx, tenant, inv, nil); err != nil {
		return nil, err
	}
	if err := inv.ApplyPayment(rec.Amount); err != nil {
		return nil, err
	}
	if err := l.repos.Invoices.Create(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// afterCommit collects side effects that run once the transaction is durable
type afterCommit struct {
	events []*dto.FinanceEvent
	jobs   []*notification.Job
}

func (a *afterCommit) event(e *dto.FinanceEvent) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	a.events = append(a.events, e)
}

func (a *afterCommit) notify(job *notification.Job) {
	if job != nil && job.To != "" {
		a.jobs = append(a.jobs, job)
	}
}

// dispatch publishes events and enqueues notifications. Failures are logged only.
func dispatch(ctx context.Context, pub FinancePublisher, notifier notification.Notifier, fx *afterCommit) {
	for _, e := range fx.events {
		if err := pub.PublishFinanceEvent(ctx, e); err != nil {
			logger.WarnCtx(ctx, "finance event publish failed",
				zap.String("event_type", e.EventType),
				zap.String("tenant_id", e.TenantID),
				zap.Error(err),
			)
		}
	}
	for _, job := range fx.jobs {
		if err := notifier.Notify(ctx, job); err != nil {
			logger.WarnCtx(ctx, "notification enqueue failed",
				zap.String("template", job.Template),
				zap.String("tenant_id", job.TenantID),
				zap.Error(err),
			)
		}
	}
}

func paymentEvent(eventType string, rec *domain.PaymentRecord, inv *domain.Invoice) *dto.FinanceEvent {
	e := &dto.FinanceEvent{
		EventType:        eventType,
		TenantID:         rec.TenantID,
		Gateway:          string(rec.Gateway),
		PaymentID:        rec.ID,
		GatewayPaymentID: rec.GatewayPaymentID,
		RegistrationID:   rec.RegistrationID,
		PaymentStatus:    string(rec.Status),
		Amount:           rec.Amount,
		Currency:         rec.Currency,
		FailureCode:      rec.FailureCode,
		Message:          rec.FailureMessage,
		Timestamp:        time.Now().UTC(),
	}
	if inv != nil {
		e.InvoiceID = inv.ID
		e.InvoiceNumber = inv.Number
		e.InvoiceStatus = string(inv.Status)
		e.FinanceMode = string(inv.FinanceMode)
	} else {
		e.InvoiceID = rec.InvoiceID
	}
	return e
}

func invoiceEvent(inv *domain.Invoice) *dto.FinanceEvent {
	return &dto.FinanceEvent{
		EventType:     dto.EventTypeInvoiceStatus,
		TenantID:      inv.TenantID,
		InvoiceID:     inv.ID,
		InvoiceNumber: inv.Number,
		InvoiceStatus: string(inv.Status),
		Amount:        inv.Total,
		Currency:      inv.Currency,
		FinanceMode:   string(inv.FinanceMode),
		Timestamp:     time.Now().UTC(),
	}
}

// financeJob builds an email job for a payment, addressed to the invoice or registration contact
func financeJob(tenant *domain.Tenant, template string, amount int64, currency string, inv *domain.Invoice, reg *domain.Registration, extra map[string]any) *notification.Job {
	var to, name, reference string
	switch {
	case inv != nil && inv.BillToEmail != "":
		to, name, reference = inv.BillToEmail, inv.BillToName, inv.Number
	case reg != nil:
		to, name, reference = reg.Email, reg.AttendeeName, reg.ID
	default:
		return nil
	}

	locale := ""
	if tenant != nil {
		locale = tenant.Locale
	}
	data := map[string]any{
		"name":      name,
		"amount":    money.Format(amount, currency, money.Locale(locale)),
		"reference": reference,
	}
	for k, v := range extra {
		data[k] = v
	}
	tenantID := ""
	if tenant != nil {
		tenantID = tenant.ID
	}
	return notification.NewJob(tenantID, notification.ChannelEmail, to, template, data)
}

// eventName returns the display name of a registration's event, empty when unknown
func (l *ledger) eventName(ctx context.Context, reg *domain.Registration) string {
	event, err := l.repos.Events.GetByID(ctx, reg.TenantID, reg.EventID)
	if err != nil || event == nil {
		return ""
	}
	return event.Name
}

// applyRefund records refunded money on the payment, its invoice and its registration
func (l *ledger) applyRefund(ctx context.Context, rec *domain.PaymentRecord, amount int64) (*domain.Invoice, *domain.Registration, error) {
	if err := rec.ApplyRefund(amount); err != nil {
		return nil, nil, err
	}
	if err := l.repos.Payments.Update(ctx, rec); err != nil {
		return nil, nil, err
	}

	var inv *domain.Invoice
	if rec.InvoiceID != "" {
		var err error
		if inv, err = l.lockInvoice(ctx, rec.TenantID, rec.InvoiceID); err != nil {
			return nil, nil, err
		}
		if err := inv.ApplyRefund(amount); err != nil {
			return nil, nil, err
		}
		if err := l.repos.Invoices.Update(ctx, inv); err != nil {
			return nil, nil, err
		}
	}

	var reg *domain.Registration
	if regID := registrationFor(rec, inv); regID != "" {
		full := rec.Status == domain.PaymentStatusRefunded
		if inv != nil {
			full = inv.Status == domain.InvoiceStatusRefunded
		}
		var err error
		if reg, err = l.refundRegistration(ctx, regID, full); err != nil {
			return nil, nil, err
		}
	}
	return inv, reg, nil
}

// openDispute freezes the payment and its invoice
func (l *ledger) openDispute(ctx context.Context, rec *domain.PaymentRecord, amount int64) (*domain.Invoice, error) {
	if err := rec.OpenDispute(); err != nil {
		return nil, err
	}
	if err := l.repos.Payments.Update(ctx, rec); err != nil {
		return nil, err
	}

	var inv *domain.Invoice
	if rec.InvoiceID != "" {
		var err error
		if inv, err = l.lockInvoice(ctx, rec.TenantID, rec.InvoiceID); err != nil {
			return nil, err
		}
		if err := inv.OpenDispute(amount); err != nil {
			return nil, err
		}
		if err := l.repos.Invoices.Update(ctx, inv); err != nil {
			return nil, err
		}
	}
	if regID := registrationFor(rec, inv); regID != "" {
		if _, err := l.setRegistrationPaymentStatus(ctx, regID, domain.RegPaymentDisputed); err != nil {
			return nil, err
		}
	}
	return inv, nil
}

// closeDispute resolves a dispute. A lost dispute is accounted for as a refund.
func (l *ledger) closeDispute(ctx context.Context, rec *domain.PaymentRecord, amount int64, won bool) (*domain.Invoice, error) {
	full := amount >= rec.Refundable()
	if err := rec.CloseDispute(won); err != nil {
		return nil, err
	}
	if err := l.repos.Payments.Update(ctx, rec); err != nil {
		return nil, err
	}

	var inv *domain.Invoice
	if rec.InvoiceID != "" {
		var err error
		if inv, err = l.lockInvoice(ctx, rec.TenantID, rec.InvoiceID); err != nil {
			return nil, err
		}
		if err := inv.CloseDispute(won); err != nil {
			return nil, err
		}
		if err := l.repos.Invoices.Update(ctx, inv); err != nil {
			return nil, err
		}
		full = inv.Status == domain.InvoiceStatusRefunded
	}

	regID := registrationFor(rec, inv)
	if regID == "" {
		return inv, nil
	}
	if !won {
		_, err := l.refundRegistration(ctx, regID, full)
		return inv, err
	}
	status := domain.RegPaymentPaid
	if rec.AmountRefunded > 0 {
		status = domain.RegPaymentPartiallyRefunded
	}
	_, err := l.setRegistrationPaymentStatus(ctx, regID, status)
	return inv, err
}
