package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prohmpiriya/eventdesk/internal/domain"
	"github.com/prohmpiriya/eventdesk/internal/dto"
	"github.com/prohmpiriya/eventdesk/internal/gateway"
	"github.com/prohmpiriya/eventdesk/internal/notification"
	"github.com/prohmpiriya/eventdesk/pkg/logger"
	"github.com/prohmpiriya/eventdesk/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Outcome is how a webhook delivery ended
type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeInFlight  Outcome = "in_flight"
	OutcomeFailed    Outcome = "failed"
	OutcomeRejected  Outcome = "rejected" // permanent failure
)

// ReconcileResult reports what Process did with an event
type ReconcileResult struct {
	LogID   string  `json:"log_id,omitempty"`
	Outcome Outcome `json:"outcome"`
	Note    string  `json:"note,omitempty"`
}

// Reconciler applies normalized gateway events to payments, invoices and registrations
type Reconciler struct {
	ledger    *ledger
	tx        TxManager
	locker    Locker
	publisher FinancePublisher
	notifier  notification.Notifier
	metrics   *telemetry.FinanceMetrics
	lockTTL   time.Duration
	now       func() time.Time
}

// ReconcilerDeps wires a Reconciler. Locker, Publisher, Notifier and Metrics are optional.
type ReconcilerDeps struct {
	Repos     Repositories
	Tx        TxManager
	Locker    Locker
	Publisher FinancePublisher
	Notifier  notification.Notifier
	Metrics   *telemetry.FinanceMetrics
	Config    Config
}

// NewReconciler creates a Reconciler
func NewReconciler(deps ReconcilerDeps) *Reconciler {
	cfg := deps.Config.withDefaults()
	r := &Reconciler{
		ledger:    newLedger(deps.Repos, cfg),
		tx:        deps.Tx,
		locker:    deps.Locker,
		publisher: deps.Publisher,
		notifier:  deps.Notifier,
		metrics:   deps.Metrics,
		lockTTL:   cfg.WebhookLockTTL,
		now:       time.Now,
	}
	if r.publisher == nil {
		r.publisher = NopFinancePublisher{}
	}
	if r.notifier == nil {
		r.notifier = notification.NopNotifier{}
	}
	return r
}

// LockKey is the Redis key guarding one gateway event
func LockKey(gw domain.Gateway, eventID string) string {
	return fmt.Sprintf("webhook:lock:%s:%s", gw, eventID)
}

// Process records and applies a verified webhook event exactly once.
// It returns ErrWebhookInFlight when another worker holds the event and
// a PermanentError when retrying cannot help.
func (r *Reconciler) Process(ctx context.Context, evt *gateway.WebhookEvent) (*ReconcileResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "reconciler.process")
	defer span.End()
	telemetry.SetSpanAttributes(ctx,
		telemetry.GatewayAttr(string(evt.Gateway)),
		telemetry.WebhookTypeAttr(evt.RawType),
		telemetry.WebhookKindAttr(string(evt.Kind)),
	)

	start := r.now()
	if r.metrics != nil {
		r.metrics.WebhooksInFlight.Add(ctx, 1)
		defer r.metrics.WebhooksInFlight.Add(ctx, -1)
	}

	res, err := r.process(ctx, evt)
	outcome := OutcomeFailed
	if res != nil {
		outcome = res.Outcome
	}
	if err != nil {
		telemetry.SetSpanError(ctx, err)
	}
	if r.metrics != nil {
		attrs := []attribute.KeyValue{
			telemetry.GatewayAttr(string(evt.Gateway)),
			telemetry.WebhookTypeAttr(evt.RawType),
			telemetry.OutcomeAttr(string(outcome)),
		}
		r.metrics.WebhookEvents.Inc(ctx, attrs...)
		r.metrics.WebhookDuration.Since(ctx, start, attrs...)
	}
	return res, err
}

func (r *Reconciler) process(ctx context.Context, evt *gateway.WebhookEvent) (*ReconcileResult, error) {
	return r.withLock(ctx, evt, func(ctx context.Context) (*ReconcileResult, error) {
		entry := domain.NewWebhookLog(evt.Gateway, evt.EventID, evt.RawType, evt.Payload)
		entry.TenantID = evt.TenantID()
		stored, _, err := r.ledger.repos.WebhookLogs.Record(ctx, entry)
		if err != nil {
			return nil, fmt.Errorf("record webhook log: %w", err)
		}
		if stored.Processed {
			return &ReconcileResult{LogID: stored.ID, Outcome: OutcomeDuplicate, Note: stored.Note}, nil
		}
		return r.apply(ctx, stored, evt)
	})
}

// withLock runs fn while holding the event's Redis lock. Without Redis the
// unique webhook log row and row locks still keep processing single.
func (r *Reconciler) withLock(ctx context.Context, evt *gateway.WebhookEvent, fn func(context.Context) (*ReconcileResult, error)) (*ReconcileResult, error) {
	if r.locker == nil {
		return fn(ctx)
	}
	key := LockKey(evt.Gateway, evt.EventID)
	token := uuid.New().String()
	ok, err := r.locker.AcquireLock(ctx, key, token, r.lockTTL)
	switch {
	case err != nil:
		logger.WarnCtx(ctx, "webhook lock unavailable, processing without it",
			zap.String("key", key), zap.Error(err))
		return fn(ctx)
	case !ok:
		return &ReconcileResult{Outcome: OutcomeInFlight}, ErrWebhookInFlight
	}
	defer func() {
		if err := r.locker.ReleaseLock(context.WithoutCancel(ctx), key, token); err != nil {
			logger.WarnCtx(ctx, "webhook lock release failed", zap.String("key", key), zap.Error(err))
		}
	}()
	return fn(ctx)
}

// Replay re-applies a stored, unprocessed log entry
func (r *Reconciler) Replay(ctx context.Context, entry *domain.WebhookLog, evt *gateway.WebhookEvent) (*ReconcileResult, error) {
	if entry.Processed {
		return &ReconcileResult{LogID: entry.ID, Outcome: OutcomeDuplicate, Note: entry.Note}, nil
	}
	ctx, span := telemetry.StartSpan(ctx, "reconciler.replay")
	defer span.End()
	return r.withLock(ctx, evt, func(ctx context.Context) (*ReconcileResult, error) {
		return r.apply(ctx, entry, evt)
	})
}

// apply runs the event in one transaction together with marking the log processed
func (r *Reconciler) apply(ctx context.Context, entry *domain.WebhookLog, evt *gateway.WebhookEvent) (*ReconcileResult, error) {
	fx := &afterCommit{}
	done := *entry

	err := r.tx.WithinTx(ctx, func(ctx context.Context) error {
		note, tenantID, err := r.applyEvent(ctx, evt, fx)
		if err != nil {
			return err
		}
		if tenantID != "" {
			done.TenantID = tenantID
		}
		done.MarkProcessed(note, r.now())
		return r.ledger.repos.WebhookLogs.MarkProcessed(ctx, &done)
	})
	if err != nil {
		err = classify(err)
		entry.MarkFailed(err)
		if markErr := r.ledger.repos.WebhookLogs.MarkFailed(ctx, entry); markErr != nil {
			logger.ErrorCtx(ctx, "webhook log failure not recorded",
				zap.String("log_id", entry.ID), zap.Error(markErr))
		}
		logger.ErrorCtx(ctx, "webhook processing failed",
			zap.String("gateway", string(evt.Gateway)),
			zap.String("event_id", evt.EventID),
			zap.String("event_type", evt.RawType),
			zap.Bool("permanent", IsPermanent(err)),
			zap.Error(err),
		)
		outcome := OutcomeFailed
		if IsPermanent(err) {
			outcome = OutcomeRejected
		}
		return &ReconcileResult{LogID: entry.ID, Outcome: outcome, Note: err.Error()}, err
	}

	*entry = done
	dispatch(ctx, r.publisher, r.notifier, fx)

	outcome := OutcomeProcessed
	if evt.Kind == gateway.KindIgnored {
		outcome = OutcomeIgnored
	}
	logger.InfoCtx(ctx, "webhook processed",
		zap.String("gateway", string(evt.Gateway)),
		zap.String("event_id", evt.EventID),
		zap.String("event_type", evt.RawType),
		zap.String("note", done.Note),
	)
	return &ReconcileResult{LogID: entry.ID, Outcome: outcome, Note: done.Note}, nil
}

// classify marks domain rule violations as permanent: the same payload will fail again
func classify(err error) error {
	if IsPermanent(err) {
		return err
	}
	for _, target := range []error{
		domain.ErrInvalidTransition,
		domain.ErrOverpayment,
		domain.ErrRefundExceedsPaid,
		domain.ErrCurrencyMismatch,
		domain.ErrInvalidAmount,
		domain.ErrMissingTenant,
		gateway.ErrMalformedPayload,
	} {
		if errors.Is(err, target) {
			return permanent(err)
		}
	}
	return err
}

func (r *Reconciler) applyEvent(ctx context.Context, evt *gateway.WebhookEvent, fx *afterCommit) (note, tenantID string, err error) {
	switch evt.Kind {
	case gateway.KindIgnored:
		return "ignored", evt.TenantID(), nil
	case gateway.KindPaymentSucceeded:
		return r.paymentSucceeded(ctx, evt, fx)
	case gateway.KindPaymentFailed:
		return r.paymentFailed(ctx, evt, fx)
	case gateway.KindRefundUpdated:
		return r.refundUpdated(ctx, evt, fx)
	case gateway.KindDisputeOpened:
		return r.disputeOpened(ctx, evt, fx)
	case gateway.KindDisputeClosed:
		return r.disputeClosed(ctx, evt, fx)
	}
	return "", "", permanent(fmt.Errorf("unknown event kind %q", evt.Kind))
}

// findPayment loads the record for an event, adopting a Razorpay order record
// the first time its payment ID is seen
func (r *Reconciler) findPayment(ctx context.Context, evt *gateway.WebhookEvent) (*domain.PaymentRecord, error) {
	payments := r.ledger.repos.Payments
	rec, err := payments.GetByGatewayID(ctx, evt.Gateway, evt.PaymentID)
	if err != nil || rec != nil {
		return rec, err
	}
	if evt.OrderID == "" {
		return nil, nil
	}
	rec, err = payments.GetByGatewayOrderID(ctx, evt.Gateway, evt.OrderID)
	if err != nil || rec == nil {
		return rec, err
	}
	if rec.GatewayPaymentID != evt.PaymentID {
		if rec.HasCollected() {
			// the order was already paid by another payment; treat this one as new
			return nil, nil
		}
		rec.GatewayPaymentID = evt.PaymentID
	}
	return rec, nil
}

// paymentForEvent finds or creates the record a payment event is about
func (r *Reconciler) paymentForEvent(ctx context.Context, evt *gateway.WebhookEvent) (*domain.PaymentRecord, *domain.Tenant, error) {
	rec, err := r.findPayment(ctx, evt)
	if err != nil {
		return nil, nil, err
	}

	if rec == nil {
		tenantID := evt.TenantID()
		if tenantID == "" {
			return nil, nil, permanent(fmt.Errorf("%w: no tenant_id in payment metadata", ErrUnroutableWebhook))
		}
		tenant, err := r.ledger.repos.Tenants.GetByID(ctx, tenantID)
		if err != nil {
			return nil, nil, err
		}
		if tenant == nil {
			return nil, nil, permanent(fmt.Errorf("%w: unknown tenant %s", ErrUnroutableWebhook, tenantID))
		}
		fresh, err := domain.NewPaymentRecord(tenantID, evt.Gateway, evt.PaymentID, evt.Amount, strings.ToUpper(evt.Currency))
		if err != nil {
			return nil, nil, permanent(err)
		}
		fresh.GatewayOrderID = evt.OrderID
		fresh.InvoiceID = evt.InvoiceID()
		fresh.RegistrationID = evt.RegistrationID()
		rec, _, err = r.ledger.repos.Payments.UpsertByGatewayID(ctx, fresh)
		if err != nil {
			return nil, nil, err
		}
		return rec, tenant, nil
	}

	tenant, err := r.ledger.repos.Tenants.GetByID(ctx, rec.TenantID)
	if err != nil {
		return nil, nil, err
	}
	if tenant == nil {
		return nil, nil, permanent(fmt.Errorf("%w: unknown tenant %s", ErrUnroutableWebhook, rec.TenantID))
	}
	return rec, tenant, nil
}

// existingPayment loads the record a refund or dispute refers to
func (r *Reconciler) existingPayment(ctx context.Context, evt *gateway.WebhookEvent) (*domain.PaymentRecord, *domain.Tenant, error) {
	rec, err := r.findPayment(ctx, evt)
	if err != nil {
		return nil, nil, err
	}
	if rec == nil {
		return nil, nil, permanent(fmt.Errorf("%w: %s payment %s", ErrPaymentNotFound, evt.Gateway, evt.PaymentID))
	}
	tenant, err := loadTenant(ctx, r.ledger.repos.Tenants, rec.TenantID)
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			return nil, nil, permanent(err)
		}
		return nil, nil, err
	}
	return rec, tenant, nil
}

func (r *Reconciler) paymentSucceeded(ctx context.Context, evt *gateway.WebhookEvent, fx *afterCommit) (string, string, error) {
	rec, tenant, err := r.paymentForEvent(ctx, evt)
	if err != nil {
		return "", "", err
	}
	if rec.HasCollected() {
		return "payment already collected", rec.TenantID, nil
	}

	if evt.Currency != "" && rec.Currency != "" && !strings.EqualFold(evt.Currency, rec.Currency) {
		return "", "", permanent(fmt.Errorf("%w: record %s, event %s", domain.ErrCurrencyMismatch, rec.Currency, evt.Currency))
	}
	if evt.Amount > 0 {
		rec.Amount = evt.Amount
	}
	if rec.GatewayOrderID == "" {
		rec.GatewayOrderID = evt.OrderID
	}
	if rec.InvoiceID == "" {
		rec.InvoiceID = evt.InvoiceID()
	}
	if rec.RegistrationID == "" {
		rec.RegistrationID = evt.RegistrationID()
	}
	if err := rec.MarkSucceeded(evt.Method, r.now()); err != nil {
		return "", "", err
	}

	var inv *domain.Invoice
	var reg *domain.Registration
	note := "payment applied"

	switch {
	case rec.InvoiceID != "":
		inv, err = r.ledger.lockInvoice(ctx, rec.TenantID, rec.InvoiceID)
		if err != nil {
			if errors.Is(err, ErrInvoiceNotFound) {
				return "", "", permanent(err)
			}
			return "", "", err
		}
		if inv.Status == domain.InvoiceStatusDraft {
			if err := r.ledger.issue(ctx, tenant, inv, nil); err != nil {
				return "", "", err
			}
		}
		if err := inv.ApplyPayment(rec.Amount); err != nil {
			return "", "", err
		}
		if err := r.ledger.repos.Invoices.Update(ctx, inv); err != nil {
			return "", "", err
		}
		r.invoiceTransition(ctx, inv)
		fx.event(invoiceEvent(inv))

		if regID := registrationFor(rec, inv); regID != "" && inv.Status == domain.InvoiceStatusPaid {
			if reg, err = r.ledger.confirmRegistration(ctx, regID); err != nil {
				return "", "", err
			}
			rec.RegistrationID = reg.ID
		}
		note = fmt.Sprintf("applied to invoice %s (%s)", inv.Number, inv.Status)

	case rec.RegistrationID != "":
		if reg, err = r.ledger.confirmRegistration(ctx, rec.RegistrationID); err != nil {
			if errors.Is(err, ErrRegistrationNotFound) {
				return "", "", permanent(err)
			}
			return "", "", err
		}
		inv, err = r.ledger.legacyReceipt(ctx, tenant, reg, rec)
		if err != nil {
			return "", "", err
		}
		rec.InvoiceID = inv.ID
		reg.InvoiceID = inv.ID
		if err := r.ledger.repos.Registrations.Update(ctx, reg); err != nil {
			return "", "", err
		}
		note = fmt.Sprintf("registration confirmed, receipt %s", inv.Number)

	default:
		return "", "", permanent(fmt.Errorf("%w: payment has no invoice or registration", ErrUnroutableWebhook))
	}

	if err := r.ledger.repos.Payments.Update(ctx, rec); err != nil {
		return "", "", err
	}
	if r.metrics != nil {
		r.metrics.PaymentsReconciled.Inc(ctx,
			telemetry.GatewayAttr(string(rec.Gateway)),
			telemetry.PaymentStatusAttr(string(rec.Status)),
			telemetry.FinanceModeAttr(string(inv.FinanceMode)),
		)
	}

	e := paymentEvent(dto.EventTypePaymentSucceeded, rec, inv)
	e.GatewayEventID = evt.EventID
	fx.event(e)
	fx.notify(financeJob(tenant, notification.TemplatePaymentReceipt, rec.Amount, rec.Currency, inv, reg,
		map[string]any{"payment_id": rec.GatewayPaymentID}))
	if reg != nil && reg.Status == domain.RegistrationStatusConfirmed {
		fx.notify(registrationJob(tenant, reg, r.ledger.eventName(ctx, reg)))
	}
	return note, rec.TenantID, nil
}

func (r *Reconciler) paymentFailed(ctx context.Context, evt *gateway.WebhookEvent, fx *afterCommit) (string, string, error) {
	rec, _, err := r.paymentForEvent(ctx, evt)
	if err != nil {
		return "", "", err
	}
	if rec.HasCollected() {
		return "failure after successful capture ignored", rec.TenantID, nil
	}
	if err := rec.MarkFailed(evt.FailureCode, evt.FailureMessage, r.now()); err != nil {
		return "", "", err
	}
	if err := r.ledger.repos.Payments.Update(ctx, rec); err != nil {
		return "", "", err
	}
	if r.metrics != nil {
		r.metrics.PaymentsReconciled.Inc(ctx,
			telemetry.GatewayAttr(string(rec.Gateway)),
			telemetry.PaymentStatusAttr(string(rec.Status)),
		)
	}

	e := paymentEvent(dto.EventTypePaymentFailed, rec, nil)
	e.GatewayEventID = evt.EventID
	fx.event(e)
	return "payment failed: " + evt.FailureCode, rec.TenantID, nil
}

func (r *Reconciler) refundUpdated(ctx context.Context, evt *gateway.WebhookEvent, fx *afterCommit) (string, string, error) {
	rec, tenant, err := r.existingPayment(ctx, evt)
	if err != nil {
		return "", "", err
	}

	delta := evt.RefundAmount
	if evt.RefundedTotal > 0 {
		delta = evt.RefundedTotal - rec.AmountRefunded
	}
	if delta <= 0 {
		return "refund already applied", rec.TenantID, nil
	}

	refund := domain.NewRefund(rec, evt.RefundID, delta, "gateway")
	created, err := r.ledger.repos.Payments.CreateRefund(ctx, refund)
	if err != nil {
		return "", "", err
	}
	if !created {
		return "refund already recorded", rec.TenantID, nil
	}

	inv, reg, err := r.ledger.applyRefund(ctx, rec, delta)
	if err != nil {
		return "", "", err
	}
	if inv != nil {
		r.invoiceTransition(ctx, inv)
	}

	e := paymentEvent(dto.EventTypeRefundProcessed, rec, inv)
	e.GatewayEventID = evt.EventID
	e.Amount = delta
	fx.event(e)
	fx.notify(financeJob(tenant, notification.TemplateRefundProcessed, delta, rec.Currency, inv, reg, nil))
	return fmt.Sprintf("refund of %d applied", delta), rec.TenantID, nil
}

func (r *Reconciler) disputeOpened(ctx context.Context, evt *gateway.WebhookEvent, fx *afterCommit) (string, string, error) {
	rec, _, err := r.existingPayment(ctx, evt)
	if err != nil {
		return "", "", err
	}

	dispute := domain.NewDispute(rec, evt.DisputeID, evt.DisputeAmount, evt.DisputeReason)
	created, err := r.ledger.repos.Payments.CreateDispute(ctx, dispute)
	if err != nil {
		return "", "", err
	}
	if !created {
		return "dispute already recorded", rec.TenantID, nil
	}

	inv, err := r.ledger.openDispute(ctx, rec, dispute.Amount)
	if err != nil {
		return "", "", err
	}
	if inv != nil {
		r.invoiceTransition(ctx, inv)
	}

	e := paymentEvent(dto.EventTypeDisputeOpened, rec, inv)
	e.GatewayEventID = evt.EventID
	e.Amount = dispute.Amount
	e.Message = dispute.Reason
	fx.event(e)
	return "dispute opened", rec.TenantID, nil
}

func (r *Reconciler) disputeClosed(ctx context.Context, evt *gateway.WebhookEvent, fx *afterCommit) (string, string, error) {
	rec, _, err := r.existingPayment(ctx, evt)
	if err != nil {
		return "", "", err
	}

	dispute, err := r.ledger.repos.Payments.GetDisputeByGatewayID(ctx, evt.DisputeID)
	if err != nil {
		return "", "", err
	}
	if dispute == nil {
		// the opening event never arrived; open it now so the transitions line up
		dispute = domain.NewDispute(rec, evt.DisputeID, evt.DisputeAmount, evt.DisputeReason)
		if _, err := r.ledger.repos.Payments.CreateDispute(ctx, dispute); err != nil {
			return "", "", err
		}
		if _, err := r.ledger.openDispute(ctx, rec, dispute.Amount); err != nil {
			return "", "", err
		}
	}
	if dispute.Status != domain.DisputeStatusOpen {
		return "dispute already closed", rec.TenantID, nil
	}

	won := evt.DisputeWon()
	if err := dispute.Close(won, r.now()); err != nil {
		return "", "", err
	}
	if err := r.ledger.repos.Payments.UpdateDispute(ctx, dispute); err != nil {
		return "", "", err
	}

	inv, err := r.ledger.closeDispute(ctx, rec, dispute.Amount, won)
	if err != nil {
		return "", "", err
	}
	if inv != nil {
		r.invoiceTransition(ctx, inv)
	}

	e := paymentEvent(dto.EventTypeDisputeClosed, rec, inv)
	e.GatewayEventID = evt.EventID
	e.Amount = dispute.Amount
	e.Message = string(dispute.Status)
	fx.event(e)
	return "dispute " + string(dispute.Status), rec.TenantID, nil
}

func (r *Reconciler) invoiceTransition(ctx context.Context, inv *domain.Invoice) {
	if r.metrics == nil {
		return
	}
	r.metrics.InvoiceTransitions.Inc(ctx,
		telemetry.InvoiceStatusAttr(string(inv.Status)),
		telemetry.FinanceModeAttr(string(inv.FinanceMode)),
	)
}

func registrationJob(tenant *domain.Tenant, reg *domain.Registration, eventName string) *notification.Job {
	if eventName == "" {
		eventName = "your event"
	}
	tenantID := ""
	if tenant != nil {
		tenantID = tenant.ID
	}
	data := map[string]any{
		"name":            reg.AttendeeName,
		"event":           eventName,
		"registration_id": reg.ID,
	}
	if len(reg.SeatIDs) > 0 {
		data["seats"] = strings.Join(reg.SeatIDs, ", ")
	}
	return notification.NewJob(tenantID, notification.ChannelEmail, reg.Email, notification.TemplateRegistrationConfirmed, data)
}
