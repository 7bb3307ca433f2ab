package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prohmpiriya/eventdesk/internal/domain"
	"github.com/prohmpiriya/eventdesk/internal/dto"
	"github.com/prohmpiriya/eventdesk/internal/gateway"
	"github.com/prohmpiriya/eventdesk/internal/notification"
	"github.com/prohmpiriya/eventdesk/pkg/logger"
	"github.com/prohmpiriya/eventdesk/pkg/money"
	"github.com/prohmpiriya/eventdesk/pkg/telemetry"
	"go.uber.org/zap"
)

// InvoiceService defines the interface for invoices in both finance modes
type InvoiceService interface {
	// Create drafts an invoice priced with the tenant's tax rules
	Create(ctx context.Context, tenantID string, req *dto.CreateInvoiceRequest) (*domain.Invoice, error)
	GetByID(ctx context.Context, tenantID, id string) (*domain.Invoice, error)
	List(ctx context.Context, filter *dto.InvoiceListFilter) ([]*domain.Invoice, int, error)
	// Update edits a draft
	Update(ctx context.Context, tenantID, id string, req *dto.UpdateInvoiceRequest) (*domain.Invoice, error)
	// Issue numbers a draft and makes it payable
	Issue(ctx context.Context, tenantID, id string, req *dto.IssueInvoiceRequest) (*domain.Invoice, error)
	Void(ctx context.Context, tenantID, id string) (*domain.Invoice, error)
	// RecordManualPayment books money received outside the gateways
	RecordManualPayment(ctx context.Context, tenantID, id string, req *dto.ManualPaymentRequest) (*domain.PaymentRecord, error)
	// Refund returns collected money through the gateway that took it
	Refund(ctx context.Context, tenantID, id string, req *dto.RefundRequest) (*domain.Refund, error)
	// Payments lists the payment records of an invoice
	Payments(ctx context.Context, tenantID, id string) ([]*domain.PaymentRecord, error)
}

type invoiceService struct {
	ledger    *ledger
	tx        TxManager
	registry  *gateway.Registry
	publisher FinancePublisher
	notifier  notification.Notifier
	metrics   *telemetry.FinanceMetrics
}

// InvoiceServiceDeps wires an InvoiceService
type InvoiceServiceDeps struct {
	Repos     Repositories
	Tx        TxManager
	Registry  *gateway.Registry
	Publisher FinancePublisher
	Notifier  notification.Notifier
	Metrics   *telemetry.FinanceMetrics
	Config    Config
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(deps InvoiceServiceDeps) InvoiceService {
	s := &invoiceService{
		ledger:    newLedger(deps.Repos, deps.Config),
		tx:        deps.Tx,
		registry:  deps.Registry,
		publisher: deps.Publisher,
		notifier:  deps.Notifier,
		metrics:   deps.Metrics,
	}
	if s.publisher == nil {
		s.publisher = NopFinancePublisher{}
	}
	if s.notifier == nil {
		s.notifier = notification.NopNotifier{}
	}
	return s
}

func (s *invoiceService) Create(ctx context.Context, tenantID string, req *dto.CreateInvoiceRequest) (*domain.Invoice, error) {
	tenant, err := loadTenant(ctx, s.ledger.repos.Tenants, tenantID)
	if err != nil {
		return nil, err
	}
	tax, err := s.ledger.taxFor(ctx, tenant, tenant.FinanceMode, req.TaxStructureID)
	if err != nil {
		return nil, err
	}
	currency := req.Currency
	if currency == "" {
		currency = tenant.DefaultCurrency
	}
	if currency, err = money.NormalizeCurrency(currency); err != nil {
		return nil, err
	}

	inv, err := domain.NewInvoice(tenant.ID, tenant.FinanceMode, req.RecipientType, req.RecipientID, currency,
		dto.ToLineItems(req.LineItems), tax)
	if err != nil {
		return nil, err
	}
	inv.EventID = req.EventID
	inv.BillToName = req.BillToName
	inv.BillToEmail = domain.NormalizeEmail(req.BillToEmail)
	inv.Notes = req.Notes

	if err := s.ledger.repos.Invoices.Create(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *invoiceService) GetByID(ctx context.Context, tenantID, id string) (*domain.Invoice, error) {
	inv, err := s.ledger.repos.Invoices.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, ErrInvoiceNotFound
	}
	return inv, nil
}

func (s *invoiceService) List(ctx context.Context, filter *dto.InvoiceListFilter) ([]*domain.Invoice, int, error) {
	filter.Normalize()
	return s.ledger.repos.Invoices.List(ctx, filter)
}

func (s *invoiceService) Update(ctx context.Context, tenantID, id string, req *dto.UpdateInvoiceRequest) (*domain.Invoice, error) {
	var inv *domain.Invoice
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if inv, err = s.ledger.lockInvoice(ctx, tenantID, id); err != nil {
			return err
		}
		if inv.Status != domain.InvoiceStatusDraft {
			return &domain.TransitionError{Entity: "invoice", From: string(inv.Status), To: "edit"}
		}

		if req.BillToName != nil {
			inv.BillToName = *req.BillToName
		}
		if req.BillToEmail != nil {
			inv.BillToEmail = domain.NormalizeEmail(*req.BillToEmail)
		}
		if req.Notes != nil {
			inv.Notes = *req.Notes
		}
		if len(req.LineItems) > 0 || req.TaxStructureID != nil {
			tenant, err := loadTenant(ctx, s.ledger.repos.Tenants, tenantID)
			if err != nil {
				return err
			}
			taxID := inv.TaxStructureID
			if req.TaxStructureID != nil {
				taxID = *req.TaxStructureID
			}
			if inv.FinanceMode == domain.FinanceModeLegacy {
				taxID = ""
				if req.TaxStructureID != nil && *req.TaxStructureID != "" {
					return fmt.Errorf("%w: tax structures apply in tenant mode only", ErrFinanceModeMismatch)
				}
			}
			tax, err := s.ledger.taxFor(ctx, tenant, inv.FinanceMode, taxID)
			if err != nil {
				return err
			}
			items := inv.LineItems
			if len(req.LineItems) > 0 {
				items = dto.ToLineItems(req.LineItems)
			}
			if err := inv.SetLineItems(items, tax); err != nil {
				return err
			}
		}
		inv.UpdatedAt = time.Now()
		return s.ledger.repos.Invoices.Update(ctx, inv)
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *invoiceService) Issue(ctx context.Context, tenantID, id string, req *dto.IssueInvoiceRequest) (*domain.Invoice, error) {
	tenant, err := loadTenant(ctx, s.ledger.repos.Tenants, tenantID)
	if err != nil {
		return nil, err
	}
	var dueAt *time.Time
	if req != nil {
		dueAt = req.DueAt
	}

	var inv *domain.Invoice
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if inv, err = s.ledger.lockInvoice(ctx, tenantID, id); err != nil {
			return err
		}
		// The number sequence follows the tenant's current mode
		if inv.FinanceMode != tenant.FinanceMode {
			return fmt.Errorf("%w: invoice drafted in %s mode", ErrFinanceModeMismatch, inv.FinanceMode)
		}
		if err := s.ledger.issue(ctx, tenant, inv, dueAt); err != nil {
			return err
		}
		return s.ledger.repos.Invoices.Update(ctx, inv)
	})
	if err != nil {
		return nil, err
	}
	s.transitioned(ctx, inv)
	return inv, nil
}

func (s *invoiceService) Void(ctx context.Context, tenantID, id string) (*domain.Invoice, error) {
	var inv *domain.Invoice
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if inv, err = s.ledger.lockInvoice(ctx, tenantID, id); err != nil {
			return err
		}
		if err := inv.Void(); err != nil {
			return err
		}
		return s.ledger.repos.Invoices.Update(ctx, inv)
	})
	if err != nil {
		return nil, err
	}
	s.transitioned(ctx, inv)
	return inv, nil
}

func (s *invoiceService) RecordManualPayment(ctx context.Context, tenantID, id string, req *dto.ManualPaymentRequest) (*domain.PaymentRecord, error) {
	tenant, err := loadTenant(ctx, s.ledger.repos.Tenants, tenantID)
	if err != nil {
		return nil, err
	}

	fx := &afterCommit{}
	var rec *domain.PaymentRecord
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		inv, err := s.ledger.lockInvoice(ctx, tenantID, id)
		if err != nil {
			return err
		}
		if err := inv.ApplyPayment(req.Amount); err != nil {
			return err
		}

		reference := strings.TrimSpace(req.Reference)
		if rec, err = domain.NewPaymentRecord(tenantID, domain.GatewayManual, "", req.Amount, inv.Currency); err != nil {
			return err
		}
		rec.InvoiceID = inv.ID
		rec.RegistrationID = registrationFor(nil, inv)
		rec.GatewayOrderID = reference
		if err := rec.MarkSucceeded(req.Method, time.Now()); err != nil {
			return err
		}
		if err := s.ledger.repos.Payments.Create(ctx, rec); err != nil {
			return err
		}
		if err := s.ledger.repos.Invoices.Update(ctx, inv); err != nil {
			return err
		}

		var reg *domain.Registration
		if rec.RegistrationID != "" && inv.Status == domain.InvoiceStatusPaid {
			if reg, err = s.ledger.confirmRegistration(ctx, rec.RegistrationID); err != nil {
				return err
			}
		}

		fx.event(paymentEvent(dto.EventTypePaymentSucceeded, rec, inv))
		fx.event(invoiceEvent(inv))
		fx.notify(financeJob(tenant, notification.TemplatePaymentReceipt, rec.Amount, rec.Currency, inv, reg,
			map[string]any{"payment_id": reference}))
		s.countTransition(ctx, inv)
		return nil
	})
	if err != nil {
		return nil, err
	}

	dispatch(ctx, s.publisher, s.notifier, fx)
	logger.InfoCtx(ctx, "manual payment recorded",
		zap.String("invoice_id", id),
		zap.String("payment_id", rec.ID),
		zap.Int64("amount", rec.Amount),
	)
	return rec, nil
}

func (s *invoiceService) Refund(ctx context.Context, tenantID, id string, req *dto.RefundRequest) (*domain.Refund, error) {
	ctx, span := telemetry.StartSpan(ctx, "invoice.refund")
	defer span.End()

	tenant, err := loadTenant(ctx, s.ledger.repos.Tenants, tenantID)
	if err != nil {
		return nil, err
	}
	inv, err := s.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	rec, err := s.refundablePayment(ctx, inv, req.PaymentID)
	if err != nil {
		return nil, err
	}

	amount := req.Amount
	limit := min(inv.Refundable(), rec.Refundable())
	if amount == 0 {
		amount = limit
	}
	if amount <= 0 || limit <= 0 {
		return nil, ErrRefundNotAllowed
	}
	if amount > limit {
		return nil, domain.ErrRefundExceedsPaid
	}

	refundedBefore := rec.AmountRefunded
	gatewayRefundID := ""
	if rec.Gateway != domain.GatewayManual {
		provider, err := s.registry.Get(rec.Gateway)
		if err != nil {
			return nil, err
		}
		resp, err := provider.Refund(ctx, &gateway.RefundRequest{
			PaymentID: rec.GatewayPaymentID,
			Amount:    amount,
			Reason:    req.Reason,
			Metadata: map[string]string{
				gateway.MetaTenantID:  tenantID,
				gateway.MetaInvoiceID: inv.ID,
			},
		})
		if err != nil {
			telemetry.SetSpanError(ctx, err)
			return nil, err
		}
		gatewayRefundID = resp.RefundID
	}

	fx := &afterCommit{}
	var refund *domain.Refund
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		locked, err := s.ledger.repos.Payments.GetByGatewayID(ctx, rec.Gateway, rec.GatewayPaymentID)
		if err != nil {
			return err
		}
		if locked == nil {
			return ErrPaymentNotFound
		}
		refund = domain.NewRefund(locked, gatewayRefundID, amount, req.Reason)
		if gatewayRefundID != "" && locked.AmountRefunded-refundedBefore >= amount {
			// A refund webhook without the refund ID booked this amount while the gateway call was in flight
			return nil
		}
		created, err := s.ledger.repos.Payments.CreateRefund(ctx, refund)
		if err != nil {
			return err
		}
		if !created {
			// The gateway's webhook got here first
			return nil
		}
		inv, reg, err := s.ledger.applyRefund(ctx, locked, amount)
		if err != nil {
			return err
		}
		e := paymentEvent(dto.EventTypeRefundProcessed, locked, inv)
		e.Amount = amount
		fx.event(e)
		fx.notify(financeJob(tenant, notification.TemplateRefundProcessed, amount, locked.Currency, inv, reg, nil))
		if inv != nil {
			s.countTransition(ctx, inv)
		}
		return nil
	})
	if err != nil {
		// Money has moved at the gateway; its refund webhook will reconcile the books
		logger.ErrorCtx(ctx, "refund not recorded locally",
			zap.String("invoice_id", inv.ID),
			zap.String("gateway_refund_id", gatewayRefundID),
			zap.Error(err),
		)
		return nil, err
	}

	dispatch(ctx, s.publisher, s.notifier, fx)
	return refund, nil
}

// refundablePayment picks the payment to refund: the one named, or the latest with money left
func (s *invoiceService) refundablePayment(ctx context.Context, inv *domain.Invoice, paymentID string) (*domain.PaymentRecord, error) {
	if paymentID != "" {
		rec, err := s.ledger.repos.Payments.GetByID(ctx, paymentID)
		if err != nil {
			return nil, err
		}
		if rec == nil || rec.TenantID != inv.TenantID || rec.InvoiceID != inv.ID {
			return nil, ErrPaymentNotFound
		}
		return rec, nil
	}

	payments, err := s.Payments(ctx, inv.TenantID, inv.ID)
	if err != nil {
		return nil, err
	}
	for _, rec := range payments {
		if rec.HasCollected() && rec.Refundable() > 0 && rec.Status != domain.PaymentStatusDisputed {
			return rec, nil
		}
	}
	return nil, ErrRefundNotAllowed
}

func (s *invoiceService) Payments(ctx context.Context, tenantID, id string) ([]*domain.PaymentRecord, error) {
	filter := &dto.PaymentListFilter{TenantID: tenantID, InvoiceID: id}
	filter.Limit = 100
	filter.Normalize()
	payments, _, err := s.ledger.repos.Payments.List(ctx, filter)
	return payments, err
}

func (s *invoiceService) transitioned(ctx context.Context, inv *domain.Invoice) {
	s.countTransition(ctx, inv)
	if err := s.publisher.PublishFinanceEvent(ctx, invoiceEvent(inv)); err != nil {
		logger.WarnCtx(ctx, "invoice event publish failed", zap.String("invoice_id", inv.ID), zap.Error(err))
	}
}

func (s *invoiceService) countTransition(ctx context.Context, inv *domain.Invoice) {
	if s.metrics == nil {
		return
	}
	s.metrics.InvoiceTransitions.Inc(ctx,
		telemetry.InvoiceStatusAttr(string(inv.Status)),
		telemetry.FinanceModeAttr(string(inv.FinanceMode)),
	)
}
