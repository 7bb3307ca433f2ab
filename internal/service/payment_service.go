package service

import (
	"context"
	"fmt"

	"github.com/prohmpiriya/eventdesk/internal/domain"
	"github.com/prohmpiriya/eventdesk/internal/dto"
	"github.com/prohmpiriya/eventdesk/internal/gateway"
	"github.com/prohmpiriya/eventdesk/pkg/logger"
	"github.com/prohmpiriya/eventdesk/pkg/telemetry"
	"go.uber.org/zap"
)

// PaymentService defines the interface for gateway checkout and payment records
type PaymentService interface {
	// CheckoutRegistration starts a gateway payment for a pending registration
	CheckoutRegistration(ctx context.Context, tenantID, registrationID string, req *dto.CheckoutRequest) (*dto.CheckoutResponse, error)
	// CheckoutInvoice starts a gateway payment for the balance of an issued invoice
	CheckoutInvoice(ctx context.Context, tenantID, invoiceID string, req *dto.CheckoutRequest) (*dto.CheckoutResponse, error)
	GetByID(ctx context.Context, tenantID, id string) (*domain.PaymentRecord, error)
	List(ctx context.Context, filter *dto.PaymentListFilter) ([]*domain.PaymentRecord, int, error)
	Refunds(ctx context.Context, tenantID, paymentID string) ([]*domain.Refund, error)
}

type paymentService struct {
	ledger   *ledger
	tx       TxManager
	registry *gateway.Registry
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(repos Repositories, tx TxManager, registry *gateway.Registry, cfg Config) PaymentService {
	return &paymentService{
		ledger:   newLedger(repos, cfg),
		tx:       tx,
		registry: registry,
	}
}

func (s *paymentService) CheckoutRegistration(ctx context.Context, tenantID, registrationID string, req *dto.CheckoutRequest) (*dto.CheckoutResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "payment.checkout_registration")
	defer span.End()

	repos := s.ledger.repos
	tenant, err := loadTenant(ctx, repos.Tenants, tenantID)
	if err != nil {
		return nil, err
	}
	provider, err := s.registry.Get(req.Gateway)
	if err != nil {
		return nil, err
	}

	var reg *domain.Registration
	var inv *domain.Invoice
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		reg, err = repos.Registrations.GetByIDForUpdate(ctx, registrationID)
		if err != nil {
			return err
		}
		if reg == nil || reg.TenantID != tenantID {
			return ErrRegistrationNotFound
		}
		if reg.Status != domain.RegistrationStatusPending || reg.Amount == 0 {
			return ErrNothingToPay
		}
		if tenant.FinanceMode != domain.FinanceModeTenant {
			return nil
		}

		// Tenant mode bills the registration through a numbered invoice before money moves
		if reg.InvoiceID != "" {
			inv, err = s.ledger.lockInvoice(ctx, tenantID, reg.InvoiceID)
			return err
		}
		inv, err = s.registrationInvoice(ctx, tenant, reg)
		if err != nil {
			return err
		}
		reg.InvoiceID = inv.ID
		return repos.Registrations.Update(ctx, reg)
	})
	if err != nil {
		return nil, err
	}

	amount, currency := reg.Amount, reg.Currency
	invoiceID := ""
	if inv != nil {
		if inv.Balance() <= 0 {
			return nil, ErrNothingToPay
		}
		amount, currency, invoiceID = inv.Balance(), inv.Currency, inv.ID
	}

	return s.startPayment(ctx, provider, &gateway.CreatePaymentRequest{
		Amount:      amount,
		Currency:    currency,
		Description: fmt.Sprintf("Registration %s", reg.ID),
		Email:       reg.Email,
		Receipt:     reg.ID,
		Metadata: map[string]string{
			gateway.MetaTenantID:       tenantID,
			gateway.MetaRegistrationID: reg.ID,
			gateway.MetaInvoiceID:      invoiceID,
		},
	}, tenantID, invoiceID, reg.ID)
}

// registrationInvoice creates and issues the tenant-mode invoice for a registration
func (s *paymentService) registrationInvoice(ctx context.Context, tenant *domain.Tenant, reg *domain.Registration) (*domain.Invoice, error) {
	tax, err := s.ledger.taxFor(ctx, tenant, domain.FinanceModeTenant, "")
	if err != nil {
		return nil, err
	}

	description := "Registration"
	if event, err := s.ledger.repos.Events.GetByID(ctx, tenant.ID, reg.EventID); err == nil && event != nil {
		description = event.Name
	}
	item := domain.LineItem{Description: description, Quantity: 1, UnitPrice: reg.Amount}
	if reg.Quantity > 1 && reg.Amount%int64(reg.Quantity) == 0 {
		item.Quantity = int64(reg.Quantity)
		item.UnitPrice = reg.Amount / int64(reg.Quantity)
	}

	inv, err := domain.NewInvoice(tenant.ID, domain.FinanceModeTenant, domain.RecipientRegistration, reg.ID, reg.Currency,
		[]domain.LineItem{item}, tax)
	if err != nil {
		return nil, err
	}
	inv.EventID = reg.EventID
	inv.BillToName = reg.AttendeeName
	inv.BillToEmail = reg.Email
	if err := s.ledger.issue(ctx, tenant, inv, nil); err != nil {
		return nil, err
	}
	if err := s.ledger.repos.Invoices.Create(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *paymentService) CheckoutInvoice(ctx context.Context, tenantID, invoiceID string, req *dto.CheckoutRequest) (*dto.CheckoutResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "payment.checkout_invoice")
	defer span.End()

	provider, err := s.registry.Get(req.Gateway)
	if err != nil {
		return nil, err
	}
	inv, err := s.ledger.repos.Invoices.GetByID(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, ErrInvoiceNotFound
	}
	if inv.Status != domain.InvoiceStatusIssued && inv.Status != domain.InvoiceStatusPartiallyPaid {
		return nil, fmt.Errorf("%w: invoice is %s", ErrNothingToPay, inv.Status)
	}

	regID := ""
	if inv.RecipientType == domain.RecipientRegistration {
		regID = inv.RecipientID
	}
	return s.startPayment(ctx, provider, &gateway.CreatePaymentRequest{
		Amount:      inv.Balance(),
		Currency:    inv.Currency,
		Description: "Invoice " + inv.Number,
		Email:       inv.BillToEmail,
		Receipt:     inv.Number,
		Metadata: map[string]string{
			gateway.MetaTenantID:       tenantID,
			gateway.MetaInvoiceID:      inv.ID,
			gateway.MetaRegistrationID: regID,
		},
	}, tenantID, inv.ID, regID)
}

// startPayment calls the gateway and stores the pending record webhooks will reconcile
func (s *paymentService) startPayment(ctx context.Context, provider gateway.Provider, req *gateway.CreatePaymentRequest, tenantID, invoiceID, registrationID string) (*dto.CheckoutResponse, error) {
	for k, v := range req.Metadata {
		if v == "" {
			delete(req.Metadata, k)
		}
	}

	resp, err := provider.CreatePayment(ctx, req)
	if err != nil {
		telemetry.SetSpanError(ctx, err)
		logger.ErrorCtx(ctx, "gateway checkout failed",
			zap.String("gateway", string(provider.Name())),
			zap.String("tenant_id", tenantID),
			zap.Error(err),
		)
		return nil, err
	}

	gwID := resp.PaymentID
	if gwID == "" {
		gwID = resp.OrderID
	}
	rec, err := domain.NewPaymentRecord(tenantID, resp.Gateway, gwID, req.Amount, req.Currency)
	if err != nil {
		return nil, err
	}
	rec.GatewayOrderID = resp.OrderID
	rec.InvoiceID = invoiceID
	rec.RegistrationID = registrationID

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		stored, _, err := s.ledger.repos.Payments.UpsertByGatewayID(ctx, rec)
		if err != nil {
			return err
		}
		rec = stored
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.InfoCtx(ctx, "checkout started",
		zap.String("gateway", string(rec.Gateway)),
		zap.String("payment_id", rec.ID),
		zap.String("invoice_id", invoiceID),
		zap.String("registration_id", registrationID),
		zap.Int64("amount", rec.Amount),
	)
	return &dto.CheckoutResponse{
		Gateway:          rec.Gateway,
		PaymentID:        rec.ID,
		GatewayPaymentID: resp.PaymentID,
		GatewayOrderID:   resp.OrderID,
		ClientSecret:     resp.ClientSecret,
		PublicKey:        resp.PublicKey,
		Amount:           rec.Amount,
		Currency:         rec.Currency,
	}, nil
}

func (s *paymentService) GetByID(ctx context.Context, tenantID, id string) (*domain.PaymentRecord, error) {
	rec, err := s.ledger.repos.Payments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil || rec.TenantID != tenantID {
		return nil, ErrPaymentNotFound
	}
	return rec, nil
}

func (s *paymentService) List(ctx context.Context, filter *dto.PaymentListFilter) ([]*domain.PaymentRecord, int, error) {
	filter.Normalize()
	return s.ledger.repos.Payments.List(ctx, filter)
}

func (s *paymentService) Refunds(ctx context.Context, tenantID, paymentID string) ([]*domain.Refund, error) {
	if _, err := s.GetByID(ctx, tenantID, paymentID); err != nil {
		return nil, err
	}
	return s.ledger.repos.Payments.ListRefunds(ctx, paymentID)
}
