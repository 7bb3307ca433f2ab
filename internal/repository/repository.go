package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prohmpiriya/eventdesk/internal/domain"
	"github.com/prohmpiriya/eventdesk/internal/dto"
	"github.com/prohmpiriya/eventdesk/pkg/middleware"
	"gorm.io/gorm"
)

// ErrDuplicate is returned when a unique constraint rejects a write
var ErrDuplicate = errors.New("duplicate entry")

// ErrNotUpdated is returned when an update matched no row
var ErrNotUpdated = errors.New("no row updated")

// TenantRepository defines the interface for tenant data access
type TenantRepository interface {
	Create(ctx context.Context, tenant *domain.Tenant) error
	GetByID(ctx context.Context, id string) (*domain.Tenant, error)
	// GetByIDForUpdate locks the tenant row for the current transaction
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Tenant, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error)
	List(ctx context.Context, filter *dto.TenantListFilter) ([]*domain.Tenant, int, error)
	Update(ctx context.Context, tenant *domain.Tenant) error
	Delete(ctx context.Context, id string) error
	UpdateFinanceMode(ctx context.Context, tenant *domain.Tenant) error
	CreateFinanceModeMigration(ctx context.Context, m *domain.FinanceModeMigration) error
	ListFinanceModeMigrations(ctx context.Context, tenantID string) ([]*domain.FinanceModeMigration, error)
}

// UserRepository defines the interface for operator accounts
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*domain.User, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}

// EventRepository defines the interface for events
type EventRepository interface {
	Create(ctx context.Context, event *domain.Event) error
	GetByID(ctx context.Context, tenantID, id string) (*domain.Event, error)
	List(ctx context.Context, filter *dto.EventListFilter) ([]*domain.Event, int64, error)
	ListUpcoming(ctx context.Context, tenantID string, from time.Time, limit int) ([]*domain.Event, error)
	Update(ctx context.Context, event *domain.Event) error
	Delete(ctx context.Context, tenantID, id string) error
}

// RegistrationRepository defines the interface for registrations (orders)
type RegistrationRepository interface {
	Create(ctx context.Context, r *domain.Registration) error
	GetByID(ctx context.Context, id string) (*domain.Registration, error)
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Registration, error)
	Update(ctx context.Context, r *domain.Registration) error
	List(ctx context.Context, filter *dto.RegistrationListFilter) ([]*domain.Registration, int, error)
	CountSince(ctx context.Context, tenantID string, since time.Time) (int64, error)
	SumQuantity(ctx context.Context, eventID string) (int64, error)
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Registration, error)
}

// SeatRepository defines the interface for floor plan seats
type SeatRepository interface {
	CreateBatch(ctx context.Context, seats []*domain.Seat) (int64, error)
	ListByFloorPlan(ctx context.Context, floorPlanID string) ([]*domain.Seat, error)
	GetByIDs(ctx context.Context, floorPlanID string, ids []string) ([]*domain.Seat, error)
	// Book marks every listed seat booked; it fails without changes unless all are available
	Book(ctx context.Context, floorPlanID string, ids []string, registrationID string) error
	ReleaseByRegistration(ctx context.Context, registrationID string) (int64, error)
	SetBlocked(ctx context.Context, floorPlanID string, ids []string, blocked bool) (int64, error)
}

// TaxStructureRepository defines the interface for tenant tax structures
type TaxStructureRepository interface {
	Create(ctx context.Context, ts *domain.TaxStructure) error
	GetByID(ctx context.Context, tenantID, id string) (*domain.TaxStructure, error)
	GetDefault(ctx context.Context, tenantID string) (*domain.TaxStructure, error)
	List(ctx context.Context, tenantID string, activeOnly bool) ([]*domain.TaxStructure, error)
	Update(ctx context.Context, ts *domain.TaxStructure) error
	SetDefault(ctx context.Context, tenantID, id string) error
	Deactivate(ctx context.Context, tenantID, id string) error
}

// InvoiceRepository defines the interface for invoices and invoice numbering
type InvoiceRepository interface {
	Create(ctx context.Context, inv *domain.Invoice) error
	GetByID(ctx context.Context, tenantID, id string) (*domain.Invoice, error)
	// GetByIDForUpdate locks the invoice row; tenantID may be empty for gateway callbacks
	GetByIDForUpdate(ctx context.Context, tenantID, id string) (*domain.Invoice, error)
	GetByRecipient(ctx context.Context, tenantID string, recipientType domain.RecipientType, recipientID string) (*domain.Invoice, error)
	Update(ctx context.Context, inv *domain.Invoice) error
	List(ctx context.Context, filter *dto.InvoiceListFilter) ([]*domain.Invoice, int, error)
	CountByStatus(ctx context.Context, tenantID string, status domain.InvoiceStatus) (int64, error)
	Summary(ctx context.Context, tenantID string) (*dto.InvoiceSummary, error)
	NextLegacyNumber(ctx context.Context) (int64, error)
	NextTenantSequence(ctx context.Context, tenantID string, year int) (int64, error)
}

// PaymentRepository defines the interface for payment records, refunds and disputes
type PaymentRepository interface {
	// UpsertByGatewayID inserts p unless (gateway, gateway_payment_id) exists and returns the stored,
	// row-locked record and whether it was created
	UpsertByGatewayID(ctx context.Context, p *domain.PaymentRecord) (*domain.PaymentRecord, bool, error)
	Create(ctx context.Context, p *domain.PaymentRecord) error
	GetByID(ctx context.Context, id string) (*domain.PaymentRecord, error)
	GetByGatewayID(ctx context.Context, gateway domain.Gateway, gatewayPaymentID string) (*domain.PaymentRecord, error)
	GetByGatewayOrderID(ctx context.Context, gateway domain.Gateway, orderID string) (*domain.PaymentRecord, error)
	Update(ctx context.Context, p *domain.PaymentRecord) error
	List(ctx context.Context, filter *dto.PaymentListFilter) ([]*domain.PaymentRecord, int, error)
	CountByStatus(ctx context.Context, tenantID string, status domain.PaymentStatus) (int64, error)
	// HasLivePayment reports whether a non-failed payment exists for the registration or its invoice
	HasLivePayment(ctx context.Context, registrationID, invoiceID string) (bool, error)

	// CreateRefund returns false when the gateway refund ID was already recorded
	CreateRefund(ctx context.Context, r *domain.Refund) (bool, error)
	ListRefunds(ctx context.Context, paymentID string) ([]*domain.Refund, error)

	// CreateDispute returns false when the gateway dispute ID was already recorded
	CreateDispute(ctx context.Context, d *domain.Dispute) (bool, error)
	GetDisputeByGatewayID(ctx context.Context, gatewayDisputeID string) (*domain.Dispute, error)
	UpdateDispute(ctx context.Context, d *domain.Dispute) error
}

// WebhookLogRepository defines the interface for the inbound webhook audit table
type WebhookLogRepository interface {
	// Record inserts the log unless (gateway, event_id) exists and returns the stored row
	// and whether it was inserted
	Record(ctx context.Context, l *domain.WebhookLog) (*domain.WebhookLog, bool, error)
	GetByID(ctx context.Context, id string) (*domain.WebhookLog, error)
	MarkProcessed(ctx context.Context, l *domain.WebhookLog) error
	MarkFailed(ctx context.Context, l *domain.WebhookLog) error
	List(ctx context.Context, filter *dto.WebhookLogFilter) ([]*domain.WebhookLog, int, error)
	ListUnprocessed(ctx context.Context, limit int) ([]*domain.WebhookLog, error)
}

// AuditRepository persists audit entries written by the audit middleware
type AuditRepository interface {
	middleware.AuditWriter
}

// PartnerRepository defines the interface for sponsors, vendors and exhibitors
type PartnerRepository interface {
	CreateSponsor(ctx context.Context, s *domain.Sponsor) error
	GetSponsor(ctx context.Context, tenantID, id string) (*domain.Sponsor, error)
	ListSponsors(ctx context.Context, filter *dto.PartnerListFilter) ([]*domain.Sponsor, int64, error)
	UpdateSponsor(ctx context.Context, s *domain.Sponsor) error

	CreateVendor(ctx context.Context, v *domain.Vendor) error
	GetVendor(ctx context.Context, tenantID, id string) (*domain.Vendor, error)
	ListVendors(ctx context.Context, filter *dto.PartnerListFilter) ([]*domain.Vendor, int64, error)
	UpdateVendor(ctx context.Context, v *domain.Vendor) error

	CreateExhibitor(ctx context.Context, e *domain.Exhibitor) error
	GetExhibitor(ctx context.Context, tenantID, id string) (*domain.Exhibitor, error)
	ListExhibitors(ctx context.Context, filter *dto.PartnerListFilter) ([]*domain.Exhibitor, int64, error)
	UpdateExhibitor(ctx context.Context, e *domain.Exhibitor) error

	// Delete removes a partner row of the given kind
	Delete(ctx context.Context, kind domain.RecipientType, tenantID, id string) error
}

// FloorPlanRepository defines the interface for floor plans
type FloorPlanRepository interface {
	Create(ctx context.Context, fp *domain.FloorPlan) error
	GetByID(ctx context.Context, tenantID, id string) (*domain.FloorPlan, error)
	ListByEvent(ctx context.Context, tenantID, eventID string) ([]*domain.FloorPlan, error)
	Update(ctx context.Context, fp *domain.FloorPlan) error
}

// SignatureRepository defines the interface for signature requests and their history
type SignatureRepository interface {
	Create(ctx context.Context, r *domain.SignatureRequest) error
	GetByID(ctx context.Context, tenantID, id string) (*domain.SignatureRequest, error)
	GetByEnvelopeID(ctx context.Context, envelopeID string) (*domain.SignatureRequest, error)
	List(ctx context.Context, filter *dto.SignatureListFilter) ([]*domain.SignatureRequest, int64, error)
	// SaveTransition updates the request and appends the transition atomically
	SaveTransition(ctx context.Context, r *domain.SignatureRequest, t *domain.SignatureTransition) error
	// UpdateDetails updates non-status fields
	UpdateDetails(ctx context.Context, r *domain.SignatureRequest) error
	History(ctx context.Context, requestID string) ([]*domain.SignatureTransition, error)
}

// isUniqueViolation reports whether err is a PostgreSQL unique_violation
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// nullStringOrValue returns nil for empty strings so optional columns store NULL
func nullStringOrValue(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
