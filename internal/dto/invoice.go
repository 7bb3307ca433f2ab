package dto

import (
	"time"

	"github.com/prohmpiriya/eventdesk/internal/domain"
)

// TaxStructureRequest creates or replaces a tax structure
type TaxStructureRequest struct {
	Name       string                `json:"name" yaml:"name" binding:"required,min=2,max=100"`
	Components []domain.TaxComponent `json:"components" yaml:"components" binding:"dive"`
	Inclusive  bool                  `json:"inclusive" yaml:"inclusive"`
	IsDefault  bool                  `json:"is_default" yaml:"is_default"`
}

// TaxSeedFile is the YAML document accepted by `eventdesk seed tax-structures`
type TaxSeedFile struct {
	TenantSlug string                `yaml:"tenant"`
	Structures []TaxStructureRequest `yaml:"tax_structures"`
}

// TaxPreviewRequest computes tax without persisting anything
type TaxPreviewRequest struct {
	Amount         int64                 `json:"amount" binding:"required,min=1"`
	TaxStructureID string                `json:"tax_structure_id" binding:"omitempty,uuid"`
	Components     []domain.TaxComponent `json:"components"`
	Inclusive      bool                  `json:"inclusive"`
}

// LineItemRequest is one invoice row
type LineItemRequest struct {
	Description string `json:"description" binding:"required,max=500"`
	Quantity    int64  `json:"quantity" binding:"required,min=1,max=1000000"`
	UnitPrice   int64  `json:"unit_price" binding:"min=0,max=10000000000000"`
}

// ToLineItems converts request rows to domain line items
func ToLineItems(items []LineItemRequest) []domain.LineItem {
	out := make([]domain.LineItem, 0, len(items))
	for _, it := range items {
		out = append(out, domain.LineItem{
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		})
	}
	return out
}

// CreateInvoiceRequest creates a draft invoice
type CreateInvoiceRequest struct {
	EventID        string               `json:"event_id" binding:"omitempty,uuid"`
	RecipientType  domain.RecipientType `json:"recipient_type" binding:"required,oneof=registration sponsor vendor exhibitor"`
	RecipientID    string               `json:"recipient_id" binding:"required"`
	BillToName     string               `json:"bill_to_name" binding:"required,max=255"`
	BillToEmail    string               `json:"bill_to_email" binding:"required,email"`
	Currency       string               `json:"currency" binding:"omitempty,len=3"`
	LineItems      []LineItemRequest    `json:"line_items" binding:"required,min=1,dive"`
	TaxStructureID string               `json:"tax_structure_id" binding:"omitempty,uuid"`
	Notes          string               `json:"notes" binding:"omitempty,max=2000"`
}

// UpdateInvoiceRequest edits a draft invoice
type UpdateInvoiceRequest struct {
	BillToName     *string           `json:"bill_to_name" binding:"omitempty,max=255"`
	BillToEmail    *string           `json:"bill_to_email" binding:"omitempty,email"`
	LineItems      []LineItemRequest `json:"line_items" binding:"omitempty,dive"`
	TaxStructureID *string           `json:"tax_structure_id" binding:"omitempty,uuid"`
	Notes          *string           `json:"notes" binding:"omitempty,max=2000"`
}

// IssueInvoiceRequest issues a draft invoice
type IssueInvoiceRequest struct {
	DueAt *time.Time `json:"due_at"`
}

// ManualPaymentRequest records money received outside the gateways
type ManualPaymentRequest struct {
	Amount    int64  `json:"amount" binding:"required,min=1"`
	Method    string `json:"method" binding:"required,oneof=cash bank_transfer cheque other"`
	Reference string `json:"reference" binding:"omitempty,max=255"`
}

// RefundRequest refunds part or all of an invoice's collected money
type RefundRequest struct {
	Amount    int64  `json:"amount" binding:"omitempty,min=1"`
	Reason    string `json:"reason" binding:"omitempty,max=500"`
	PaymentID string `json:"payment_id" binding:"omitempty,uuid"`
}

// InvoiceListFilter is bound from GET /invoices query parameters
type InvoiceListFilter struct {
	Pagination
	TenantID      string `form:"-"`
	EventID       string `form:"event_id" binding:"omitempty,uuid"`
	Status        string `form:"status"`
	RecipientType string `form:"recipient_type"`
	Search        string `form:"search"`
}

// PaymentListFilter narrows payment record queries
type PaymentListFilter struct {
	Pagination
	TenantID  string `form:"-"`
	InvoiceID string `form:"invoice_id" binding:"omitempty,uuid"`
	Gateway   string `form:"gateway" binding:"omitempty,oneof=stripe razorpay manual"`
	Status    string `form:"status"`
}

// WebhookLogFilter is bound from GET /webhook-logs query parameters
type WebhookLogFilter struct {
	Pagination
	TenantID  string `form:"-"`
	Gateway   string `form:"gateway" binding:"omitempty,oneof=stripe razorpay docusign"`
	Processed *bool  `form:"processed"`
	EventType string `form:"event_type"`
}

// InvoiceSummary aggregates a tenant's invoices for dashboards
type InvoiceSummary struct {
	Currency       string                         `json:"currency"`
	Collected      int64                          `json:"collected"`
	Outstanding    int64                          `json:"outstanding"`
	Refunded       int64                          `json:"refunded"`
	Disputed       int64                          `json:"disputed"`
	CountsByStatus map[domain.InvoiceStatus]int64 `json:"counts_by_status"`
}

// DashboardSummary is rendered on the tenant overview page
type DashboardSummary struct {
	Tenant             *domain.Tenant          `json:"tenant"`
	Invoices           InvoiceSummary          `json:"invoices"`
	RecentPayments     []*domain.PaymentRecord `json:"recent_payments"`
	UnprocessedHooks   []*domain.WebhookLog    `json:"unprocessed_webhooks"`
	UpcomingEvents     []*domain.Event         `json:"upcoming_events"`
	RegistrationsToday int64                   `json:"registrations_today"`
}
