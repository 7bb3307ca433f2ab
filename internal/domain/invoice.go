package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// InvoiceStatus represents the state of an invoice
type InvoiceStatus string

const (
	InvoiceStatusDraft             InvoiceStatus = "draft"
	InvoiceStatusIssued            InvoiceStatus = "issued"
	InvoiceStatusPartiallyPaid     InvoiceStatus = "partially_paid"
	InvoiceStatusPaid              InvoiceStatus = "paid"
	InvoiceStatusPartiallyRefunded InvoiceStatus = "partially_refunded"
	InvoiceStatusRefunded          InvoiceStatus = "refunded"
	InvoiceStatusDisputed          InvoiceStatus = "disputed"
	InvoiceStatusVoid              InvoiceStatus = "void"
)

// AllInvoiceStatuses lists statuses in display order
var AllInvoiceStatuses = []InvoiceStatus{
	InvoiceStatusDraft,
	InvoiceStatusIssued,
	InvoiceStatusPartiallyPaid,
	InvoiceStatusPaid,
	InvoiceStatusPartiallyRefunded,
	InvoiceStatusRefunded,
	InvoiceStatusDisputed,
	InvoiceStatusVoid,
}

// RecipientType is the kind of party an invoice is billed to
type RecipientType string

const (
	RecipientRegistration RecipientType = "registration"
	RecipientSponsor      RecipientType = "sponsor"
	RecipientVendor       RecipientType = "vendor"
	RecipientExhibitor    RecipientType = "exhibitor"
)

// IsValid reports whether t is a known recipient type
func (t RecipientType) IsValid() bool {
	switch t {
	case RecipientRegistration, RecipientSponsor, RecipientVendor, RecipientExhibitor:
		return true
	}
	return false
}

// LineItem is one billed row
type LineItem struct {
	Description string `json:"description"`
	Quantity    int64  `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"`
	Amount      int64  `json:"amount"`
}

// Invoice is a bill to a registration or event partner
type Invoice struct {
	ID             string        `json:"id"`
	TenantID       string        `json:"tenant_id"`
	EventID        string        `json:"event_id,omitempty"`
	Number         string        `json:"number,omitempty"`
	RecipientType  RecipientType `json:"recipient_type"`
	RecipientID    string        `json:"recipient_id"`
	BillToName     string        `json:"bill_to_name"`
	BillToEmail    string        `json:"bill_to_email"`
	Currency       string        `json:"currency"`
	LineItems      []LineItem    `json:"line_items"`
	Subtotal       int64         `json:"subtotal"`
	TaxTotal       int64         `json:"tax_total"`
	Total          int64         `json:"total"`
	AmountPaid     int64         `json:"amount_paid"`
	AmountRefunded int64         `json:"amount_refunded"`
	AmountDisputed int64         `json:"amount_disputed"`
	Status         InvoiceStatus `json:"status"`
	FinanceMode    FinanceMode   `json:"finance_mode"`
	TaxStructureID string        `json:"tax_structure_id,omitempty"`
	TaxBreakdown   *TaxBreakdown `json:"tax_breakdown,omitempty"`
	Notes          string        `json:"notes,omitempty"`
	DueAt          *time.Time    `json:"due_at,omitempty"`
	IssuedAt       *time.Time    `json:"issued_at,omitempty"`
	PaidAt         *time.Time    `json:"paid_at,omitempty"`
	VoidedAt       *time.Time    `json:"voided_at,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// NewInvoice creates a draft invoice and prices it with tax
func NewInvoice(tenantID string, mode FinanceMode, recipientType RecipientType, recipientID, currency string, items []LineItem, tax *TaxStructure) (*Invoice, error) {
	if tenantID == "" {
		return nil, ErrMissingTenant
	}
	if !mode.IsValid() {
		return nil, ErrInvalidFinanceMode
	}
	if !recipientType.IsValid() {
		return nil, fmt.Errorf("invalid recipient type %q", recipientType)
	}

	now := time.Now()
	inv := &Invoice{
		ID:            uuid.New().String(),
		TenantID:      tenantID,
		RecipientType: recipientType,
		RecipientID:   recipientID,
		Currency:      strings.ToUpper(currency),
		Status:        InvoiceStatusDraft,
		FinanceMode:   mode,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := inv.SetLineItems(items, tax); err != nil {
		return nil, err
	}
	return inv, nil
}

// MaxInvoiceAmount bounds a line amount and an invoice subtotal in minor units
const MaxInvoiceAmount int64 = 10_000_000_000_000

// SetLineItems replaces the items of a draft invoice and recomputes the totals
func (i *Invoice) SetLineItems(items []LineItem, tax *TaxStructure) error {
	if i.Status != InvoiceStatusDraft {
		return transitionErr("invoice", string(i.Status), "edit")
	}
	if len(items) == 0 {
		return ErrEmptyInvoice
	}

	var subtotal int64
	priced := make([]LineItem, len(items))
	for n, item := range items {
		if item.Quantity <= 0 {
			return ErrInvalidQuantity
		}
		if item.UnitPrice < 0 {
			return ErrInvalidAmount
		}
		if item.UnitPrice > MaxInvoiceAmount/item.Quantity {
			return ErrAmountTooLarge
		}
		item.Amount = item.UnitPrice * item.Quantity
		if subtotal > MaxInvoiceAmount-item.Amount {
			return ErrAmountTooLarge
		}
		subtotal += item.Amount
		priced[n] = item
	}
	i.LineItems = priced

	if tax == nil {
		tax = LegacyTaxStructure(0)
	}
	b := tax.Compute(subtotal)
	i.Subtotal = b.Subtotal
	i.TaxTotal = b.TaxTotal
	i.Total = b.Total
	i.TaxBreakdown = &b
	i.TaxStructureID = tax.ID
	i.UpdatedAt = time.Now()
	return nil
}

// Balance returns the amount still owed
func (i *Invoice) Balance() int64 {
	return i.Total - i.AmountPaid
}

// Refundable returns how much of the collected money can still be refunded
func (i *Invoice) Refundable() int64 {
	return i.AmountPaid - i.AmountRefunded - i.AmountDisputed
}

// IsSettled reports whether the invoice needs no further payment
func (i *Invoice) IsSettled() bool {
	return i.Status == InvoiceStatusPaid || (i.Total > 0 && i.AmountPaid >= i.Total)
}

// Issue assigns a number and makes a draft invoice payable
func (i *Invoice) Issue(number string, dueAt *time.Time) error {
	if i.Status != InvoiceStatusDraft {
		return transitionErr("invoice", string(i.Status), string(InvoiceStatusIssued))
	}
	if len(i.LineItems) == 0 {
		return ErrEmptyInvoice
	}
	now := time.Now()
	i.Number = number
	i.Status = InvoiceStatusIssued
	i.IssuedAt = &now
	i.DueAt = dueAt
	i.UpdatedAt = now
	return nil
}

// Void cancels an invoice that has not collected money
func (i *Invoice) Void() error {
	switch i.Status {
	case InvoiceStatusDraft:
	case InvoiceStatusIssued, InvoiceStatusPartiallyPaid:
		if i.AmountPaid > 0 {
			return ErrInvoiceHasPayment
		}
	default:
		return transitionErr("invoice", string(i.Status), string(InvoiceStatusVoid))
	}
	now := time.Now()
	i.Status = InvoiceStatusVoid
	i.VoidedAt = &now
	i.UpdatedAt = now
	return nil
}

// ApplyPayment records collected money on an issued invoice
func (i *Invoice) ApplyPayment(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if i.Status != InvoiceStatusIssued && i.Status != InvoiceStatusPartiallyPaid {
		return transitionErr("invoice", string(i.Status), string(InvoiceStatusPaid))
	}
	if i.AmountPaid+amount > i.Total {
		return ErrOverpayment
	}

	now := time.Now()
	i.AmountPaid += amount
	if i.AmountPaid == i.Total {
		i.Status = InvoiceStatusPaid
		i.PaidAt = &now
	} else {
		i.Status = InvoiceStatusPartiallyPaid
	}
	i.UpdatedAt = now
	return nil
}

// ApplyRefund records money returned to the payer
func (i *Invoice) ApplyRefund(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	switch i.Status {
	case InvoiceStatusPaid, InvoiceStatusPartiallyPaid, InvoiceStatusPartiallyRefunded:
	default:
		return transitionErr("invoice", string(i.Status), string(InvoiceStatusRefunded))
	}
	if amount > i.AmountPaid-i.AmountRefunded {
		return ErrRefundExceedsPaid
	}

	i.AmountRefunded += amount
	i.Status = i.settledStatus()
	i.UpdatedAt = time.Now()
	return nil
}

// OpenDispute freezes a paid invoice while the payer's bank investigates
func (i *Invoice) OpenDispute(amount int64) error {
	switch i.Status {
	case InvoiceStatusPaid, InvoiceStatusPartiallyPaid, InvoiceStatusPartiallyRefunded:
	case InvoiceStatusDisputed:
		return nil
	default:
		return transitionErr("invoice", string(i.Status), string(InvoiceStatusDisputed))
	}
	if limit := i.AmountPaid - i.AmountRefunded; amount > limit || amount <= 0 {
		amount = limit
	}
	i.AmountDisputed = amount
	i.Status = InvoiceStatusDisputed
	i.UpdatedAt = time.Now()
	return nil
}

// CloseDispute resolves a dispute. A lost dispute turns the disputed amount into a refund.
func (i *Invoice) CloseDispute(won bool) error {
	if i.Status != InvoiceStatusDisputed {
		return transitionErr("invoice", string(i.Status), "dispute_closed")
	}
	if !won {
		i.AmountRefunded += i.AmountDisputed
		if i.AmountRefunded > i.AmountPaid {
			i.AmountRefunded = i.AmountPaid
		}
	}
	i.AmountDisputed = 0
	i.Status = i.settledStatus()
	i.UpdatedAt = time.Now()
	return nil
}

// settledStatus derives the status of a non-draft, non-void invoice from its amounts
func (i *Invoice) settledStatus() InvoiceStatus {
	switch {
	case i.AmountRefunded > 0 && i.AmountRefunded >= i.AmountPaid:
		return InvoiceStatusRefunded
	case i.AmountRefunded > 0:
		return InvoiceStatusPartiallyRefunded
	case i.AmountPaid >= i.Total && i.AmountPaid > 0:
		return InvoiceStatusPaid
	case i.AmountPaid > 0:
		return InvoiceStatusPartiallyPaid
	default:
		return InvoiceStatusIssued
	}
}

// LegacyInvoiceNumber formats a number from the global sequence: INV-42
func LegacyInvoiceNumber(prefix string, seq int64) string {
	if prefix == "" {
		prefix = "INV"
	}
	return fmt.Sprintf("%s-%d", prefix, seq)
}

// TenantInvoiceNumber formats a per-tenant yearly number: ACME-2026-00042
func TenantInvoiceNumber(prefix string, year int, seq int64) string {
	return fmt.Sprintf("%s-%d-%05d", prefix, year, seq)
}
