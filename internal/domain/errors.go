package domain

import "errors"

// Validation and state errors shared by the entities in this package.
// Not-found errors live in the service layer.
var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrCurrencyMismatch  = errors.New("currency mismatch")
	ErrMissingTenant     = errors.New("tenant_id is required")
	ErrMissingName       = errors.New("name is required")
	ErrInvalidSlug       = errors.New("slug must match ^[a-z0-9-]+$")
	ErrInvalidEmail      = errors.New("invalid email")
	ErrInvalidSchedule   = errors.New("ends_at must be after starts_at")

	ErrInvalidFinanceMode      = errors.New("invalid finance mode")
	ErrFinanceModeIrreversible = errors.New("finance mode cannot be changed back to legacy")
	ErrFinanceModeUnchanged    = errors.New("tenant is already in the requested finance mode")

	ErrOverpayment       = errors.New("payment exceeds invoice balance")
	ErrRefundExceedsPaid = errors.New("refund exceeds refundable amount")
	ErrInvoiceHasPayment = errors.New("invoice with payments cannot be voided")
	ErrEmptyInvoice      = errors.New("invoice must have at least one line item")
	ErrAmountTooLarge    = errors.New("amount exceeds the invoice limit")

	ErrInvalidTaxRate = errors.New("tax rate must be between 0 and 10000 basis points")

	ErrInvalidRelatedType = errors.New("signature requests relate to a sponsor, vendor or exhibitor")

	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrInvalidGrid     = errors.New("seat grid dimensions must be positive")
	ErrSeatNotBookable = errors.New("seat is not available")
)

// TransitionError describes a rejected status change
type TransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return e.Entity + ": cannot transition from " + e.From + " to " + e.To
}

// Unwrap lets errors.Is match ErrInvalidTransition
func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

func transitionErr(entity, from, to string) error {
	return &TransitionError{Entity: entity, From: from, To: to}
}
