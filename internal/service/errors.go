package service

import "errors"

var (
	ErrTenantNotFound       = errors.New("tenant not found")
	ErrTenantAlreadyExists  = errors.New("tenant with this slug already exists")
	ErrTenantInactive       = errors.New("tenant is inactive")
	ErrUserNotFound         = errors.New("user not found")
	ErrUserAlreadyExists    = errors.New("user with this email already exists")
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrInvalidRole          = errors.New("role cannot be assigned to tenant users")
	ErrEventNotFound        = errors.New("event not found")
	ErrEventSlugTaken       = errors.New("event slug already used by this tenant")
	ErrEventClosed          = errors.New("event is not open for registration")
	ErrEventSoldOut         = errors.New("event capacity reached")
	ErrRegistrationNotFound = errors.New("registration not found")
	ErrNothingToPay         = errors.New("nothing to pay")
	ErrInvoiceNotFound      = errors.New("invoice not found")
	ErrPaymentNotFound      = errors.New("payment record not found")
	ErrTaxStructureNotFound = errors.New("tax structure not found")
	ErrPartnerNotFound      = errors.New("partner not found")
	ErrSignatureNotFound    = errors.New("signature request not found")
	ErrFloorPlanNotFound    = errors.New("floor plan not found")
	ErrFloorPlanPublished   = errors.New("published floor plans cannot be edited")
	ErrWebhookLogNotFound   = errors.New("webhook log not found")
	ErrEmptyUpdate          = errors.New("at least one field must be provided for update")

	ErrSeatsUnavailable   = errors.New("one or more seats are not available")
	ErrSeatHoldLimit      = errors.New("seat hold limit reached")
	ErrSeatHoldMismatch   = errors.New("seats are not held by this hold token")
	ErrSeatCountMismatch  = errors.New("seat count must equal quantity")
	ErrSeatsNotConfigured = errors.New("seat holds are not available")

	// Finance mode gate
	ErrNoDefaultTaxStructure = errors.New("an active default tax structure is required")
	ErrDraftInvoicesPending  = errors.New("draft invoices must be issued or voided first")
	ErrPendingPayments       = errors.New("pending payments must settle first")
	ErrFinanceModeMismatch   = errors.New("operation not available in the tenant's finance mode")
	ErrMigrationBlocked      = errors.New("finance mode migration preconditions not met")

	// Reconciliation
	ErrWebhookInFlight   = errors.New("webhook event is already being processed")
	ErrUnroutableWebhook = errors.New("webhook cannot be routed to a tenant")
	ErrRefundNotAllowed  = errors.New("nothing refundable on this invoice")
)

// PermanentError marks a reconciliation failure that retrying cannot fix
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

func permanent(err error) error {
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err is a PermanentError
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
