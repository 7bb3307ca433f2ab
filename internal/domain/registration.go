package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// RegistrationStatus represents the order state of a registration
type RegistrationStatus string

const (
	RegistrationStatusPending   RegistrationStatus = "pending"
	RegistrationStatusConfirmed RegistrationStatus = "confirmed"
	RegistrationStatusCancelled RegistrationStatus = "cancelled"
	RegistrationStatusRefunded  RegistrationStatus = "refunded"
)

// RegistrationPaymentStatus tracks money received for a registration
type RegistrationPaymentStatus string

const (
	RegPaymentUnpaid            RegistrationPaymentStatus = "unpaid"
	RegPaymentPaid              RegistrationPaymentStatus = "paid"
	RegPaymentPartiallyRefunded RegistrationPaymentStatus = "partially_refunded"
	RegPaymentRefunded          RegistrationPaymentStatus = "refunded"
	RegPaymentDisputed          RegistrationPaymentStatus = "disputed"
)

var registrationTransitions = map[RegistrationStatus][]RegistrationStatus{
	RegistrationStatusPending:   {RegistrationStatusConfirmed, RegistrationStatusCancelled},
	RegistrationStatusConfirmed: {RegistrationStatusCancelled, RegistrationStatusRefunded},
}

// Registration is an attendee's order for tickets to an event
type Registration struct {
	ID            string                    `json:"id"`
	TenantID      string                    `json:"tenant_id"`
	EventID       string                    `json:"event_id"`
	AttendeeName  string                    `json:"attendee_name"`
	Email         string                    `json:"email"`
	Phone         string                    `json:"phone,omitempty"`
	Quantity      int                       `json:"quantity"`
	Amount        int64                     `json:"amount"`
	Currency      string                    `json:"currency"`
	Status        RegistrationStatus        `json:"status"`
	PaymentStatus RegistrationPaymentStatus `json:"payment_status"`
	InvoiceID     string                    `json:"invoice_id,omitempty"`
	FloorPlanID   string                    `json:"floor_plan_id,omitempty"`
	SeatIDs       []string                  `json:"seat_ids,omitempty"`
	ConfirmedAt   *time.Time                `json:"confirmed_at,omitempty"`
	CancelledAt   *time.Time                `json:"cancelled_at,omitempty"`
	CreatedAt     time.Time                 `json:"created_at"`
	UpdatedAt     time.Time                 `json:"updated_at"`
}

// NewRegistration prices a registration against its event.
// Free events are confirmed immediately.
func NewRegistration(event *Event, name, email, phone string, quantity int) (*Registration, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if strings.TrimSpace(name) == "" {
		return nil, ErrMissingName
	}
	email = NormalizeEmail(email)
	if !strings.Contains(email, "@") {
		return nil, ErrInvalidEmail
	}

	now := time.Now()
	r := &Registration{
		ID:            uuid.New().String(),
		TenantID:      event.TenantID,
		EventID:       event.ID,
		AttendeeName:  name,
		Email:         email,
		Phone:         phone,
		Quantity:      quantity,
		Amount:        event.TicketPrice * int64(quantity),
		Currency:      event.Currency,
		Status:        RegistrationStatusPending,
		PaymentStatus: RegPaymentUnpaid,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if r.Amount == 0 {
		r.Status = RegistrationStatusConfirmed
		r.ConfirmedAt = &now
	}
	return r, nil
}

// CanTransitionTo checks the registration transition table
func (r *Registration) CanTransitionTo(target RegistrationStatus) bool {
	for _, s := range registrationTransitions[r.Status] {
		if s == target {
			return true
		}
	}
	return false
}

func (r *Registration) transition(target RegistrationStatus) error {
	if !r.CanTransitionTo(target) {
		return transitionErr("registration", string(r.Status), string(target))
	}
	r.Status = target
	r.UpdatedAt = time.Now()
	return nil
}

// Confirm marks the registration paid and confirmed.
// Confirming an already confirmed registration is a no-op.
func (r *Registration) Confirm() error {
	if r.Status == RegistrationStatusConfirmed {
		r.PaymentStatus = RegPaymentPaid
		return nil
	}
	if err := r.transition(RegistrationStatusConfirmed); err != nil {
		return err
	}
	r.ConfirmedAt = &r.UpdatedAt
	if r.Amount > 0 {
		r.PaymentStatus = RegPaymentPaid
	}
	return nil
}

// Cancel cancels a pending or confirmed registration
func (r *Registration) Cancel() error {
	if err := r.transition(RegistrationStatusCancelled); err != nil {
		return err
	}
	r.CancelledAt = &r.UpdatedAt
	return nil
}

// MarkRefunded records a full refund of a confirmed registration
func (r *Registration) MarkRefunded() error {
	if r.Status == RegistrationStatusRefunded {
		return nil
	}
	if err := r.transition(RegistrationStatusRefunded); err != nil {
		return err
	}
	r.PaymentStatus = RegPaymentRefunded
	r.CancelledAt = &r.UpdatedAt
	return nil
}

// SetPaymentStatus updates the payment status without touching the order state
func (r *Registration) SetPaymentStatus(s RegistrationPaymentStatus) {
	r.PaymentStatus = s
	r.UpdatedAt = time.Now()
}

// HoldsSeats reports whether seats are attached
func (r *Registration) HoldsSeats() bool {
	return r.FloorPlanID != "" && len(r.SeatIDs) > 0
}
