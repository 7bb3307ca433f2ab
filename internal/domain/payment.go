package domain

import (
	"time"

	"github.com/google/uuid"
)

// Gateway identifies where money was collected
type Gateway string

const (
	GatewayStripe   Gateway = "stripe"
	GatewayRazorpay Gateway = "razorpay"
	GatewayManual   Gateway = "manual"
)

// IsValid reports whether g is a known gateway
func (g Gateway) IsValid() bool {
	return g == GatewayStripe || g == GatewayRazorpay || g == GatewayManual
}

// PaymentStatus represents the state of a payment record
type PaymentStatus string

const (
	PaymentStatusPending           PaymentStatus = "pending"
	PaymentStatusSucceeded         PaymentStatus = "succeeded"
	PaymentStatusFailed            PaymentStatus = "failed"
	PaymentStatusPartiallyRefunded PaymentStatus = "partially_refunded"
	PaymentStatusRefunded          PaymentStatus = "refunded"
	PaymentStatusDisputed          PaymentStatus = "disputed"
	PaymentStatusDisputeLost       PaymentStatus = "dispute_lost"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:           {PaymentStatusSucceeded, PaymentStatusFailed},
	PaymentStatusFailed:            {PaymentStatusSucceeded},
	PaymentStatusSucceeded:         {PaymentStatusPartiallyRefunded, PaymentStatusRefunded, PaymentStatusDisputed},
	PaymentStatusPartiallyRefunded: {PaymentStatusRefunded, PaymentStatusDisputed},
	PaymentStatusDisputed:          {PaymentStatusSucceeded, PaymentStatusPartiallyRefunded, PaymentStatusDisputeLost},
}

// PaymentRecord is money moved through a gateway for an invoice or registration
type PaymentRecord struct {
	ID               string        `json:"id"`
	TenantID         string        `json:"tenant_id"`
	InvoiceID        string        `json:"invoice_id,omitempty"`
	RegistrationID   string        `json:"registration_id,omitempty"`
	Gateway          Gateway       `json:"gateway"`
	GatewayPaymentID string        `json:"gateway_payment_id"`
	GatewayOrderID   string        `json:"gateway_order_id,omitempty"`
	Amount           int64         `json:"amount"`
	Currency         string        `json:"currency"`
	Status           PaymentStatus `json:"status"`
	AmountRefunded   int64         `json:"amount_refunded"`
	Method           string        `json:"method,omitempty"`
	FailureCode      string        `json:"failure_code,omitempty"`
	FailureMessage   string        `json:"failure_message,omitempty"`
	ProcessedAt      *time.Time    `json:"processed_at,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// NewPaymentRecord creates a pending record keyed by its gateway ID
func NewPaymentRecord(tenantID string, gateway Gateway, gatewayPaymentID string, amount int64, currency string) (*PaymentRecord, error) {
	if tenantID == "" {
		return nil, ErrMissingTenant
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if gatewayPaymentID == "" {
		gatewayPaymentID = uuid.New().String()
	}

	now := time.Now()
	return &PaymentRecord{
		ID:               uuid.New().String(),
		TenantID:         tenantID,
		Gateway:          gateway,
		GatewayPaymentID: gatewayPaymentID,
		Amount:           amount,
		Currency:         currency,
		Status:           PaymentStatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// CanTransitionTo checks the payment transition table
func (p *PaymentRecord) CanTransitionTo(target PaymentStatus) bool {
	for _, s := range paymentTransitions[p.Status] {
		if s == target {
			return true
		}
	}
	return false
}

func (p *PaymentRecord) transition(target PaymentStatus) error {
	if !p.CanTransitionTo(target) {
		return transitionErr("payment", string(p.Status), string(target))
	}
	p.Status = target
	p.UpdatedAt = time.Now()
	return nil
}

// HasCollected reports whether the record's amount has been counted as received
func (p *PaymentRecord) HasCollected() bool {
	switch p.Status {
	case PaymentStatusSucceeded, PaymentStatusPartiallyRefunded, PaymentStatusRefunded,
		PaymentStatusDisputed, PaymentStatusDisputeLost:
		return true
	}
	return false
}

// MarkSucceeded records a successful capture
func (p *PaymentRecord) MarkSucceeded(method string, at time.Time) error {
	if err := p.transition(PaymentStatusSucceeded); err != nil {
		return err
	}
	p.Method = method
	p.FailureCode = ""
	p.FailureMessage = ""
	p.ProcessedAt = &at
	return nil
}

// MarkFailed records a failed attempt. Repeated failures update the reason.
func (p *PaymentRecord) MarkFailed(code, message string, at time.Time) error {
	if p.Status != PaymentStatusFailed {
		if err := p.transition(PaymentStatusFailed); err != nil {
			return err
		}
	}
	p.FailureCode = code
	p.FailureMessage = message
	p.ProcessedAt = &at
	p.UpdatedAt = at
	return nil
}

// Refundable returns the amount not yet refunded
func (p *PaymentRecord) Refundable() int64 {
	return p.Amount - p.AmountRefunded
}

// ApplyRefund adds a refund to the record
func (p *PaymentRecord) ApplyRefund(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if amount > p.Refundable() {
		return ErrRefundExceedsPaid
	}

	target := PaymentStatusPartiallyRefunded
	if p.AmountRefunded+amount == p.Amount {
		target = PaymentStatusRefunded
	}
	if p.Status != target {
		if err := p.transition(target); err != nil {
			return err
		}
	}
	p.AmountRefunded += amount
	p.UpdatedAt = time.Now()
	return nil
}

// OpenDispute moves a collected payment into dispute
func (p *PaymentRecord) OpenDispute() error {
	if p.Status == PaymentStatusDisputed {
		return nil
	}
	return p.transition(PaymentStatusDisputed)
}

// CloseDispute resolves a dispute on the record
func (p *PaymentRecord) CloseDispute(won bool) error {
	if !won {
		return p.transition(PaymentStatusDisputeLost)
	}
	if p.AmountRefunded > 0 {
		return p.transition(PaymentStatusPartiallyRefunded)
	}
	return p.transition(PaymentStatusSucceeded)
}

// RefundStatus represents the state of a refund
type RefundStatus string

const (
	RefundStatusPending   RefundStatus = "pending"
	RefundStatusSucceeded RefundStatus = "succeeded"
	RefundStatusFailed    RefundStatus = "failed"
)

// Refund is money returned against a payment record
type Refund struct {
	ID              string       `json:"id"`
	TenantID        string       `json:"tenant_id"`
	PaymentID       string       `json:"payment_id"`
	InvoiceID       string       `json:"invoice_id,omitempty"`
	GatewayRefundID string       `json:"gateway_refund_id"`
	Amount          int64        `json:"amount"`
	Currency        string       `json:"currency"`
	Status          RefundStatus `json:"status"`
	Reason          string       `json:"reason,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
}

// NewRefund creates a succeeded refund for a payment record
func NewRefund(p *PaymentRecord, gatewayRefundID string, amount int64, reason string) *Refund {
	if gatewayRefundID == "" {
		gatewayRefundID = uuid.New().String()
	}
	return &Refund{
		ID:              uuid.New().String(),
		TenantID:        p.TenantID,
		PaymentID:       p.ID,
		InvoiceID:       p.InvoiceID,
		GatewayRefundID: gatewayRefundID,
		Amount:          amount,
		Currency:        p.Currency,
		Status:          RefundStatusSucceeded,
		Reason:          reason,
		CreatedAt:       time.Now(),
	}
}

// DisputeStatus represents the outcome of a chargeback
type DisputeStatus string

const (
	DisputeStatusOpen DisputeStatus = "open"
	DisputeStatusWon  DisputeStatus = "won"
	DisputeStatusLost DisputeStatus = "lost"
)

// Dispute is a chargeback raised by the payer's bank
type Dispute struct {
	ID               string        `json:"id"`
	TenantID         string        `json:"tenant_id"`
	PaymentID        string        `json:"payment_id"`
	GatewayDisputeID string        `json:"gateway_dispute_id"`
	Amount           int64         `json:"amount"`
	Currency         string        `json:"currency"`
	Reason           string        `json:"reason,omitempty"`
	Status           DisputeStatus `json:"status"`
	OpenedAt         time.Time     `json:"opened_at"`
	ClosedAt         *time.Time    `json:"closed_at,omitempty"`
}

// NewDispute opens a dispute on a payment record
func NewDispute(p *PaymentRecord, gatewayDisputeID string, amount int64, reason string) *Dispute {
	if amount <= 0 || amount > p.Refundable() {
		amount = p.Refundable()
	}
	return &Dispute{
		ID:               uuid.New().String(),
		TenantID:         p.TenantID,
		PaymentID:        p.ID,
		GatewayDisputeID: gatewayDisputeID,
		Amount:           amount,
		Currency:         p.Currency,
		Reason:           reason,
		Status:           DisputeStatusOpen,
		OpenedAt:         time.Now(),
	}
}

// Close records the dispute outcome
func (d *Dispute) Close(won bool, at time.Time) error {
	if d.Status != DisputeStatusOpen {
		return transitionErr("dispute", string(d.Status), "closed")
	}
	d.Status = DisputeStatusLost
	if won {
		d.Status = DisputeStatusWon
	}
	d.ClosedAt = &at
	return nil
}
