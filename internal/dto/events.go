package dto

import (
	"time"
)

// Topic names for finance events
const (
	TopicPaymentSucceeded   = "finance.payment.succeeded"
	TopicPaymentFailed      = "finance.payment.failed"
	TopicRefundProcessed    = "finance.refund.processed"
	TopicDisputeUpdated     = "finance.dispute.updated"
	TopicInvoiceStatus      = "finance.invoice.status"
	TopicFinanceModeChanged = "finance.mode.changed"
)

// Finance event types carried in FinanceEvent.EventType
const (
	EventTypePaymentSucceeded = "payment.succeeded"
	EventTypePaymentFailed    = "payment.failed"
	EventTypeRefundProcessed  = "refund.processed"
	EventTypeDisputeOpened    = "dispute.opened"
	EventTypeDisputeClosed    = "dispute.closed"
	EventTypeInvoiceStatus    = "invoice.status_changed"
	EventTypeModeChanged      = "finance_mode.changed"
)

// FinanceEvent is published after a reconciliation commits
type FinanceEvent struct {
	EventType        string    `json:"event_type"`
	TenantID         string    `json:"tenant_id"`
	Gateway          string    `json:"gateway,omitempty"`
	GatewayEventID   string    `json:"gateway_event_id,omitempty"`
	PaymentID        string    `json:"payment_id,omitempty"`
	GatewayPaymentID string    `json:"gateway_payment_id,omitempty"`
	InvoiceID        string    `json:"invoice_id,omitempty"`
	InvoiceNumber    string    `json:"invoice_number,omitempty"`
	InvoiceStatus    string    `json:"invoice_status,omitempty"`
	RegistrationID   string    `json:"registration_id,omitempty"`
	PaymentStatus    string    `json:"payment_status,omitempty"`
	Amount           int64     `json:"amount"`
	Currency         string    `json:"currency,omitempty"`
	FinanceMode      string    `json:"finance_mode,omitempty"`
	FailureCode      string    `json:"failure_code,omitempty"`
	Message          string    `json:"message,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// Key returns the Kafka message key for partitioning.
// Events for one invoice (or payment when there is none) stay ordered.
func (e *FinanceEvent) Key() string {
	if e.InvoiceID != "" {
		return e.InvoiceID
	}
	if e.PaymentID != "" {
		return e.PaymentID
	}
	return e.TenantID
}

// Topic maps the event type to its topic
func (e *FinanceEvent) Topic() string {
	switch e.EventType {
	case EventTypePaymentSucceeded:
		return TopicPaymentSucceeded
	case EventTypePaymentFailed:
		return TopicPaymentFailed
	case EventTypeRefundProcessed:
		return TopicRefundProcessed
	case EventTypeDisputeOpened, EventTypeDisputeClosed:
		return TopicDisputeUpdated
	case EventTypeModeChanged:
		return TopicFinanceModeChanged
	default:
		return TopicInvoiceStatus
	}
}
