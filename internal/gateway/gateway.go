package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prohmpiriya/eventdesk/internal/domain"
)

// Metadata keys attached to gateway payments so webhooks can be routed back
const (
	MetaTenantID       = "tenant_id"
	MetaRegistrationID = "registration_id"
	MetaInvoiceID      = "invoice_id"
)

var (
	// ErrInvalidSignature is returned when a webhook signature is missing or wrong
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrMalformedPayload is returned when a verified webhook cannot be decoded
	ErrMalformedPayload = errors.New("malformed webhook payload")
	// ErrNotConfigured is returned when a gateway has no credentials
	ErrNotConfigured = errors.New("payment gateway not configured")
)

// EventKind is the normalized meaning of a gateway webhook
type EventKind string

const (
	KindPaymentSucceeded EventKind = "payment_succeeded"
	KindPaymentFailed    EventKind = "payment_failed"
	KindRefundUpdated    EventKind = "refund_updated"
	KindDisputeOpened    EventKind = "dispute_opened"
	KindDisputeClosed    EventKind = "dispute_closed"
	KindIgnored          EventKind = "ignored"
)

// WebhookEvent is a gateway webhook reduced to what reconciliation needs
type WebhookEvent struct {
	Gateway        domain.Gateway
	EventID        string
	RawType        string
	Kind           EventKind
	PaymentID      string
	OrderID        string
	Amount         int64
	Currency       string
	Method         string
	RefundID       string
	RefundAmount   int64 // this refund alone
	RefundedTotal  int64 // cumulative refunded on the payment, 0 when the gateway did not say
	DisputeID      string
	DisputeAmount  int64
	DisputeStatus  string
	DisputeReason  string
	FailureCode    string
	FailureMessage string
	Metadata       map[string]string
	Payload        json.RawMessage
}

// TenantID returns the tenant routed through payment metadata
func (e *WebhookEvent) TenantID() string {
	return e.Metadata[MetaTenantID]
}

// InvoiceID returns the invoice routed through payment metadata
func (e *WebhookEvent) InvoiceID() string {
	return e.Metadata[MetaInvoiceID]
}

// RegistrationID returns the registration routed through payment metadata
func (e *WebhookEvent) RegistrationID() string {
	return e.Metadata[MetaRegistrationID]
}

// DisputeWon reports whether a closed dispute left the money with the merchant.
// A Stripe inquiry that closes without escalating ends as warning_closed.
func (e *WebhookEvent) DisputeWon() bool {
	switch e.DisputeStatus {
	case "won", "warning_closed":
		return true
	}
	return false
}

// PaymentGateway creates payments and refunds on a provider
type PaymentGateway interface {
	Name() domain.Gateway
	// CreatePayment starts a payment the payer completes client-side
	CreatePayment(ctx context.Context, req *CreatePaymentRequest) (*CreatePaymentResponse, error)
	// Refund returns money for a captured payment
	Refund(ctx context.Context, req *RefundRequest) (*RefundResponse, error)
}

// WebhookParser authenticates and decodes a provider's webhooks
type WebhookParser interface {
	Name() domain.Gateway
	// VerifyWebhook checks the signature over the raw body and returns the event ID
	VerifyWebhook(payload []byte, header http.Header) (string, error)
	// ParseWebhook decodes an already verified (or stored) payload
	ParseWebhook(eventID string, payload []byte) (*WebhookEvent, error)
}

// Provider is a gateway that both takes payments and sends webhooks
type Provider interface {
	PaymentGateway
	WebhookParser
}

// CreatePaymentRequest describes a payment to start
type CreatePaymentRequest struct {
	Amount      int64
	Currency    string
	Description string
	Email       string
	Receipt     string
	Metadata    map[string]string
}

// CreatePaymentResponse carries what the client needs to complete payment
type CreatePaymentResponse struct {
	Gateway      domain.Gateway
	PaymentID    string // Stripe PaymentIntent ID; empty for Razorpay until capture
	OrderID      string // Razorpay order ID
	ClientSecret string
	PublicKey    string
	Status       string
}

// RefundRequest describes a refund of a captured payment
type RefundRequest struct {
	PaymentID string
	Amount    int64
	Reason    string
	Metadata  map[string]string
}

// RefundResponse is the provider's acknowledgement of a refund
type RefundResponse struct {
	RefundID string
	Status   string
	Amount   int64
}

// Registry looks up configured providers by name
type Registry struct {
	providers map[domain.Gateway]Provider
}

// NewRegistry registers the non-nil providers
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[domain.Gateway]Provider)}
	for _, p := range providers {
		if p != nil {
			r.providers[p.Name()] = p
		}
	}
	return r
}

// Get returns a provider or ErrNotConfigured
func (r *Registry) Get(name domain.Gateway) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, ErrNotConfigured
	}
	return p, nil
}

// Names lists the configured providers
func (r *Registry) Names() []domain.Gateway {
	names := make([]domain.Gateway, 0, len(r.providers))
	for _, g := range []domain.Gateway{domain.GatewayStripe, domain.GatewayRazorpay} {
		if _, ok := r.providers[g]; ok {
			names = append(names, g)
		}
	}
	return names
}
