package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prohmpiriya/eventdesk/internal/domain"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeConfig holds the Stripe credentials the gateway needs
type StripeConfig struct {
	SecretKey        string
	PublishableKey   string
	WebhookSecret    string
	WebhookTolerance time.Duration
}

// StripeGateway takes payments with PaymentIntents and verifies Stripe webhooks
type StripeGateway struct {
	client *stripe.Client
	cfg    StripeConfig
}

// NewStripeGateway creates a Stripe gateway
func NewStripeGateway(cfg StripeConfig) *StripeGateway {
	if cfg.WebhookTolerance <= 0 {
		cfg.WebhookTolerance = webhook.DefaultTolerance
	}
	var client *stripe.Client
	if cfg.SecretKey != "" {
		client = stripe.NewClient(cfg.SecretKey)
	}
	return &StripeGateway{client: client, cfg: cfg}
}

func (g *StripeGateway) Name() domain.Gateway {
	return domain.GatewayStripe
}

// CreatePayment creates a PaymentIntent carrying the routing metadata
func (g *StripeGateway) CreatePayment(ctx context.Context, req *CreatePaymentRequest) (*CreatePaymentResponse, error) {
	if g.client == nil {
		return nil, ErrNotConfigured
	}

	params := &stripe.PaymentIntentCreateParams{
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(strings.ToLower(req.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: req.Metadata,
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	if req.Email != "" {
		params.ReceiptEmail = stripe.String(req.Email)
	}

	pi, err := g.client.V1PaymentIntents.Create(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("stripe create payment intent: %w", err)
	}

	return &CreatePaymentResponse{
		Gateway:      domain.GatewayStripe,
		PaymentID:    pi.ID,
		ClientSecret: pi.ClientSecret,
		PublicKey:    g.cfg.PublishableKey,
		Status:       string(pi.Status),
	}, nil
}

// Refund refunds a PaymentIntent, fully when Amount is zero
func (g *StripeGateway) Refund(ctx context.Context, req *RefundRequest) (*RefundResponse, error) {
	if g.client == nil {
		return nil, ErrNotConfigured
	}

	params := &stripe.RefundCreateParams{
		PaymentIntent: stripe.String(req.PaymentID),
		Metadata:      req.Metadata,
	}
	if req.Amount > 0 {
		params.Amount = stripe.Int64(req.Amount)
	}
	if req.Reason != "" {
		params.Reason = stripe.String(string(stripe.RefundReasonRequestedByCustomer))
	}

	rf, err := g.client.V1Refunds.Create(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("stripe create refund: %w", err)
	}
	return &RefundResponse{RefundID: rf.ID, Status: string(rf.Status), Amount: rf.Amount}, nil
}

// VerifyWebhook checks the Stripe-Signature header and returns the event ID
func (g *StripeGateway) VerifyWebhook(payload []byte, header http.Header) (string, error) {
	sig := header.Get("Stripe-Signature")
	if sig == "" || g.cfg.WebhookSecret == "" {
		return "", ErrInvalidSignature
	}

	event, err := webhook.ConstructEventWithOptions(payload, sig, g.cfg.WebhookSecret, webhook.ConstructEventOptions{
		Tolerance:                g.cfg.WebhookTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if event.ID == "" {
		return "", ErrMalformedPayload
	}
	return event.ID, nil
}

// ParseWebhook maps a Stripe event onto a WebhookEvent
func (g *StripeGateway) ParseWebhook(eventID string, payload []byte) (*WebhookEvent, error) {
	return ParseStripeEvent(eventID, payload)
}

// ParseStripeEvent decodes a Stripe event body. It does not verify the signature.
func ParseStripeEvent(eventID string, payload []byte) (*WebhookEvent, error) {
	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if eventID == "" {
		eventID = event.ID
	}

	out := &WebhookEvent{
		Gateway:  domain.GatewayStripe,
		EventID:  eventID,
		RawType:  string(event.Type),
		Kind:     KindIgnored,
		Metadata: map[string]string{},
		Payload:  json.RawMessage(payload),
	}
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return out, nil
	}
	raw := event.Data.Raw

	switch event.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(raw, &pi); err != nil {
			return nil, fmt.Errorf("%w: payment intent: %v", ErrMalformedPayload, err)
		}
		out.Kind = KindPaymentSucceeded
		out.PaymentID = pi.ID
		out.Amount = pi.AmountReceived
		if out.Amount == 0 {
			out.Amount = pi.Amount
		}
		out.Currency = strings.ToUpper(string(pi.Currency))
		out.Method = stripeMethod(&pi)
		copyMetadata(out.Metadata, pi.Metadata)
		if event.Type == "payment_intent.payment_failed" {
			out.Kind = KindPaymentFailed
			out.Amount = pi.Amount
			if pi.LastPaymentError != nil {
				out.FailureCode = string(pi.LastPaymentError.Code)
				out.FailureMessage = pi.LastPaymentError.Msg
			}
		}

	case "checkout.session.completed":
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(raw, &cs); err != nil {
			return nil, fmt.Errorf("%w: checkout session: %v", ErrMalformedPayload, err)
		}
		// Unpaid sessions (delayed methods) settle later through payment_intent.succeeded
		if cs.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid || cs.PaymentIntent == nil {
			return out, nil
		}
		out.Kind = KindPaymentSucceeded
		out.PaymentID = cs.PaymentIntent.ID
		out.OrderID = cs.ID
		out.Amount = cs.AmountTotal
		out.Currency = strings.ToUpper(string(cs.Currency))
		copyMetadata(out.Metadata, cs.Metadata)

	case "charge.refunded":
		var ch stripe.Charge
		if err := json.Unmarshal(raw, &ch); err != nil {
			return nil, fmt.Errorf("%w: charge: %v", ErrMalformedPayload, err)
		}
		out.Kind = KindRefundUpdated
		out.PaymentID = chargePaymentID(&ch)
		out.Amount = ch.Amount
		out.Currency = strings.ToUpper(string(ch.Currency))
		out.RefundedTotal = ch.AmountRefunded
		if ch.Refunds != nil && len(ch.Refunds.Data) > 0 && ch.Refunds.Data[0] != nil {
			out.RefundID = ch.Refunds.Data[0].ID
			out.RefundAmount = ch.Refunds.Data[0].Amount
		}
		if out.RefundID == "" {
			out.RefundID = eventID
		}
		copyMetadata(out.Metadata, ch.Metadata)

	case "charge.dispute.created", "charge.dispute.closed":
		var d stripe.Dispute
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("%w: dispute: %v", ErrMalformedPayload, err)
		}
		out.Kind = KindDisputeOpened
		if event.Type == "charge.dispute.closed" {
			out.Kind = KindDisputeClosed
		}
		out.DisputeID = d.ID
		out.DisputeAmount = d.Amount
		out.DisputeStatus = string(d.Status)
		out.DisputeReason = string(d.Reason)
		out.Currency = strings.ToUpper(string(d.Currency))
		if d.PaymentIntent != nil {
			out.PaymentID = d.PaymentIntent.ID
		} else if d.Charge != nil {
			out.PaymentID = chargePaymentID(d.Charge)
		}
		copyMetadata(out.Metadata, d.Metadata)
	}

	if out.Kind != KindIgnored && out.PaymentID == "" {
		return nil, fmt.Errorf("%w: %s without payment intent", ErrMalformedPayload, event.Type)
	}
	return out, nil
}

// chargePaymentID prefers the PaymentIntent, which is the ID payment records are keyed by
func chargePaymentID(ch *stripe.Charge) string {
	if ch.PaymentIntent != nil && ch.PaymentIntent.ID != "" {
		return ch.PaymentIntent.ID
	}
	return ch.ID
}

func stripeMethod(pi *stripe.PaymentIntent) string {
	if pi.PaymentMethod != nil && pi.PaymentMethod.Type != "" {
		return string(pi.PaymentMethod.Type)
	}
	if len(pi.PaymentMethodTypes) > 0 {
		return pi.PaymentMethodTypes[0]
	}
	return ""
}

func copyMetadata(dst, src map[string]string) {
	for k, v := range src {
		dst[k] = v
	}
}
