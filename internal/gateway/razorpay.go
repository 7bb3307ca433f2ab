package gateway

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/prohmpiriya/eventdesk/internal/domain"
	razorpay "github.com/razorpay/razorpay-go"
)

// RazorpayConfig holds the Razorpay credentials the gateway needs
type RazorpayConfig struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
}

// RazorpayGateway takes payments with Razorpay orders and verifies Razorpay webhooks
type RazorpayGateway struct {
	client *razorpay.Client
	cfg    RazorpayConfig
}

// NewRazorpayGateway creates a Razorpay gateway
func NewRazorpayGateway(cfg RazorpayConfig) *RazorpayGateway {
	var client *razorpay.Client
	if cfg.KeyID != "" && cfg.KeySecret != "" {
		client = razorpay.NewClient(cfg.KeyID, cfg.KeySecret)
	}
	return &RazorpayGateway{client: client, cfg: cfg}
}

func (g *RazorpayGateway) Name() domain.Gateway {
	return domain.GatewayRazorpay
}

// CreatePayment creates an order. The payment ID is only known once the payer completes checkout.
func (g *RazorpayGateway) CreatePayment(ctx context.Context, req *CreatePaymentRequest) (*CreatePaymentResponse, error) {
	if g.client == nil {
		return nil, ErrNotConfigured
	}

	notes := make(map[string]interface{}, len(req.Metadata))
	for k, v := range req.Metadata {
		notes[k] = v
	}
	data := map[string]interface{}{
		"amount":          req.Amount,
		"currency":        strings.ToUpper(req.Currency),
		"receipt":         req.Receipt,
		"notes":           notes,
		"payment_capture": 1,
	}

	order, err := g.client.Order.Create(data, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay create order: %w", err)
	}
	orderID, _ := order["id"].(string)
	if orderID == "" {
		return nil, fmt.Errorf("razorpay create order: response without id")
	}
	status, _ := order["status"].(string)

	return &CreatePaymentResponse{
		Gateway:   domain.GatewayRazorpay,
		OrderID:   orderID,
		PublicKey: g.cfg.KeyID,
		Status:    status,
	}, nil
}

// Refund refunds a captured payment, fully when Amount is zero
func (g *RazorpayGateway) Refund(ctx context.Context, req *RefundRequest) (*RefundResponse, error) {
	if g.client == nil {
		return nil, ErrNotConfigured
	}

	data := map[string]interface{}{}
	if len(req.Metadata) > 0 {
		notes := make(map[string]interface{}, len(req.Metadata))
		for k, v := range req.Metadata {
			notes[k] = v
		}
		data["notes"] = notes
	}

	resp, err := g.client.Payment.Refund(req.PaymentID, int(req.Amount), data, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay refund: %w", err)
	}

	out := &RefundResponse{Amount: req.Amount}
	out.RefundID, _ = resp["id"].(string)
	out.Status, _ = resp["status"].(string)
	if amt, ok := resp["amount"].(float64); ok {
		out.Amount = int64(amt)
	}
	return out, nil
}

// VerifyWebhook checks X-Razorpay-Signature and returns X-Razorpay-Event-Id,
// or the SHA-256 of the body when the header is absent
func (g *RazorpayGateway) VerifyWebhook(payload []byte, header http.Header) (string, error) {
	if err := VerifyHexHMAC([]byte(g.cfg.WebhookSecret), payload, header.Get("X-Razorpay-Signature")); err != nil {
		return "", err
	}
	if id := strings.TrimSpace(header.Get("X-Razorpay-Event-Id")); id != "" {
		return id, nil
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

func (g *RazorpayGateway) ParseWebhook(eventID string, payload []byte) (*WebhookEvent, error) {
	return ParseRazorpayEvent(eventID, payload)
}

type razorpayEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment *struct {
			Entity razorpayPayment `json:"entity"`
		} `json:"payment"`
		Order *struct {
			Entity razorpayOrder `json:"entity"`
		} `json:"order"`
		Refund *struct {
			Entity razorpayRefund `json:"entity"`
		} `json:"refund"`
		Dispute *struct {
			Entity razorpayDispute `json:"entity"`
		} `json:"dispute"`
	} `json:"payload"`
}

type razorpayPayment struct {
	ID               string          `json:"id"`
	Amount           int64           `json:"amount"`
	Currency         string          `json:"currency"`
	Status           string          `json:"status"`
	OrderID          string          `json:"order_id"`
	Method           string          `json:"method"`
	AmountRefunded   int64           `json:"amount_refunded"`
	ErrorCode        string          `json:"error_code"`
	ErrorDescription string          `json:"error_description"`
	Notes            json.RawMessage `json:"notes"`
}

type razorpayOrder struct {
	ID         string          `json:"id"`
	Amount     int64           `json:"amount"`
	AmountPaid int64           `json:"amount_paid"`
	Currency   string          `json:"currency"`
	Notes      json.RawMessage `json:"notes"`
}

type razorpayRefund struct {
	ID        string          `json:"id"`
	PaymentID string          `json:"payment_id"`
	Amount    int64           `json:"amount"`
	Currency  string          `json:"currency"`
	Notes     json.RawMessage `json:"notes"`
}

type razorpayDispute struct {
	ID         string `json:"id"`
	PaymentID  string `json:"payment_id"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	ReasonCode string `json:"reason_code"`
	Status     string `json:"status"`
}

// ParseRazorpayEvent decodes a Razorpay webhook body. It does not verify the signature.
func ParseRazorpayEvent(eventID string, payload []byte) (*WebhookEvent, error) {
	var env razorpayEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	out := &WebhookEvent{
		Gateway:  domain.GatewayRazorpay,
		EventID:  eventID,
		RawType:  env.Event,
		Kind:     KindIgnored,
		Metadata: map[string]string{},
		Payload:  json.RawMessage(payload),
	}

	var pay *razorpayPayment
	if env.Payload.Payment != nil {
		pay = &env.Payload.Payment.Entity
		out.PaymentID = pay.ID
		out.OrderID = pay.OrderID
		out.Amount = pay.Amount
		out.Currency = strings.ToUpper(pay.Currency)
		out.Method = pay.Method
		mergeNotes(out.Metadata, pay.Notes)
	}
	if env.Payload.Order != nil {
		order := env.Payload.Order.Entity
		if out.OrderID == "" {
			out.OrderID = order.ID
		}
		if out.Currency == "" {
			out.Currency = strings.ToUpper(order.Currency)
		}
		// Order notes are set at checkout; payment notes win when both exist
		orderNotes := map[string]string{}
		mergeNotes(orderNotes, order.Notes)
		for k, v := range orderNotes {
			if _, ok := out.Metadata[k]; !ok {
				out.Metadata[k] = v
			}
		}
	}

	switch {
	case env.Event == "payment.captured" || env.Event == "order.paid":
		if pay == nil {
			return nil, fmt.Errorf("%w: %s without payment entity", ErrMalformedPayload, env.Event)
		}
		out.Kind = KindPaymentSucceeded

	case env.Event == "payment.failed":
		if pay == nil {
			return nil, fmt.Errorf("%w: %s without payment entity", ErrMalformedPayload, env.Event)
		}
		out.Kind = KindPaymentFailed
		out.FailureCode = pay.ErrorCode
		out.FailureMessage = pay.ErrorDescription

	case env.Event == "refund.processed":
		if env.Payload.Refund == nil {
			return nil, fmt.Errorf("%w: %s without refund entity", ErrMalformedPayload, env.Event)
		}
		rf := env.Payload.Refund.Entity
		out.Kind = KindRefundUpdated
		out.RefundID = rf.ID
		out.RefundAmount = rf.Amount
		if out.PaymentID == "" {
			out.PaymentID = rf.PaymentID
		}
		if pay != nil {
			out.RefundedTotal = pay.AmountRefunded
		}
		mergeNotes(out.Metadata, rf.Notes)

	case strings.HasPrefix(env.Event, "payment.dispute."):
		if env.Payload.Dispute == nil {
			return nil, fmt.Errorf("%w: %s without dispute entity", ErrMalformedPayload, env.Event)
		}
		d := env.Payload.Dispute.Entity
		out.DisputeID = d.ID
		out.DisputeAmount = d.Amount
		out.DisputeReason = d.ReasonCode
		out.DisputeStatus = d.Status
		if out.PaymentID == "" {
			out.PaymentID = d.PaymentID
		}
		switch env.Event {
		case "payment.dispute.created":
			out.Kind = KindDisputeOpened
		case "payment.dispute.won":
			out.Kind = KindDisputeClosed
			out.DisputeStatus = "won"
		case "payment.dispute.lost":
			out.Kind = KindDisputeClosed
			out.DisputeStatus = "lost"
		case "payment.dispute.closed":
			out.Kind = KindDisputeClosed
			if out.DisputeStatus != "won" {
				out.DisputeStatus = "lost"
			}
		}
	}

	if out.Kind != KindIgnored && out.PaymentID == "" {
		return nil, fmt.Errorf("%w: %s without payment id", ErrMalformedPayload, env.Event)
	}
	return out, nil
}

// mergeNotes copies Razorpay notes, which arrive as an object or as an empty array
func mergeNotes(dst map[string]string, raw json.RawMessage) {
	if len(raw) == 0 || raw[0] != '{' {
		return
	}
	var notes map[string]interface{}
	if err := json.Unmarshal(raw, &notes); err != nil {
		return
	}
	for k, v := range notes {
		switch val := v.(type) {
		case string:
			dst[k] = val
		case nil:
		default:
			dst[k] = fmt.Sprint(val)
		}
	}
}
