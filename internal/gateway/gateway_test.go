package gateway

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/prohmpiriya/eventdesk/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"
)

const stripeSecret = "whsec_test_secret"

func stripePayload(id, typ, object string) []byte {
	return []byte(fmt.Sprintf(`{"id":%q,"object":"event","api_version":"2020-08-27","type":%q,"data":{"object":%s}}`, id, typ, object))
}

func signedStripeHeader(t *testing.T, payload []byte, at time.Time) http.Header {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    stripeSecret,
		Timestamp: at,
	})
	h := http.Header{}
	h.Set("Stripe-Signature", signed.Header)
	return h
}

func TestStripeGateway_VerifyWebhook(t *testing.T) {
	g := NewStripeGateway(StripeConfig{WebhookSecret: stripeSecret, WebhookTolerance: 5 * time.Minute})
	payload := stripePayload("evt_1", "payment_intent.succeeded", `{"id":"pi_1","object":"payment_intent"}`)
	tampered := stripePayload("evt_2", "payment_intent.succeeded", `{"id":"pi_1","object":"payment_intent"}`)

	tests := []struct {
		name    string
		header  http.Header
		body    []byte
		wantID  string
		wantErr bool
	}{
		{name: "valid", header: signedStripeHeader(t, payload, time.Now()), body: payload, wantID: "evt_1"},
		{name: "missing header", header: http.Header{}, body: payload, wantErr: true},
		{name: "stale timestamp", header: signedStripeHeader(t, payload, time.Now().Add(-10*time.Minute)), body: payload, wantErr: true},
		{name: "tampered body", header: signedStripeHeader(t, payload, time.Now()), body: tampered, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := g.VerifyWebhook(tt.body, tt.header)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSignature)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestParseStripeEvent(t *testing.T) {
	tests := []struct {
		name   string
		typ    string
		object string
		check  func(t *testing.T, e *WebhookEvent)
	}{
		{
			name:   "payment succeeded",
			typ:    "payment_intent.succeeded",
			object: `{"id":"pi_1","object":"payment_intent","amount":118000,"amount_received":118000,"currency":"inr","payment_method_types":["card"],"metadata":{"tenant_id":"t1","invoice_id":"i1"}}`,
			check: func(t *testing.T, e *WebhookEvent) {
				assert.Equal(t, KindPaymentSucceeded, e.Kind)
				assert.Equal(t, "pi_1", e.PaymentID)
				assert.Equal(t, int64(118000), e.Amount)
				assert.Equal(t, "INR", e.Currency)
				assert.Equal(t, "card", e.Method)
				assert.Equal(t, "t1", e.TenantID())
				assert.Equal(t, "i1", e.InvoiceID())
			},
		},
		{
			name:   "payment failed",
			typ:    "payment_intent.payment_failed",
			object: `{"id":"pi_2","object":"payment_intent","amount":5000,"currency":"usd","last_payment_error":{"code":"card_declined","message":"Your card was declined."},"metadata":{"tenant_id":"t1"}}`,
			check: func(t *testing.T, e *WebhookEvent) {
				assert.Equal(t, KindPaymentFailed, e.Kind)
				assert.Equal(t, "card_declined", e.FailureCode)
				assert.Equal(t, "Your card was declined.", e.FailureMessage)
				assert.Equal(t, int64(5000), e.Amount)
			},
		},
		{
			name:   "paid checkout session",
			typ:    "checkout.session.completed",
			object: `{"id":"cs_1","object":"checkout.session","payment_status":"paid","payment_intent":"pi_3","amount_total":2500,"currency":"usd","metadata":{"tenant_id":"t1","registration_id":"r1"}}`,
			check: func(t *testing.T, e *WebhookEvent) {
				assert.Equal(t, KindPaymentSucceeded, e.Kind)
				assert.Equal(t, "pi_3", e.PaymentID)
				assert.Equal(t, "cs_1", e.OrderID)
				assert.Equal(t, "r1", e.RegistrationID())
			},
		},
		{
			name:   "unpaid checkout session is ignored",
			typ:    "checkout.session.completed",
			object: `{"id":"cs_2","object":"checkout.session","payment_status":"unpaid","payment_intent":"pi_4"}`,
			check: func(t *testing.T, e *WebhookEvent) {
				assert.Equal(t, KindIgnored, e.Kind)
			},
		},
		{
			name:   "charge refunded",
			typ:    "charge.refunded",
			object: `{"id":"ch_1","object":"charge","payment_intent":"pi_1","amount":118000,"amount_refunded":18000,"currency":"inr","refunds":{"object":"list","data":[{"id":"re_1","object":"refund","amount":18000}]}}`,
			check: func(t *testing.T, e *WebhookEvent) {
				assert.Equal(t, KindRefundUpdated, e.Kind)
				assert.Equal(t, "pi_1", e.PaymentID)
				assert.Equal(t, int64(18000), e.RefundedTotal)
				assert.Equal(t, "re_1", e.RefundID)
			},
		},
		{
			name:   "dispute opened",
			typ:    "charge.dispute.created",
			object: `{"id":"dp_1","object":"dispute","payment_intent":"pi_1","amount":118000,"currency":"inr","reason":"fraudulent","status":"needs_response"}`,
			check: func(t *testing.T, e *WebhookEvent) {
				assert.Equal(t, KindDisputeOpened, e.Kind)
				assert.Equal(t, "dp_1", e.DisputeID)
				assert.Equal(t, "fraudulent", e.DisputeReason)
			},
		},
		{
			name:   "dispute won",
			typ:    "charge.dispute.closed",
			object: `{"id":"dp_1","object":"dispute","payment_intent":"pi_1","amount":118000,"currency":"inr","status":"won"}`,
			check: func(t *testing.T, e *WebhookEvent) {
				assert.Equal(t, KindDisputeClosed, e.Kind)
				assert.True(t, e.DisputeWon())
			},
		},
		{
			name:   "inquiry closed without chargeback",
			typ:    "charge.dispute.closed",
			object: `{"id":"dp_2","object":"dispute","payment_intent":"pi_1","amount":118000,"currency":"inr","status":"warning_closed"}`,
			check: func(t *testing.T, e *WebhookEvent) {
				assert.Equal(t, KindDisputeClosed, e.Kind)
				assert.Equal(t, "warning_closed", e.DisputeStatus)
				assert.True(t, e.DisputeWon())
			},
		},
		{
			name:   "dispute lost",
			typ:    "charge.dispute.closed",
			object: `{"id":"dp_3","object":"dispute","payment_intent":"pi_1","amount":118000,"currency":"inr","status":"lost"}`,
			check: func(t *testing.T, e *WebhookEvent) {
				assert.Equal(t, KindDisputeClosed, e.Kind)
				assert.False(t, e.DisputeWon())
			},
		},
		{
			name:   "unrelated type",
			typ:    "customer.created",
			object: `{"id":"cus_1","object":"customer"}`,
			check: func(t *testing.T, e *WebhookEvent) {
				assert.Equal(t, KindIgnored, e.Kind)
				assert.Equal(t, "customer.created", e.RawType)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := ParseStripeEvent("", stripePayload("evt_x", tt.typ, tt.object))
			require.NoError(t, err)
			assert.Equal(t, domain.GatewayStripe, e.Gateway)
			assert.Equal(t, "evt_x", e.EventID)
			tt.check(t, e)
		})
	}
}

func TestParseStripeEvent_Malformed(t *testing.T) {
	_, err := ParseStripeEvent("evt", []byte(`not json`))
	assert.ErrorIs(t, err, ErrMalformedPayload)

	_, err = ParseStripeEvent("evt", stripePayload("evt", "payment_intent.succeeded", `{"object":"payment_intent","amount":10}`))
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

const razorpaySecret = "rzp_webhook_secret"

func TestRazorpayGateway_VerifyWebhook(t *testing.T) {
	g := NewRazorpayGateway(RazorpayConfig{WebhookSecret: razorpaySecret})
	body := []byte(`{"event":"payment.captured"}`)

	h := http.Header{}
	h.Set("X-Razorpay-Signature", SignHex([]byte(razorpaySecret), body))
	h.Set("X-Razorpay-Event-Id", "evt_rzp_1")
	id, err := g.VerifyWebhook(body, h)
	require.NoError(t, err)
	assert.Equal(t, "evt_rzp_1", id)

	// Without an event id header the body hash identifies the delivery
	h.Del("X-Razorpay-Event-Id")
	id1, err := g.VerifyWebhook(body, h)
	require.NoError(t, err)
	assert.Len(t, id1, 64)
	id2, _ := g.VerifyWebhook(body, h)
	assert.Equal(t, id1, id2)

	h.Set("X-Razorpay-Signature", SignHex([]byte("other"), body))
	_, err = g.VerifyWebhook(body, h)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = g.VerifyWebhook(body, http.Header{})
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestParseRazorpayEvent(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		check func(t *testing.T, e *WebhookEvent)
	}{
		{
			name: "payment captured",
			body: `{"entity":"event","event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1","amount":50000,"currency":"INR","status":"captured","order_id":"order_1","method":"upi","notes":{"tenant_id":"t1","registration_id":"r1"}}}}}`,
			check: func(t *testing.T, e *WebhookEvent) {
				assert.Equal(t, KindPaymentSucceeded, e.Kind)
				assert.Equal(t, "pay_1", e.PaymentID)
				assert.Equal(t, "order_1", e.OrderID)
				assert.Equal(t, "upi", e.Method)
				assert.Equal(t, "r1", e.RegistrationID())
			},
		},
		{
			name: "order paid takes order notes",
			body: `{"event":"order.paid","payload":{"payment":{"entity":{"id":"pay_2","amount":100,"currency":"INR","order_id":"order_2","notes":[]}},"order":{"entity":{"id":"order_2","amount":100,"currency":"INR","notes":{"tenant_id":"t2","invoice_id":"i2"}}}}}`,
			check: func(t *testing.T, e *WebhookEvent) {
				assert.Equal(t, KindPaymentSucceeded, e.Kind)
				assert.Equal(t, "t2", e.TenantID())
				assert.Equal(t, "i2", e.InvoiceID())
			},
		},
		{
			name: "payment failed",
			body: `{"event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_3","amount":100,"currency":"INR","error_code":"BAD_REQUEST_ERROR","error_description":"Payment failed","notes":{"tenant_id":"t1"}}}}}`,
			check: func(t *testing.T, e *WebhookEvent) {
				assert.Equal(t, KindPaymentFailed, e.Kind)
				assert.Equal(t, "BAD_REQUEST_ERROR", e.FailureCode)
			},
		},
		{
			name: "refund processed",
			body: `{"event":"refund.processed","payload":{"refund":{"entity":{"id":"rfnd_1","payment_id":"pay_1","amount":2000,"currency":"INR","notes":{}}},"payment":{"entity":{"id":"pay_1","amount":50000,"currency":"INR","amount_refunded":2000,"notes":{"tenant_id":"t1"}}}}}`,
			check: func(t *testing.T, e *WebhookEvent) {
				assert.Equal(t, KindRefundUpdated, e.Kind)
				assert.Equal(t, "rfnd_1", e.RefundID)
				assert.Equal(t, int64(2000), e.RefundAmount)
				assert.Equal(t, int64(2000), e.RefundedTotal)
			},
		},
		{
			name: "dispute lost",
			body: `{"event":"payment.dispute.lost","payload":{"dispute":{"entity":{"id":"disp_1","payment_id":"pay_1","amount":50000,"currency":"INR","reason_code":"chargeback","status":"lost"}},"payment":{"entity":{"id":"pay_1","amount":50000,"currency":"INR","notes":{"tenant_id":"t1"}}}}}`,
			check: func(t *testing.T, e *WebhookEvent) {
				assert.Equal(t, KindDisputeClosed, e.Kind)
				assert.False(t, e.DisputeWon())
				assert.Equal(t, "disp_1", e.DisputeID)
			},
		},
		{
			name: "dispute created",
			body: `{"event":"payment.dispute.created","payload":{"dispute":{"entity":{"id":"disp_2","payment_id":"pay_1","amount":100,"status":"open"}}}}`,
			check: func(t *testing.T, e *WebhookEvent) {
				assert.Equal(t, KindDisputeOpened, e.Kind)
				assert.Equal(t, "pay_1", e.PaymentID)
			},
		},
		{
			name: "unknown event",
			body: `{"event":"subscription.charged","payload":{}}`,
			check: func(t *testing.T, e *WebhookEvent) {
				assert.Equal(t, KindIgnored, e.Kind)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := ParseRazorpayEvent("evt_1", []byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, domain.GatewayRazorpay, e.Gateway)
			tt.check(t, e)
		})
	}
}

func TestParseRazorpayEvent_Malformed(t *testing.T) {
	_, err := ParseRazorpayEvent("evt", []byte(`{"event":"payment.captured","payload":{}}`))
	assert.ErrorIs(t, err, ErrMalformedPayload)

	_, err = ParseRazorpayEvent("evt", []byte(`[`))
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestVerifyBase64HMAC(t *testing.T) {
	secret := []byte("connect-key")
	body := []byte(`{"event":"envelope-completed"}`)
	good := SignBase64(secret, body)

	assert.NoError(t, VerifyBase64HMAC(secret, body, good))
	assert.NoError(t, VerifyBase64HMAC(secret, body, "", "bm9wZQ==", good), "any rotated key may match")
	assert.ErrorIs(t, VerifyBase64HMAC(secret, body, "bm9wZQ=="), ErrInvalidSignature)
	assert.ErrorIs(t, VerifyBase64HMAC(nil, body, good), ErrInvalidSignature)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(NewStripeGateway(StripeConfig{}), nil)
	p, err := r.Get(domain.GatewayStripe)
	require.NoError(t, err)
	assert.Equal(t, domain.GatewayStripe, p.Name())

	_, err = r.Get(domain.GatewayRazorpay)
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.Equal(t, []domain.Gateway{domain.GatewayStripe}, r.Names())
}
