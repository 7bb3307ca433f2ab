package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prohmpiriya/eventdesk/internal/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *DocuSignClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewDocuSignClient(DocuSignConfig{
		BaseURL:        srv.URL + "/",
		AccountID:      "acct-1",
		AccessToken:    "token",
		ConnectHMACKey: "hmac-key",
	})
}

func TestDocuSignClient_SendEnvelope(t *testing.T) {
	var got envelopeDefinition
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2.1/accounts/acct-1/envelopes", r.URL.Path)
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"envelopeId":"env-1","status":"sent","statusDateTime":"2026-01-01T00:00:00Z"}`))
	})

	summary, err := c.SendEnvelope(context.Background(), "req-1", &Envelope{
		DocumentName: "Sponsorship agreement",
		DocumentURL:  "https://files.test/agreement.pdf",
		SignerName:   "Jo Sponsor",
		SignerEmail:  "jo@sponsor.test",
	})
	require.NoError(t, err)
	assert.Equal(t, "env-1", summary.EnvelopeID)
	assert.Equal(t, "sent", got.Status)
	assert.Equal(t, "Please sign: Sponsorship agreement", got.EmailSubject)
	require.Len(t, got.Recipients.Signers, 1)
	assert.Equal(t, "jo@sponsor.test", got.Recipients.Signers[0].Email)
	assert.Equal(t, "req-1", got.CustomFields.TextCustomFields[0].Value)
}

func TestDocuSignClient_Errors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errorCode":"INVALID_EMAIL_ADDRESS_FOR_RECIPIENT","message":"bad email"}`))
	})
	_, err := c.SendEnvelope(context.Background(), "req-1", &Envelope{DocumentName: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INVALID_EMAIL_ADDRESS_FOR_RECIPIENT")

	disabled := NewDocuSignClient(DocuSignConfig{})
	assert.False(t, disabled.Enabled())
	_, err = disabled.SendEnvelope(context.Background(), "req-1", &Envelope{})
	assert.ErrorIs(t, err, ErrDocuSignDisabled)
	assert.ErrorIs(t, disabled.VoidEnvelope(context.Background(), "env", ""), ErrDocuSignDisabled)
}

func TestDocuSignClient_VoidEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/v2.1/accounts/acct-1/envelopes/env-9", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "voided", body["status"])
		_, _ = w.Write([]byte(`{}`))
	})
	require.NoError(t, c.VoidEnvelope(context.Background(), "env-9", "contract withdrawn"))
}

func TestVerifyConnect(t *testing.T) {
	c := NewDocuSignClient(DocuSignConfig{ConnectHMACKey: "hmac-key"})
	body := []byte(`{"event":"envelope-completed","data":{"envelopeId":"env-1"}}`)

	h := http.Header{}
	h.Set("X-DocuSign-Signature-1", gateway.SignBase64([]byte("hmac-key"), body))
	assert.NoError(t, c.VerifyConnect(body, h))

	h.Set("X-DocuSign-Signature-1", gateway.SignBase64([]byte("old-key"), body))
	assert.ErrorIs(t, c.VerifyConnect(body, h), gateway.ErrInvalidSignature)

	h.Set("X-DocuSign-Signature-2", gateway.SignBase64([]byte("hmac-key"), body))
	assert.NoError(t, c.VerifyConnect(body, h))
}

func TestParseConnectEvent(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus string
		wantErr    bool
	}{
		{name: "summary status", body: `{"event":"envelope-sent","data":{"envelopeId":"e1","envelopeSummary":{"status":"delivered"}}}`, wantStatus: "delivered"},
		{name: "event name fallback", body: `{"event":"envelope-completed","generatedDateTime":"2026-03-01T10:00:00Z","data":{"envelopeId":"e1"}}`, wantStatus: "completed"},
		{name: "missing envelope", body: `{"event":"envelope-voided","data":{}}`, wantErr: true},
		{name: "not json", body: `<xml/>`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ParseConnectEvent([]byte(tt.body))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedConnectEvent)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "e1", ev.EnvelopeID)
			assert.Equal(t, tt.wantStatus, ev.Status)
		})
	}
}
