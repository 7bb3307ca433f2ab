package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prohmpiriya/eventdesk/internal/gateway"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var (
	// ErrDocuSignDisabled is returned when no account is configured
	ErrDocuSignDisabled = errors.New("docusign is not configured")
	// ErrMalformedConnectEvent is returned for Connect payloads without an envelope
	ErrMalformedConnectEvent = errors.New("malformed docusign connect event")
)

// DocuSignConfig holds the eSignature REST settings
type DocuSignConfig struct {
	BaseURL        string
	AccountID      string
	AccessToken    string
	ConnectHMACKey string
	Timeout        time.Duration
}

// Envelope is a request to sign one document
type Envelope struct {
	EmailSubject string
	DocumentName string
	DocumentURL  string
	SignerName   string
	SignerEmail  string
}

// EnvelopeSummary is DocuSign's response to an envelope call
type EnvelopeSummary struct {
	EnvelopeID     string `json:"envelopeId"`
	Status         string `json:"status"`
	StatusDateTime string `json:"statusDateTime"`
}

// DocuSignClient calls the DocuSign eSignature REST API
type DocuSignClient struct {
	cfg    DocuSignConfig
	client *http.Client
}

type envelopeDefinition struct {
	EmailSubject string              `json:"emailSubject"`
	Status       string              `json:"status"`
	Documents    []envelopeDocument  `json:"documents"`
	Recipients   envelopeRecipients  `json:"recipients"`
	CustomFields *envelopeCustomList `json:"customFields,omitempty"`
}

type envelopeDocument struct {
	DocumentID string `json:"documentId"`
	Name       string `json:"name"`
	RemoteURL  string `json:"remoteUrl"`
}

type envelopeRecipients struct {
	Signers []envelopeSigner `json:"signers"`
}

type envelopeSigner struct {
	RecipientID  string `json:"recipientId"`
	RoutingOrder string `json:"routingOrder"`
	Name         string `json:"name"`
	Email        string `json:"email"`
}

type envelopeCustomList struct {
	TextCustomFields []envelopeTextField `json:"textCustomFields"`
}

type envelopeTextField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Show  string `json:"show"`
}

type docuSignError struct {
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
}

// NewDocuSignClient creates a client. A zero timeout defaults to 10s.
func NewDocuSignClient(cfg DocuSignConfig) *DocuSignClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &DocuSignClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout, Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
}

// Enabled reports whether envelopes can be sent
func (c *DocuSignClient) Enabled() bool {
	return c != nil && c.cfg.AccountID != "" && c.cfg.AccessToken != ""
}

// SendEnvelope creates and sends an envelope, tagging it with the request ID
func (c *DocuSignClient) SendEnvelope(ctx context.Context, requestID string, env *Envelope) (*EnvelopeSummary, error) {
	if !c.Enabled() {
		return nil, ErrDocuSignDisabled
	}

	subject := env.EmailSubject
	if subject == "" {
		subject = "Please sign: " + env.DocumentName
	}
	def := envelopeDefinition{
		EmailSubject: subject,
		Status:       "sent",
		Documents: []envelopeDocument{
			{DocumentID: "1", Name: env.DocumentName, RemoteURL: env.DocumentURL},
		},
		Recipients: envelopeRecipients{
			Signers: []envelopeSigner{
				{RecipientID: "1", RoutingOrder: "1", Name: env.SignerName, Email: env.SignerEmail},
			},
		},
		CustomFields: &envelopeCustomList{
			TextCustomFields: []envelopeTextField{{Name: "signature_request_id", Value: requestID, Show: "false"}},
		},
	}

	var out EnvelopeSummary
	if err := c.do(ctx, http.MethodPost, "/envelopes", def, &out); err != nil {
		return nil, fmt.Errorf("send envelope: %w", err)
	}
	if out.EnvelopeID == "" {
		return nil, errors.New("send envelope: response without envelopeId")
	}
	return &out, nil
}

// VoidEnvelope voids a sent envelope
func (c *DocuSignClient) VoidEnvelope(ctx context.Context, envelopeID, reason string) error {
	if !c.Enabled() {
		return ErrDocuSignDisabled
	}
	if reason == "" {
		reason = "Voided by sender"
	}
	body := map[string]string{"status": "voided", "voidedReason": reason}
	if err := c.do(ctx, http.MethodPut, "/envelopes/"+envelopeID, body, nil); err != nil {
		return fmt.Errorf("void envelope %s: %w", envelopeID, err)
	}
	return nil
}

func (c *DocuSignClient) do(ctx context.Context, method, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v2.1/accounts/%s%s", c.cfg.BaseURL, c.cfg.AccountID, path)
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr docuSignError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.ErrorCode != "" {
			return fmt.Errorf("docusign %d %s: %s", resp.StatusCode, apiErr.ErrorCode, apiErr.Message)
		}
		return fmt.Errorf("docusign %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// ConnectEvent is the part of a DocuSign Connect notification we act on
type ConnectEvent struct {
	Event       string
	EnvelopeID  string
	Status      string
	GeneratedAt time.Time
}

type connectPayload struct {
	Event             string `json:"event"`
	GeneratedDateTime string `json:"generatedDateTime"`
	Data              struct {
		EnvelopeID      string `json:"envelopeId"`
		EnvelopeSummary *struct {
			Status string `json:"status"`
		} `json:"envelopeSummary"`
	} `json:"data"`
}

// VerifyConnect checks X-DocuSign-Signature-1 and -2 against the Connect HMAC key
func (c *DocuSignClient) VerifyConnect(body []byte, header http.Header) error {
	return gateway.VerifyBase64HMAC([]byte(c.cfg.ConnectHMACKey), body,
		header.Get("X-DocuSign-Signature-1"),
		header.Get("X-DocuSign-Signature-2"),
	)
}

// ParseConnectEvent decodes a JSON Connect notification. The status comes from the
// envelope summary when present, else from the event name: "envelope-completed" -> "completed".
func ParseConnectEvent(body []byte) (*ConnectEvent, error) {
	var p connectPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedConnectEvent, err)
	}
	if p.Data.EnvelopeID == "" {
		return nil, ErrMalformedConnectEvent
	}

	ev := &ConnectEvent{Event: p.Event, EnvelopeID: p.Data.EnvelopeID}
	if p.Data.EnvelopeSummary != nil {
		ev.Status = p.Data.EnvelopeSummary.Status
	}
	if ev.Status == "" {
		ev.Status = strings.TrimPrefix(p.Event, "envelope-")
	}
	if t, err := time.Parse(time.RFC3339, p.GeneratedDateTime); err == nil {
		ev.GeneratedAt = t
	}
	return ev, nil
}
