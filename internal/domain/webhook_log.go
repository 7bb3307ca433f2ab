package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// WebhookLog is the audit record of one inbound gateway event
type WebhookLog struct {
	ID          string          `json:"id"`
	Gateway     Gateway         `json:"gateway"`
	EventID     string          `json:"event_id"`
	EventType   string          `json:"event_type"`
	TenantID    string          `json:"tenant_id,omitempty"`
	Payload     json.RawMessage `json:"payload"`
	Processed   bool            `json:"processed"`
	Attempts    int             `json:"attempts"`
	LastError   string          `json:"last_error,omitempty"`
	Note        string          `json:"note,omitempty"`
	ReceivedAt  time.Time       `json:"received_at"`
	ProcessedAt *time.Time      `json:"processed_at,omitempty"`
}

// NewWebhookLog creates an unprocessed log entry
func NewWebhookLog(gateway Gateway, eventID, eventType string, payload []byte) *WebhookLog {
	return &WebhookLog{
		ID:         uuid.New().String(),
		Gateway:    gateway,
		EventID:    eventID,
		EventType:  eventType,
		Payload:    json.RawMessage(payload),
		ReceivedAt: time.Now(),
	}
}

// MarkProcessed records a successful application of the event
func (w *WebhookLog) MarkProcessed(note string, at time.Time) {
	w.Processed = true
	w.Attempts++
	w.LastError = ""
	w.Note = note
	w.ProcessedAt = &at
}

// MarkFailed records a failed attempt, leaving the log unprocessed
func (w *WebhookLog) MarkFailed(err error) {
	w.Processed = false
	w.Attempts++
	if err != nil {
		w.LastError = err.Error()
	}
}
