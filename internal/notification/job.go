package notification

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/prohmpiriya/eventdesk/pkg/logger"
	"go.uber.org/zap"
)

// Channel is how a notification reaches its recipient
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
)

// Templates
const (
	TemplatePaymentReceipt        = "payment_receipt"
	TemplateRefundProcessed       = "refund_processed"
	TemplateRegistrationConfirmed = "registration_confirmed"
	TemplateSignatureSent         = "signature_sent"
)

// ErrUnknownChannel is returned for jobs no sender can deliver
var ErrUnknownChannel = errors.New("unknown notification channel")

// Job is one message to deliver
type Job struct {
	ID        string         `json:"id"`
	TenantID  string         `json:"tenant_id,omitempty"`
	Channel   Channel        `json:"channel"`
	To        string         `json:"to"`
	Template  string         `json:"template"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewJob creates a job with a fresh ID
func NewJob(tenantID string, channel Channel, to, template string, data map[string]any) *Job {
	return &Job{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Channel:   channel,
		To:        to,
		Template:  template,
		Data:      data,
		CreatedAt: time.Now(),
	}
}

// RoutingKey is "<channel>.<template>", e.g. "email.payment_receipt"
func (j *Job) RoutingKey() string {
	return string(j.Channel) + "." + j.Template
}

// Notifier enqueues notification jobs
type Notifier interface {
	Notify(ctx context.Context, job *Job) error
}

// NopNotifier drops jobs, logging them at debug level
type NopNotifier struct{}

func (NopNotifier) Notify(ctx context.Context, job *Job) error {
	logger.DebugCtx(ctx, "notification dropped",
		zap.String("channel", string(job.Channel)),
		zap.String("template", job.Template),
	)
	return nil
}
