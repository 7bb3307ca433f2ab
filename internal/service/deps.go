package service

import (
	"context"
	"time"

	"github.com/prohmpiriya/eventdesk/internal/dto"
	"github.com/prohmpiriya/eventdesk/pkg/kafka"
	"github.com/prohmpiriya/eventdesk/pkg/logger"
	"github.com/prohmpiriya/eventdesk/pkg/redis"
	"go.uber.org/zap"
)

// TxManager runs fn in a database transaction carried by ctx
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Locker is a distributed lock keyed by string
type Locker interface {
	AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, token string) error
}

// SeatHolder keeps short-lived seat holds outside the database
type SeatHolder interface {
	HoldSeats(ctx context.Context, floorPlanID, holder string, seatIDs []string, ttl time.Duration, maxPerHolder int) (*redis.HoldResult, error)
	ReleaseSeats(ctx context.Context, floorPlanID, holder string, seatIDs []string) (*redis.HoldResult, error)
	SeatHolders(ctx context.Context, floorPlanID string, seatIDs []string) (map[string]string, error)
}

// FinancePublisher emits finance events after reconciliation commits
type FinancePublisher interface {
	PublishFinanceEvent(ctx context.Context, evt *dto.FinanceEvent) error
}

// KafkaFinancePublisher publishes finance events to Kafka keyed by invoice
type KafkaFinancePublisher struct {
	producer *kafka.Producer
}

// NewKafkaFinancePublisher wraps a producer
func NewKafkaFinancePublisher(producer *kafka.Producer) *KafkaFinancePublisher {
	return &KafkaFinancePublisher{producer: producer}
}

func (p *KafkaFinancePublisher) PublishFinanceEvent(ctx context.Context, evt *dto.FinanceEvent) error {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	return p.producer.PublishJSON(ctx, evt.Topic(), evt.Key(), evt, map[string]string{
		"event_type": evt.EventType,
		"tenant_id":  evt.TenantID,
	})
}

// NopFinancePublisher logs events instead of publishing them
type NopFinancePublisher struct{}

func (NopFinancePublisher) PublishFinanceEvent(ctx context.Context, evt *dto.FinanceEvent) error {
	logger.DebugCtx(ctx, "finance event not published",
		zap.String("event_type", evt.EventType),
		zap.String("tenant_id", evt.TenantID),
	)
	return nil
}

// Config carries the settings services read from pkg/config
type Config struct {
	DefaultFinanceMode  string
	DefaultCurrency     string
	LegacyInvoicePrefix string
	InvoiceDueDays      int
	WebhookLockTTL      time.Duration
	SeatHoldTTL         time.Duration
	MaxSeatsPerHold     int
	JWTSecret           string
	JWTIssuer           string
	JWTTTL              time.Duration
}

func (c Config) withDefaults() Config {
	if c.DefaultFinanceMode == "" {
		c.DefaultFinanceMode = "legacy"
	}
	if c.DefaultCurrency == "" {
		c.DefaultCurrency = "USD"
	}
	if c.LegacyInvoicePrefix == "" {
		c.LegacyInvoicePrefix = "INV"
	}
	if c.InvoiceDueDays <= 0 {
		c.InvoiceDueDays = 30
	}
	if c.WebhookLockTTL <= 0 {
		c.WebhookLockTTL = 30 * time.Second
	}
	if c.SeatHoldTTL <= 0 {
		c.SeatHoldTTL = 10 * time.Minute
	}
	if c.MaxSeatsPerHold <= 0 {
		c.MaxSeatsPerHold = 10
	}
	if c.JWTTTL <= 0 {
		c.JWTTTL = 12 * time.Hour
	}
	return c
}
