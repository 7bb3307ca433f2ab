package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prohmpiriya/eventdesk/internal/domain"
	"github.com/prohmpiriya/eventdesk/internal/dto"
	"github.com/prohmpiriya/eventdesk/internal/gateway"
	"github.com/prohmpiriya/eventdesk/internal/repository"
	"github.com/prohmpiriya/eventdesk/pkg/logger"
	"go.uber.org/zap"
)

// WebhookService defines the interface for inbound payment webhooks
type WebhookService interface {
	// Ingest verifies, records and applies one delivery from a gateway
	Ingest(ctx context.Context, gw domain.Gateway, payload []byte, header http.Header) (*ReconcileResult, error)
	// List returns webhook logs, scoped to a tenant when the filter names one
	List(ctx context.Context, filter *dto.WebhookLogFilter) ([]*domain.WebhookLog, int, error)
	// GetByID returns one webhook log
	GetByID(ctx context.Context, tenantID, id string) (*domain.WebhookLog, error)
	// Replay re-applies an unprocessed log from its stored payload
	Replay(ctx context.Context, id string) (*ReconcileResult, error)
	// ReplayUnprocessed replays up to limit unprocessed logs, oldest first
	ReplayUnprocessed(ctx context.Context, limit int) ([]*ReconcileResult, error)
}

type webhookService struct {
	registry   *gateway.Registry
	reconciler *Reconciler
	logs       repository.WebhookLogRepository
}

// NewWebhookService creates a new WebhookService
func NewWebhookService(registry *gateway.Registry, reconciler *Reconciler, logs repository.WebhookLogRepository) WebhookService {
	return &webhookService{
		registry:   registry,
		reconciler: reconciler,
		logs:       logs,
	}
}

func (s *webhookService) Ingest(ctx context.Context, gw domain.Gateway, payload []byte, header http.Header) (*ReconcileResult, error) {
	ctx = logger.ContextWith(ctx, logger.GatewayKey, string(gw))
	provider, err := s.registry.Get(gw)
	if err != nil {
		return nil, err
	}

	eventID, err := provider.VerifyWebhook(payload, header)
	if err != nil {
		logger.WarnCtx(ctx, "webhook signature rejected", zap.Error(err))
		return nil, err
	}
	ctx = logger.ContextWith(ctx, logger.WebhookEventKey, eventID)

	evt, err := provider.ParseWebhook(eventID, payload)
	if err != nil {
		// A verified but undecodable body will never decode; keep it for inspection
		entry := domain.NewWebhookLog(gw, eventID, "unparseable", payload)
		if stored, _, recErr := s.logs.Record(ctx, entry); recErr == nil && !stored.Processed {
			stored.MarkFailed(err)
			_ = s.logs.MarkFailed(ctx, stored)
		}
		return &ReconcileResult{Outcome: OutcomeRejected, Note: err.Error()}, permanent(err)
	}

	return s.reconciler.Process(ctx, evt)
}

func (s *webhookService) List(ctx context.Context, filter *dto.WebhookLogFilter) ([]*domain.WebhookLog, int, error) {
	filter.Normalize()
	return s.logs.List(ctx, filter)
}

func (s *webhookService) GetByID(ctx context.Context, tenantID, id string) (*domain.WebhookLog, error) {
	entry, err := s.logs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry == nil || (tenantID != "" && entry.TenantID != tenantID) {
		return nil, ErrWebhookLogNotFound
	}
	return entry, nil
}

func (s *webhookService) Replay(ctx context.Context, id string) (*ReconcileResult, error) {
	entry, err := s.logs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, ErrWebhookLogNotFound
	}
	return s.replay(ctx, entry)
}

func (s *webhookService) ReplayUnprocessed(ctx context.Context, limit int) ([]*ReconcileResult, error) {
	if limit <= 0 {
		limit = 100
	}
	entries, err := s.logs.ListUnprocessed(ctx, limit)
	if err != nil {
		return nil, err
	}

	results := make([]*ReconcileResult, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := s.replay(ctx, entry)
		if err != nil && !IsPermanent(err) && !errors.Is(err, ErrWebhookInFlight) {
			logger.WarnCtx(ctx, "webhook replay failed",
				zap.String("log_id", entry.ID),
				zap.Error(err),
			)
		}
		if res == nil {
			res = &ReconcileResult{LogID: entry.ID, Outcome: OutcomeFailed}
			if err != nil {
				res.Note = err.Error()
			}
		}
		results = append(results, res)
	}
	return results, nil
}

func (s *webhookService) replay(ctx context.Context, entry *domain.WebhookLog) (*ReconcileResult, error) {
	if entry.Processed {
		return &ReconcileResult{LogID: entry.ID, Outcome: OutcomeDuplicate, Note: entry.Note}, nil
	}
	ctx = logger.ContextWith(ctx, logger.GatewayKey, string(entry.Gateway))
	ctx = logger.ContextWith(ctx, logger.WebhookEventKey, entry.EventID)
	provider, err := s.registry.Get(entry.Gateway)
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", entry.ID, err)
	}
	evt, err := provider.ParseWebhook(entry.EventID, entry.Payload)
	if err != nil {
		return &ReconcileResult{LogID: entry.ID, Outcome: OutcomeRejected, Note: err.Error()}, permanent(err)
	}
	return s.reconciler.Replay(ctx, entry, evt)
}
