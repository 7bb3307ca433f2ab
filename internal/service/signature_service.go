package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prohmpiriya/eventdesk/internal/client"
	"github.com/prohmpiriya/eventdesk/internal/domain"
	"github.com/prohmpiriya/eventdesk/internal/dto"
	"github.com/prohmpiriya/eventdesk/internal/notification"
	"github.com/prohmpiriya/eventdesk/internal/repository"
	"github.com/prohmpiriya/eventdesk/pkg/logger"
	"go.uber.org/zap"
)

// GatewayDocuSign tags DocuSign Connect deliveries in the webhook log
const GatewayDocuSign domain.Gateway = "docusign"

// Transition sources
const (
	SourceAPI      = "api"
	SourceProvider = "provider"
)

// EnvelopeProvider sends and tracks e-signature envelopes
type EnvelopeProvider interface {
	Enabled() bool
	SendEnvelope(ctx context.Context, requestID string, env *client.Envelope) (*client.EnvelopeSummary, error)
	VoidEnvelope(ctx context.Context, envelopeID, reason string) error
	VerifyConnect(body []byte, header http.Header) error
}

var _ EnvelopeProvider = (*client.DocuSignClient)(nil)

// SignatureService defines the interface for partner contract signatures
type SignatureService interface {
	Create(ctx context.Context, tenantID string, req *dto.CreateSignatureRequest) (*domain.SignatureRequest, error)
	GetByID(ctx context.Context, tenantID, id string) (*domain.SignatureRequest, error)
	List(ctx context.Context, filter *dto.SignatureListFilter) ([]*domain.SignatureRequest, int64, error)
	// Send creates the envelope at the provider and emails the signer
	Send(ctx context.Context, tenantID, id, actorID string) (*domain.SignatureRequest, error)
	Void(ctx context.Context, tenantID, id, actorID, reason string) (*domain.SignatureRequest, error)
	History(ctx context.Context, tenantID, id string) ([]*domain.SignatureTransition, error)
	// HandleConnect verifies and applies a DocuSign Connect notification
	HandleConnect(ctx context.Context, body []byte, header http.Header) (*ReconcileResult, error)
	// ApplyEnvelopeStatus moves a request to the provider-reported status. Stale reports are ignored.
	ApplyEnvelopeStatus(ctx context.Context, envelopeID, status string) (*domain.SignatureRequest, error)
}

type signatureService struct {
	repos    Repositories
	provider EnvelopeProvider
	notifier notification.Notifier
}

// NewSignatureService creates a new SignatureService
func NewSignatureService(repos Repositories, provider EnvelopeProvider, notifier notification.Notifier) SignatureService {
	if notifier == nil {
		notifier = notification.NopNotifier{}
	}
	return &signatureService{repos: repos, provider: provider, notifier: notifier}
}

func (s *signatureService) Create(ctx context.Context, tenantID string, req *dto.CreateSignatureRequest) (*domain.SignatureRequest, error) {
	if err := s.partnerExists(ctx, req.RelatedType, tenantID, req.RelatedID); err != nil {
		return nil, err
	}
	r, err := domain.NewSignatureRequest(tenantID, req.RelatedType, req.RelatedID,
		req.DocumentName, req.DocumentURL, req.SignerName, req.SignerEmail)
	if err != nil {
		return nil, err
	}
	if err := s.repos.Signatures.Create(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *signatureService) partnerExists(ctx context.Context, kind domain.RecipientType, tenantID, id string) error {
	var found bool
	switch kind {
	case domain.RecipientSponsor:
		sp, err := s.repos.Partners.GetSponsor(ctx, tenantID, id)
		if err != nil {
			return err
		}
		found = sp != nil
	case domain.RecipientVendor:
		v, err := s.repos.Partners.GetVendor(ctx, tenantID, id)
		if err != nil {
			return err
		}
		found = v != nil
	case domain.RecipientExhibitor:
		ex, err := s.repos.Partners.GetExhibitor(ctx, tenantID, id)
		if err != nil {
			return err
		}
		found = ex != nil
	default:
		return domain.ErrInvalidRelatedType
	}
	if !found {
		return ErrPartnerNotFound
	}
	return nil
}

func (s *signatureService) GetByID(ctx context.Context, tenantID, id string) (*domain.SignatureRequest, error) {
	r, err := s.repos.Signatures.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, ErrSignatureNotFound
	}
	return r, nil
}

func (s *signatureService) List(ctx context.Context, filter *dto.SignatureListFilter) ([]*domain.SignatureRequest, int64, error) {
	filter.Normalize()
	return s.repos.Signatures.List(ctx, filter)
}

func (s *signatureService) Send(ctx context.Context, tenantID, id, actorID string) (*domain.SignatureRequest, error) {
	if s.provider == nil || !s.provider.Enabled() {
		return nil, client.ErrDocuSignDisabled
	}
	r, err := s.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if !r.Status.CanTransitionTo(domain.SignatureStatusSent) {
		return nil, &domain.TransitionError{Entity: "signature", From: string(r.Status), To: string(domain.SignatureStatusSent)}
	}

	summary, err := s.provider.SendEnvelope(ctx, r.ID, &client.Envelope{
		EmailSubject: "Please sign: " + r.DocumentName,
		DocumentName: r.DocumentName,
		DocumentURL:  r.DocumentURL,
		SignerName:   r.SignerName,
		SignerEmail:  r.SignerEmail,
	})
	if err != nil {
		return nil, err
	}

	r.ProviderEnvelopeID = summary.EnvelopeID
	t, err := r.TransitionTo(domain.SignatureStatusSent, SourceAPI, actorID)
	if err != nil {
		return nil, err
	}
	if err := s.repos.Signatures.SaveTransition(ctx, r, t); err != nil {
		return nil, err
	}

	job := notification.NewJob(tenantID, notification.ChannelEmail, r.SignerEmail, notification.TemplateSignatureSent,
		map[string]any{"name": r.SignerName, "document": r.DocumentName})
	if err := s.notifier.Notify(ctx, job); err != nil {
		logger.WarnCtx(ctx, "signature notification failed", zap.String("signature_id", r.ID), zap.Error(err))
	}
	return r, nil
}

func (s *signatureService) Void(ctx context.Context, tenantID, id, actorID, reason string) (*domain.SignatureRequest, error) {
	r, err := s.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if !r.Status.CanTransitionTo(domain.SignatureStatusVoided) {
		return nil, &domain.TransitionError{Entity: "signature", From: string(r.Status), To: string(domain.SignatureStatusVoided)}
	}
	if r.ProviderEnvelopeID != "" && s.provider != nil && s.provider.Enabled() {
		if reason == "" {
			reason = "voided by organizer"
		}
		if err := s.provider.VoidEnvelope(ctx, r.ProviderEnvelopeID, reason); err != nil {
			return nil, err
		}
	}

	t, err := r.TransitionTo(domain.SignatureStatusVoided, SourceAPI, actorID)
	if err != nil {
		return nil, err
	}
	if err := s.repos.Signatures.SaveTransition(ctx, r, t); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *signatureService) History(ctx context.Context, tenantID, id string) ([]*domain.SignatureTransition, error) {
	r, err := s.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	return s.repos.Signatures.History(ctx, r.ID)
}

func (s *signatureService) HandleConnect(ctx context.Context, body []byte, header http.Header) (*ReconcileResult, error) {
	if s.provider == nil || !s.provider.Enabled() {
		return nil, client.ErrDocuSignDisabled
	}
	if err := s.provider.VerifyConnect(body, header); err != nil {
		return nil, err
	}
	ev, err := client.ParseConnectEvent(body)
	if err != nil {
		return &ReconcileResult{Outcome: OutcomeRejected, Note: err.Error()}, permanent(err)
	}

	eventID := ev.EnvelopeID + ":" + ev.Status
	if !ev.GeneratedAt.IsZero() {
		eventID += ":" + ev.GeneratedAt.UTC().Format(time.RFC3339)
	}
	entry, _, err := s.repos.WebhookLogs.Record(ctx, domain.NewWebhookLog(GatewayDocuSign, eventID, ev.Event, body))
	if err != nil {
		return nil, fmt.Errorf("record connect event: %w", err)
	}
	if entry.Processed {
		return &ReconcileResult{LogID: entry.ID, Outcome: OutcomeDuplicate, Note: entry.Note}, nil
	}

	r, err := s.ApplyEnvelopeStatus(ctx, ev.EnvelopeID, ev.Status)
	note := ""
	outcome := OutcomeProcessed
	switch {
	case errors.Is(err, ErrSignatureNotFound):
		note, outcome, err = "unknown envelope", OutcomeIgnored, nil
	case err != nil:
		entry.MarkFailed(err)
		_ = s.repos.WebhookLogs.MarkFailed(ctx, entry)
		return &ReconcileResult{LogID: entry.ID, Outcome: OutcomeFailed, Note: err.Error()}, err
	default:
		entry.TenantID = r.TenantID
		note = "signature " + string(r.Status)
	}

	entry.MarkProcessed(note, time.Now())
	if err := s.repos.WebhookLogs.MarkProcessed(ctx, entry); err != nil {
		return nil, err
	}
	return &ReconcileResult{LogID: entry.ID, Outcome: outcome, Note: note}, nil
}

func (s *signatureService) ApplyEnvelopeStatus(ctx context.Context, envelopeID, status string) (*domain.SignatureRequest, error) {
	r, err := s.repos.Signatures.GetByEnvelopeID(ctx, envelopeID)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, ErrSignatureNotFound
	}

	target, ok := domain.ParseEnvelopeStatus(status)
	if !ok || target == r.Status || !r.Status.CanTransitionTo(target) {
		// Connect retries and reorders deliveries; anything that does not move forward is stale
		logger.DebugCtx(ctx, "stale envelope status ignored",
			zap.String("envelope_id", envelopeID),
			zap.String("current", string(r.Status)),
			zap.String("reported", status),
		)
		return r, nil
	}

	t, err := r.TransitionTo(target, SourceProvider, "")
	if err != nil {
		return nil, err
	}
	if err := s.repos.Signatures.SaveTransition(ctx, r, t); err != nil {
		if errors.Is(err, repository.ErrNotUpdated) {
			return s.repos.Signatures.GetByEnvelopeID(ctx, envelopeID)
		}
		return nil, err
	}
	logger.InfoCtx(ctx, "signature status updated",
		zap.String("signature_id", r.ID),
		zap.String("status", string(r.Status)),
	)
	return r, nil
}
