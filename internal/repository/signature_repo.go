package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/prohmpiriya/eventdesk/internal/domain"
	"github.com/prohmpiriya/eventdesk/internal/dto"
	"gorm.io/gorm"
)

type signatureRepository struct {
	db *gorm.DB
}

// NewSignatureRepository creates a gorm-backed SignatureRepository
func NewSignatureRepository(db *gorm.DB) SignatureRepository {
	return &signatureRepository{db: db}
}

func (r *signatureRepository) Create(ctx context.Context, req *domain.SignatureRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *signatureRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.SignatureRequest, error) {
	return r.first(r.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, id))
}

func (r *signatureRepository) GetByEnvelopeID(ctx context.Context, envelopeID string) (*domain.SignatureRequest, error) {
	return r.first(r.db.WithContext(ctx).Where("provider_envelope_id = ?", envelopeID))
}

func (r *signatureRepository) first(q *gorm.DB) (*domain.SignatureRequest, error) {
	var req domain.SignatureRequest
	if err := q.First(&req).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &req, nil
}

func (r *signatureRepository) List(ctx context.Context, filter *dto.SignatureListFilter) ([]*domain.SignatureRequest, int64, error) {
	filter.Normalize()

	q := r.db.WithContext(ctx).Model(&domain.SignatureRequest{}).Where("tenant_id = ?", filter.TenantID)
	if filter.RelatedType != "" {
		q = q.Where("related_type = ?", filter.RelatedType)
	}
	if filter.RelatedID != "" {
		q = q.Where("related_id = ?", filter.RelatedID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	out := make([]*domain.SignatureRequest, 0)
	err := q.Order("created_at DESC").Limit(filter.Limit).Offset(filter.Offset()).Find(&out).Error
	return out, total, err
}

// SaveTransition writes the new status guarded by the previous one, so two
// concurrent transitions from the same state cannot both succeed
func (r *signatureRepository) SaveTransition(ctx context.Context, req *domain.SignatureRequest, t *domain.SignatureTransition) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&domain.SignatureRequest{}).
			Where("id = ? AND status = ?", req.ID, t.FromStatus).
			Updates(map[string]any{
				"status":               req.Status,
				"provider_envelope_id": req.ProviderEnvelopeID,
				"sent_at":              req.SentAt,
				"completed_at":         req.CompletedAt,
				"updated_at":           req.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("signature request %s left %s concurrently: %w", req.ID, t.FromStatus, ErrNotUpdated)
		}
		return tx.Create(t).Error
	})
}

func (r *signatureRepository) UpdateDetails(ctx context.Context, req *domain.SignatureRequest) error {
	result := r.db.WithContext(ctx).
		Model(&domain.SignatureRequest{}).
		Where("tenant_id = ? AND id = ?", req.TenantID, req.ID).
		Updates(map[string]any{
			"document_name":        req.DocumentName,
			"document_url":         req.DocumentURL,
			"signer_name":          req.SignerName,
			"signer_email":         req.SignerEmail,
			"provider_envelope_id": req.ProviderEnvelopeID,
			"updated_at":           req.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("signature request %s: %w", req.ID, ErrNotUpdated)
	}
	return nil
}

func (r *signatureRepository) History(ctx context.Context, requestID string) ([]*domain.SignatureTransition, error) {
	out := make([]*domain.SignatureTransition, 0)
	err := r.db.WithContext(ctx).
		Where("signature_request_id = ?", requestID).
		Order("created_at").
		Find(&out).Error
	return out, err
}
