package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/prohmpiriya/eventdesk/internal/domain"
	"github.com/prohmpiriya/eventdesk/internal/dto"
	"gorm.io/gorm"
)

type partnerRepository struct {
	db *gorm.DB
}

// NewPartnerRepository creates a gorm-backed PartnerRepository
func NewPartnerRepository(db *gorm.DB) PartnerRepository {
	return &partnerRepository{db: db}
}

// first loads one tenant-scoped row into dst, reporting false when absent
func (r *partnerRepository) first(ctx context.Context, dst any, tenantID, id string) (bool, error) {
	err := r.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, id).First(dst).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// scoped applies the shared list filter. nameColumn is searched with ILIKE.
func (r *partnerRepository) scoped(ctx context.Context, model any, filter *dto.PartnerListFilter, nameColumn string) *gorm.DB {
	filter.Normalize()
	q := r.db.WithContext(ctx).Model(model).Where("tenant_id = ?", filter.TenantID)
	if filter.EventID != "" {
		q = q.Where("event_id = ?", filter.EventID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Search != "" {
		q = q.Where(nameColumn+" ILIKE ?", "%"+filter.Search+"%")
	}
	return q
}

// save updates every column of a loaded row, zero values included
func (r *partnerRepository) save(ctx context.Context, model any, tenantID, id string) error {
	result := r.db.WithContext(ctx).
		Model(model).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Select("*").
		Omit("id", "tenant_id", "created_at").
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("partner %s: %w", id, ErrNotUpdated)
	}
	return nil
}

func (r *partnerRepository) CreateSponsor(ctx context.Context, s *domain.Sponsor) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *partnerRepository) GetSponsor(ctx context.Context, tenantID, id string) (*domain.Sponsor, error) {
	var s domain.Sponsor
	ok, err := r.first(ctx, &s, tenantID, id)
	if !ok || err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *partnerRepository) ListSponsors(ctx context.Context, filter *dto.PartnerListFilter) ([]*domain.Sponsor, int64, error) {
	q := r.scoped(ctx, &domain.Sponsor{}, filter, "name")
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	out := make([]*domain.Sponsor, 0)
	err := q.Order("created_at DESC").Limit(filter.Limit).Offset(filter.Offset()).Find(&out).Error
	return out, total, err
}

func (r *partnerRepository) UpdateSponsor(ctx context.Context, s *domain.Sponsor) error {
	return r.save(ctx, s, s.TenantID, s.ID)
}

func (r *partnerRepository) CreateVendor(ctx context.Context, v *domain.Vendor) error {
	return r.db.WithContext(ctx).Create(v).Error
}

func (r *partnerRepository) GetVendor(ctx context.Context, tenantID, id string) (*domain.Vendor, error) {
	var v domain.Vendor
	ok, err := r.first(ctx, &v, tenantID, id)
	if !ok || err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *partnerRepository) ListVendors(ctx context.Context, filter *dto.PartnerListFilter) ([]*domain.Vendor, int64, error) {
	q := r.scoped(ctx, &domain.Vendor{}, filter, "name")
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	out := make([]*domain.Vendor, 0)
	err := q.Order("created_at DESC").Limit(filter.Limit).Offset(filter.Offset()).Find(&out).Error
	return out, total, err
}

func (r *partnerRepository) UpdateVendor(ctx context.Context, v *domain.Vendor) error {
	return r.save(ctx, v, v.TenantID, v.ID)
}

func (r *partnerRepository) CreateExhibitor(ctx context.Context, e *domain.Exhibitor) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *partnerRepository) GetExhibitor(ctx context.Context, tenantID, id string) (*domain.Exhibitor, error) {
	var e domain.Exhibitor
	ok, err := r.first(ctx, &e, tenantID, id)
	if !ok || err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *partnerRepository) ListExhibitors(ctx context.Context, filter *dto.PartnerListFilter) ([]*domain.Exhibitor, int64, error) {
	q := r.scoped(ctx, &domain.Exhibitor{}, filter, "company_name")
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	out := make([]*domain.Exhibitor, 0)
	err := q.Order("created_at DESC").Limit(filter.Limit).Offset(filter.Offset()).Find(&out).Error
	return out, total, err
}

func (r *partnerRepository) UpdateExhibitor(ctx context.Context, e *domain.Exhibitor) error {
	return r.save(ctx, e, e.TenantID, e.ID)
}

func (r *partnerRepository) Delete(ctx context.Context, kind domain.RecipientType, tenantID, id string) error {
	var model any
	switch kind {
	case domain.RecipientSponsor:
		model = &domain.Sponsor{}
	case domain.RecipientVendor:
		model = &domain.Vendor{}
	case domain.RecipientExhibitor:
		model = &domain.Exhibitor{}
	default:
		return domain.ErrInvalidRelatedType
	}
	result := r.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, id).Delete(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotUpdated)
	}
	return nil
}
