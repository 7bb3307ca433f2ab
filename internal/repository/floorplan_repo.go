package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prohmpiriya/eventdesk/internal/domain"
	"gorm.io/gorm"
)

type floorPlanRepository struct {
	db *gorm.DB
}

// NewFloorPlanRepository creates a gorm-backed FloorPlanRepository
func NewFloorPlanRepository(db *gorm.DB) FloorPlanRepository {
	return &floorPlanRepository{db: db}
}

func (r *floorPlanRepository) Create(ctx context.Context, fp *domain.FloorPlan) error {
	return r.db.WithContext(ctx).Create(fp).Error
}

func (r *floorPlanRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.FloorPlan, error) {
	var fp domain.FloorPlan
	err := r.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, id).First(&fp).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &fp, nil
}

func (r *floorPlanRepository) ListByEvent(ctx context.Context, tenantID, eventID string) ([]*domain.FloorPlan, error) {
	plans := make([]*domain.FloorPlan, 0)
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND event_id = ?", tenantID, eventID).
		Order("created_at").
		Find(&plans).Error
	return plans, err
}

func (r *floorPlanRepository) Update(ctx context.Context, fp *domain.FloorPlan) error {
	fp.UpdatedAt = time.Now()
	result := r.db.WithContext(ctx).
		Model(&domain.FloorPlan{}).
		Where("tenant_id = ? AND id = ?", fp.TenantID, fp.ID).
		Select("name", "width", "height", "layout", "is_published", "updated_at").
		Updates(fp)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("floor plan %s: %w", fp.ID, ErrNotUpdated)
	}
	return nil
}
