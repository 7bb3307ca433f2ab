package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prohmpiriya/eventdesk/internal/domain"
	"github.com/prohmpiriya/eventdesk/internal/dto"
	"gorm.io/gorm"
)

type eventRepository struct {
	db *gorm.DB
}

// NewEventRepository creates a gorm-backed EventRepository
func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) Create(ctx context.Context, event *domain.Event) error {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *eventRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Event, error) {
	var event domain.Event
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

func (r *eventRepository) List(ctx context.Context, filter *dto.EventListFilter) ([]*domain.Event, int64, error) {
	filter.Normalize()

	q := r.db.WithContext(ctx).Model(&domain.Event{}).Where("tenant_id = ?", filter.TenantID)
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		q = q.Where("name ILIKE ? OR slug ILIKE ? OR venue ILIKE ?", like, like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	events := make([]*domain.Event, 0)
	err := q.Order("starts_at DESC").
		Limit(filter.Limit).
		Offset(filter.Offset()).
		Find(&events).Error
	if err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

// ListUpcoming returns published events starting after from, soonest first
func (r *eventRepository) ListUpcoming(ctx context.Context, tenantID string, from time.Time, limit int) ([]*domain.Event, error) {
	events := make([]*domain.Event, 0)
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status = ? AND starts_at >= ?", tenantID, domain.EventStatusPublished, from).
		Order("starts_at ASC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

func (r *eventRepository) Update(ctx context.Context, event *domain.Event) error {
	event.UpdatedAt = time.Now()
	result := r.db.WithContext(ctx).
		Model(&domain.Event{}).
		Where("tenant_id = ? AND id = ?", event.TenantID, event.ID).
		Select("name", "slug", "description", "venue", "starts_at", "ends_at", "currency", "capacity",
			"ticket_price", "status", "published_at", "updated_at").
		Updates(event)
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return ErrDuplicate
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("event %s: %w", event.ID, ErrNotUpdated)
	}
	return nil
}

// Delete removes a draft event. Published events are cancelled instead.
func (r *eventRepository) Delete(ctx context.Context, tenantID, id string) error {
	result := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ? AND status = ?", tenantID, id, domain.EventStatusDraft).
		Delete(&domain.Event{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("event %s: %w", id, ErrNotUpdated)
	}
	return nil
}
