package service

import (
	"context"
	"errors"

	"github.com/prohmpiriya/eventdesk/internal/domain"
	"github.com/prohmpiriya/eventdesk/internal/dto"
	"github.com/prohmpiriya/eventdesk/internal/repository"
	"github.com/prohmpiriya/eventdesk/pkg/money"
)

// EventService manages a tenant's events
type EventService interface {
	Create(ctx context.Context, tenantID string, req *dto.CreateEventRequest) (*domain.Event, error)
	GetByID(ctx context.Context, tenantID, id string) (*domain.Event, error)
	List(ctx context.Context, filter *dto.EventListFilter) ([]*domain.Event, int64, error)
	Update(ctx context.Context, tenantID, id string, req *dto.UpdateEventRequest) (*domain.Event, error)
	Publish(ctx context.Context, tenantID, id string) (*domain.Event, error)
	Cancel(ctx context.Context, tenantID, id string) (*domain.Event, error)
	Delete(ctx context.Context, tenantID, id string) error
}

type eventService struct {
	eventRepo  repository.EventRepository
	tenantRepo repository.TenantRepository
}

// NewEventService creates a new EventService
func NewEventService(eventRepo repository.EventRepository, tenantRepo repository.TenantRepository) EventService {
	return &eventService{eventRepo: eventRepo, tenantRepo: tenantRepo}
}

func (s *eventService) Create(ctx context.Context, tenantID string, req *dto.CreateEventRequest) (*domain.Event, error) {
	tenant, err := loadTenant(ctx, s.tenantRepo, tenantID)
	if err != nil {
		return nil, err
	}
	currency := req.Currency
	if currency == "" {
		currency = tenant.DefaultCurrency
	}
	if currency, err = money.NormalizeCurrency(currency); err != nil {
		return nil, err
	}

	event, err := domain.NewEvent(tenantID, req.Name, req.Slug, currency, req.StartsAt, req.EndsAt)
	if err != nil {
		return nil, err
	}
	event.Description = req.Description
	event.Venue = req.Venue
	event.Capacity = req.Capacity
	event.TicketPrice = req.TicketPrice

	if err := s.eventRepo.Create(ctx, event); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEventSlugTaken
		}
		return nil, err
	}
	return event, nil
}

func (s *eventService) GetByID(ctx context.Context, tenantID, id string) (*domain.Event, error) {
	return loadEvent(ctx, s.eventRepo, tenantID, id)
}

func (s *eventService) List(ctx context.Context, filter *dto.EventListFilter) ([]*domain.Event, int64, error) {
	filter.Normalize()
	return s.eventRepo.List(ctx, filter)
}

func (s *eventService) Update(ctx context.Context, tenantID, id string, req *dto.UpdateEventRequest) (*domain.Event, error) {
	event, err := loadEvent(ctx, s.eventRepo, tenantID, id)
	if err != nil {
		return nil, err
	}
	if event.Status == domain.EventStatusCancelled || event.Status == domain.EventStatusCompleted {
		return nil, &domain.TransitionError{Entity: "event", From: string(event.Status), To: "edit"}
	}

	if req.Name != nil {
		event.Name = *req.Name
	}
	if req.Description != nil {
		event.Description = *req.Description
	}
	if req.Venue != nil {
		event.Venue = *req.Venue
	}
	if req.StartsAt != nil {
		event.StartsAt = *req.StartsAt
	}
	if req.EndsAt != nil {
		event.EndsAt = *req.EndsAt
	}
	if !event.EndsAt.After(event.StartsAt) {
		return nil, domain.ErrInvalidSchedule
	}
	if req.Capacity != nil {
		event.Capacity = *req.Capacity
	}
	if req.TicketPrice != nil {
		event.TicketPrice = *req.TicketPrice
	}

	if err := s.eventRepo.Update(ctx, event); err != nil {
		return nil, mapEventErr(err)
	}
	return event, nil
}

func (s *eventService) Publish(ctx context.Context, tenantID, id string) (*domain.Event, error) {
	return s.transition(ctx, tenantID, id, (*domain.Event).Publish)
}

func (s *eventService) Cancel(ctx context.Context, tenantID, id string) (*domain.Event, error) {
	return s.transition(ctx, tenantID, id, (*domain.Event).Cancel)
}

func (s *eventService) transition(ctx context.Context, tenantID, id string, fn func(*domain.Event) error) (*domain.Event, error) {
	event, err := loadEvent(ctx, s.eventRepo, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := fn(event); err != nil {
		return nil, err
	}
	if err := s.eventRepo.Update(ctx, event); err != nil {
		return nil, mapEventErr(err)
	}
	return event, nil
}

func (s *eventService) Delete(ctx context.Context, tenantID, id string) error {
	return mapEventErr(s.eventRepo.Delete(ctx, tenantID, id))
}

func loadEvent(ctx context.Context, repo repository.EventRepository, tenantID, id string) (*domain.Event, error) {
	event, err := repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, ErrEventNotFound
	}
	return event, nil
}

func mapEventErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotUpdated):
		return ErrEventNotFound
	case errors.Is(err, repository.ErrDuplicate):
		return ErrEventSlugTaken
	}
	return err
}
