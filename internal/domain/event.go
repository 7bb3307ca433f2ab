package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// EventStatus represents the lifecycle state of an event
type EventStatus string

const (
	EventStatusDraft     EventStatus = "draft"
	EventStatusPublished EventStatus = "published"
	EventStatusCancelled EventStatus = "cancelled"
	EventStatusCompleted EventStatus = "completed"
)

// Event is a tenant's conference, concert or expo
type Event struct {
	ID          string      `json:"id" gorm:"type:uuid;primaryKey"`
	TenantID    string      `json:"tenant_id" gorm:"type:uuid;not null;index;uniqueIndex:idx_events_tenant_slug"`
	Name        string      `json:"name" gorm:"not null"`
	Slug        string      `json:"slug" gorm:"not null;uniqueIndex:idx_events_tenant_slug"`
	Description string      `json:"description,omitempty"`
	Venue       string      `json:"venue,omitempty"`
	StartsAt    time.Time   `json:"starts_at" gorm:"not null"`
	EndsAt      time.Time   `json:"ends_at" gorm:"not null"`
	Currency    string      `json:"currency" gorm:"size:3;not null"`
	Capacity    int         `json:"capacity"`
	TicketPrice int64       `json:"ticket_price"`
	Status      EventStatus `json:"status" gorm:"type:varchar(20);not null;default:draft;index"`
	PublishedAt *time.Time  `json:"published_at,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// TableName pins the gorm table name
func (Event) TableName() string {
	return "events"
}

// NewEvent creates a draft event
func NewEvent(tenantID, name, slug, currency string, startsAt, endsAt time.Time) (*Event, error) {
	if tenantID == "" {
		return nil, ErrMissingTenant
	}
	if strings.TrimSpace(name) == "" {
		return nil, ErrMissingName
	}
	if slug == "" {
		slug = Slugify(name)
	}
	if !ValidSlug(slug) {
		return nil, ErrInvalidSlug
	}
	if !endsAt.After(startsAt) {
		return nil, ErrInvalidSchedule
	}

	now := time.Now()
	return &Event{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Name:      name,
		Slug:      slug,
		StartsAt:  startsAt,
		EndsAt:    endsAt,
		Currency:  currency,
		Status:    EventStatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// IsFree reports whether registrations need no payment
func (e *Event) IsFree() bool {
	return e.TicketPrice == 0
}

// IsOpenForRegistration reports whether new registrations are accepted
func (e *Event) IsOpenForRegistration() bool {
	return e.Status == EventStatusPublished
}

// Publish makes a draft event visible
func (e *Event) Publish() error {
	if e.Status != EventStatusDraft {
		return transitionErr("event", string(e.Status), string(EventStatusPublished))
	}
	now := time.Now()
	e.Status = EventStatusPublished
	e.PublishedAt = &now
	e.UpdatedAt = now
	return nil
}

// Cancel cancels a draft or published event
func (e *Event) Cancel() error {
	if e.Status != EventStatusDraft && e.Status != EventStatusPublished {
		return transitionErr("event", string(e.Status), string(EventStatusCancelled))
	}
	e.Status = EventStatusCancelled
	e.UpdatedAt = time.Now()
	return nil
}

// Complete marks a published event as finished
func (e *Event) Complete() error {
	if e.Status != EventStatusPublished {
		return transitionErr("event", string(e.Status), string(EventStatusCompleted))
	}
	e.Status = EventStatusCompleted
	e.UpdatedAt = time.Now()
	return nil
}

// Slugify lower-cases s and joins alphanumeric runs with hyphens
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
