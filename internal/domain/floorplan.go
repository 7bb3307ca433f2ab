package domain

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// JSONDoc is a JSON document stored in a jsonb column
type JSONDoc []byte

// Value implements driver.Valuer
func (d JSONDoc) Value() (driver.Value, error) {
	if len(d) == 0 {
		return "{}", nil
	}
	return string(d), nil
}

// Scan implements sql.Scanner
func (d *JSONDoc) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = nil
	case []byte:
		*d = append((*d)[:0], v...)
	case string:
		*d = JSONDoc(v)
	default:
		return fmt.Errorf("cannot scan %T into JSONDoc", src)
	}
	return nil
}

// MarshalJSON emits the document unchanged
func (d JSONDoc) MarshalJSON() ([]byte, error) {
	if len(d) == 0 {
		return []byte("{}"), nil
	}
	return d, nil
}

// UnmarshalJSON keeps a copy of the raw document
func (d *JSONDoc) UnmarshalJSON(b []byte) error {
	if d == nil {
		return errors.New("JSONDoc: UnmarshalJSON on nil pointer")
	}
	*d = append((*d)[:0], b...)
	return nil
}

// FloorPlan is the seating layout of an event venue
type FloorPlan struct {
	ID          string    `json:"id" gorm:"type:uuid;primaryKey"`
	TenantID    string    `json:"tenant_id" gorm:"type:uuid;not null;index"`
	EventID     string    `json:"event_id" gorm:"type:uuid;not null;index"`
	Name        string    `json:"name" gorm:"not null"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	Layout      JSONDoc   `json:"layout" gorm:"type:jsonb;not null;default:'{}'"`
	IsPublished bool      `json:"is_published"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (FloorPlan) TableName() string { return "floor_plans" }

// NewFloorPlan creates an unpublished plan
func NewFloorPlan(tenantID, eventID, name string, width, height int) (*FloorPlan, error) {
	if tenantID == "" {
		return nil, ErrMissingTenant
	}
	if strings.TrimSpace(name) == "" {
		return nil, ErrMissingName
	}
	if width <= 0 || height <= 0 {
		return nil, ErrInvalidGrid
	}
	now := time.Now()
	return &FloorPlan{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		EventID:   eventID,
		Name:      name,
		Width:     width,
		Height:    height,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// SeatStatus represents the state of a seat. Held is never stored; it is overlaid from Redis.
type SeatStatus string

const (
	SeatStatusAvailable SeatStatus = "available"
	SeatStatusHeld      SeatStatus = "held"
	SeatStatusBooked    SeatStatus = "booked"
	SeatStatusBlocked   SeatStatus = "blocked"
)

// Seat is one bookable position on a floor plan
type Seat struct {
	ID             string     `json:"id"`
	FloorPlanID    string     `json:"floor_plan_id"`
	Section        string     `json:"section"`
	Row            string     `json:"row"`
	Number         int        `json:"number"`
	Label          string     `json:"label"`
	X              int        `json:"x"`
	Y              int        `json:"y"`
	Category       string     `json:"category,omitempty"`
	Price          int64      `json:"price"`
	Status         SeatStatus `json:"status"`
	RegistrationID string     `json:"registration_id,omitempty"`
	HeldBy         string     `json:"held_by,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Book assigns an available seat to a registration
func (s *Seat) Book(registrationID string) error {
	if s.Status != SeatStatusAvailable && s.Status != SeatStatusHeld {
		return ErrSeatNotBookable
	}
	s.Status = SeatStatusBooked
	s.RegistrationID = registrationID
	s.HeldBy = ""
	s.UpdatedAt = time.Now()
	return nil
}

// Release frees a booked seat
func (s *Seat) Release() {
	s.Status = SeatStatusAvailable
	s.RegistrationID = ""
	s.UpdatedAt = time.Now()
}

// SetBlocked blocks or unblocks a seat that is not booked
func (s *Seat) SetBlocked(blocked bool) error {
	if s.Status == SeatStatusBooked {
		return transitionErr("seat", string(s.Status), string(SeatStatusBlocked))
	}
	s.Status = SeatStatusAvailable
	if blocked {
		s.Status = SeatStatusBlocked
	}
	s.UpdatedAt = time.Now()
	return nil
}

// SeatGrid describes a rectangular block of seats in one section
type SeatGrid struct {
	Section  string
	Rows     int
	Cols     int
	StartX   int
	StartY   int
	SpacingX int
	SpacingY int
	FirstRow int // zero-based row label offset: 0 -> "A"
	Category string
	Price    int64
}

// MaxGridSeats caps a single grid generation
const MaxGridSeats = 5000

// GenerateSeats lays out rows x cols available seats for a floor plan
func GenerateSeats(floorPlanID string, g SeatGrid) ([]*Seat, error) {
	if g.Rows <= 0 || g.Cols <= 0 || g.Rows*g.Cols > MaxGridSeats {
		return nil, ErrInvalidGrid
	}
	if g.SpacingX <= 0 {
		g.SpacingX = 1
	}
	if g.SpacingY <= 0 {
		g.SpacingY = 1
	}
	section := strings.TrimSpace(g.Section)
	if section == "" {
		section = "MAIN"
	}

	now := time.Now()
	seats := make([]*Seat, 0, g.Rows*g.Cols)
	for r := 0; r < g.Rows; r++ {
		row := RowLabel(g.FirstRow + r)
		for c := 0; c < g.Cols; c++ {
			seats = append(seats, &Seat{
				ID:          uuid.New().String(),
				FloorPlanID: floorPlanID,
				Section:     section,
				Row:         row,
				Number:      c + 1,
				Label:       fmt.Sprintf("%s-%s%d", section, row, c+1),
				X:           g.StartX + c*g.SpacingX,
				Y:           g.StartY + r*g.SpacingY,
				Category:    g.Category,
				Price:       g.Price,
				Status:      SeatStatusAvailable,
				UpdatedAt:   now,
			})
		}
	}
	return seats, nil
}

// RowLabel converts a zero-based index to a spreadsheet-style label: 0 -> A, 25 -> Z, 26 -> AA
func RowLabel(i int) string {
	if i < 0 {
		return ""
	}
	var b []byte
	for i >= 0 {
		b = append([]byte{byte('A' + i%26)}, b...)
		i = i/26 - 1
	}
	return string(b)
}
