package dto

import (
	"time"

	"github.com/prohmpiriya/eventdesk/internal/domain"
)

// CreateEventRequest represents a request to create an event
type CreateEventRequest struct {
	Name        string    `json:"name" binding:"required,min=2,max=255"`
	Slug        string    `json:"slug" binding:"omitempty,max=100"`
	Description string    `json:"description" binding:"omitempty"`
	Venue       string    `json:"venue" binding:"omitempty,max=255"`
	StartsAt    time.Time `json:"starts_at" binding:"required"`
	EndsAt      time.Time `json:"ends_at" binding:"required"`
	Currency    string    `json:"currency" binding:"omitempty,len=3"`
	Capacity    int       `json:"capacity" binding:"omitempty,min=0"`
	TicketPrice int64     `json:"ticket_price" binding:"omitempty,min=0"`
}

// UpdateEventRequest represents a partial event update
type UpdateEventRequest struct {
	Name        *string    `json:"name" binding:"omitempty,min=2,max=255"`
	Description *string    `json:"description"`
	Venue       *string    `json:"venue" binding:"omitempty,max=255"`
	StartsAt    *time.Time `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at"`
	Capacity    *int       `json:"capacity" binding:"omitempty,min=0"`
	TicketPrice *int64     `json:"ticket_price" binding:"omitempty,min=0"`
}

// EventListFilter is bound from GET /events query parameters
type EventListFilter struct {
	Pagination
	TenantID string `form:"-"`
	Status   string `form:"status" binding:"omitempty,oneof=draft published cancelled completed"`
	Search   string `form:"search"`
}

// CreateRegistrationRequest registers an attendee for an event
type CreateRegistrationRequest struct {
	EventID      string   `json:"event_id" binding:"required,uuid"`
	AttendeeName string   `json:"attendee_name" binding:"required,min=1,max=255"`
	Email        string   `json:"email" binding:"required,email"`
	Phone        string   `json:"phone" binding:"omitempty,max=32"`
	Quantity     int      `json:"quantity" binding:"required,min=1,max=50"`
	FloorPlanID  string   `json:"floor_plan_id" binding:"omitempty,uuid"`
	SeatIDs      []string `json:"seat_ids" binding:"omitempty,dive,uuid"`
	HoldToken    string   `json:"hold_token" binding:"omitempty"`
}

// RegistrationListFilter is bound from GET /registrations query parameters
type RegistrationListFilter struct {
	Pagination
	TenantID string `form:"-"`
	EventID  string `form:"event_id" binding:"omitempty,uuid"`
	Status   string `form:"status"`
	Search   string `form:"search"`
}

// CheckoutRequest selects the gateway used to pay a registration or invoice
type CheckoutRequest struct {
	Gateway    domain.Gateway `json:"gateway" binding:"required,oneof=stripe razorpay"`
	SuccessURL string         `json:"success_url" binding:"omitempty,url"`
}

// CheckoutResponse carries what the browser needs to complete payment
type CheckoutResponse struct {
	Gateway          domain.Gateway `json:"gateway"`
	PaymentID        string         `json:"payment_id"`
	GatewayPaymentID string         `json:"gateway_payment_id,omitempty"`
	GatewayOrderID   string         `json:"gateway_order_id,omitempty"`
	ClientSecret     string         `json:"client_secret,omitempty"`
	PublicKey        string         `json:"public_key,omitempty"`
	Amount           int64          `json:"amount"`
	Currency         string         `json:"currency"`
}
