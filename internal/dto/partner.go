package dto

import "github.com/prohmpiriya/eventdesk/internal/domain"

// PartnerListFilter narrows sponsor, vendor and exhibitor lists
type PartnerListFilter struct {
	Pagination
	TenantID string `form:"-"`
	EventID  string `form:"event_id" binding:"omitempty,uuid"`
	Status   string `form:"status"`
	Search   string `form:"search"`
}

// SponsorRequest creates or updates a sponsor
type SponsorRequest struct {
	EventID      string             `json:"event_id" binding:"required,uuid"`
	Name         string             `json:"name" binding:"required,max=255"`
	ContactName  string             `json:"contact_name" binding:"omitempty,max=255"`
	ContactEmail string             `json:"contact_email" binding:"omitempty,email"`
	Tier         domain.SponsorTier `json:"tier" binding:"required,oneof=platinum gold silver bronze partner"`
	Amount       int64              `json:"amount" binding:"min=0"`
	Currency     string             `json:"currency" binding:"omitempty,len=3"`
	LogoURL      string             `json:"logo_url" binding:"omitempty,url"`
}

// VendorRequest creates or updates a vendor
type VendorRequest struct {
	EventID         string `json:"event_id" binding:"required,uuid"`
	Name            string `json:"name" binding:"required,max=255"`
	ContactName     string `json:"contact_name" binding:"omitempty,max=255"`
	ContactEmail    string `json:"contact_email" binding:"omitempty,email"`
	ServiceCategory string `json:"service_category" binding:"omitempty,max=100"`
	ContractAmount  int64  `json:"contract_amount" binding:"min=0"`
	Currency        string `json:"currency" binding:"omitempty,len=3"`
}

// ExhibitorRequest creates or updates an exhibitor
type ExhibitorRequest struct {
	EventID      string `json:"event_id" binding:"required,uuid"`
	CompanyName  string `json:"company_name" binding:"required,max=255"`
	ContactName  string `json:"contact_name" binding:"omitempty,max=255"`
	ContactEmail string `json:"contact_email" binding:"omitempty,email"`
	BoothNumber  string `json:"booth_number" binding:"omitempty,max=20"`
	BoothSize    string `json:"booth_size" binding:"omitempty,max=20"`
	Fee          int64  `json:"fee" binding:"min=0"`
	Currency     string `json:"currency" binding:"omitempty,len=3"`
}

// PartnerInvoiceRequest bills a partner with a single line by default
type PartnerInvoiceRequest struct {
	Description    string            `json:"description" binding:"omitempty,max=500"`
	LineItems      []LineItemRequest `json:"line_items" binding:"omitempty,dive"`
	TaxStructureID string            `json:"tax_structure_id" binding:"omitempty,uuid"`
}

// CreateSignatureRequest routes a document to a partner for signing
type CreateSignatureRequest struct {
	RelatedType  domain.RecipientType `json:"related_type" binding:"required,oneof=sponsor vendor exhibitor"`
	RelatedID    string               `json:"related_id" binding:"required,uuid"`
	DocumentName string               `json:"document_name" binding:"required,max=255"`
	DocumentURL  string               `json:"document_url" binding:"required,url"`
	SignerName   string               `json:"signer_name" binding:"required,max=255"`
	SignerEmail  string               `json:"signer_email" binding:"required,email"`
}

// SignatureListFilter narrows signature request lists
type SignatureListFilter struct {
	Pagination
	TenantID    string `form:"-"`
	RelatedType string `form:"related_type"`
	RelatedID   string `form:"related_id" binding:"omitempty,uuid"`
	Status      string `form:"status"`
}

// CreateFloorPlanRequest creates a floor plan
type CreateFloorPlanRequest struct {
	EventID string         `json:"event_id" binding:"required,uuid"`
	Name    string         `json:"name" binding:"required,max=255"`
	Width   int            `json:"width" binding:"required,min=1,max=10000"`
	Height  int            `json:"height" binding:"required,min=1,max=10000"`
	Layout  domain.JSONDoc `json:"layout"`
}

// UpdateFloorPlanRequest edits an unpublished floor plan
type UpdateFloorPlanRequest struct {
	Name   *string        `json:"name" binding:"omitempty,max=255"`
	Width  *int           `json:"width" binding:"omitempty,min=1,max=10000"`
	Height *int           `json:"height" binding:"omitempty,min=1,max=10000"`
	Layout domain.JSONDoc `json:"layout"`
}

// GenerateSeatsRequest lays out a rectangular block of seats
type GenerateSeatsRequest struct {
	Section  string `json:"section" binding:"required,max=20"`
	Rows     int    `json:"rows" binding:"required,min=1,max=200"`
	Cols     int    `json:"cols" binding:"required,min=1,max=200"`
	StartX   int    `json:"start_x" binding:"min=0"`
	StartY   int    `json:"start_y" binding:"min=0"`
	SpacingX int    `json:"spacing_x" binding:"omitempty,min=1"`
	SpacingY int    `json:"spacing_y" binding:"omitempty,min=1"`
	FirstRow int    `json:"first_row" binding:"min=0"`
	Category string `json:"category" binding:"omitempty,max=50"`
	Price    int64  `json:"price" binding:"min=0"`
}

// ToGrid converts the request to a domain seat grid
func (r *GenerateSeatsRequest) ToGrid() domain.SeatGrid {
	return domain.SeatGrid{
		Section:  r.Section,
		Rows:     r.Rows,
		Cols:     r.Cols,
		StartX:   r.StartX,
		StartY:   r.StartY,
		SpacingX: r.SpacingX,
		SpacingY: r.SpacingY,
		FirstRow: r.FirstRow,
		Category: r.Category,
		Price:    r.Price,
	}
}

// SeatHoldRequest holds or releases seats for a holder token
type SeatHoldRequest struct {
	HoldToken string   `json:"hold_token" binding:"required,max=64"`
	SeatIDs   []string `json:"seat_ids" binding:"required,min=1,dive,uuid"`
}

// SeatBlockRequest blocks or unblocks seats
type SeatBlockRequest struct {
	SeatIDs []string `json:"seat_ids" binding:"required,min=1,dive,uuid"`
	Blocked bool     `json:"blocked"`
}

// SeatHoldResponse reports the outcome of a hold
type SeatHoldResponse struct {
	HoldToken string   `json:"hold_token"`
	SeatIDs   []string `json:"seat_ids"`
	ExpiresIn int      `json:"expires_in_seconds"`
}
