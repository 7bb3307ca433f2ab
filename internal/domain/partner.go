package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// SponsorTier ranks sponsorship packages
type SponsorTier string

const (
	SponsorTierPlatinum SponsorTier = "platinum"
	SponsorTierGold     SponsorTier = "gold"
	SponsorTierSilver   SponsorTier = "silver"
	SponsorTierBronze   SponsorTier = "bronze"
	SponsorTierPartner  SponsorTier = "partner"
)

// IsValid reports whether t is a known tier
func (t SponsorTier) IsValid() bool {
	switch t {
	case SponsorTierPlatinum, SponsorTierGold, SponsorTierSilver, SponsorTierBronze, SponsorTierPartner:
		return true
	}
	return false
}

// Sponsor statuses
const (
	SponsorStatusProspect  = "prospect"
	SponsorStatusConfirmed = "confirmed"
	SponsorStatusCancelled = "cancelled"
)

// Vendor statuses
const (
	VendorStatusPending  = "pending"
	VendorStatusApproved = "approved"
	VendorStatusRejected = "rejected"
)

// Exhibitor statuses
const (
	ExhibitorStatusApplied   = "applied"
	ExhibitorStatusApproved  = "approved"
	ExhibitorStatusRejected  = "rejected"
	ExhibitorStatusCheckedIn = "checked_in"
)

var partnerTransitions = map[string]map[string][]string{
	"sponsor": {
		SponsorStatusProspect:  {SponsorStatusConfirmed, SponsorStatusCancelled},
		SponsorStatusConfirmed: {SponsorStatusCancelled},
	},
	"vendor": {
		VendorStatusPending:  {VendorStatusApproved, VendorStatusRejected},
		VendorStatusApproved: {VendorStatusRejected},
	},
	"exhibitor": {
		ExhibitorStatusApplied:  {ExhibitorStatusApproved, ExhibitorStatusRejected},
		ExhibitorStatusApproved: {ExhibitorStatusCheckedIn, ExhibitorStatusRejected},
	},
}

func checkPartnerTransition(kind, from, to string) error {
	for _, s := range partnerTransitions[kind][from] {
		if s == to {
			return nil
		}
	}
	return transitionErr(kind, from, to)
}

// Sponsor is a company paying for visibility at an event
type Sponsor struct {
	ID           string      `json:"id" gorm:"type:uuid;primaryKey"`
	TenantID     string      `json:"tenant_id" gorm:"type:uuid;not null;index"`
	EventID      string      `json:"event_id" gorm:"type:uuid;not null;index"`
	Name         string      `json:"name" gorm:"not null"`
	ContactName  string      `json:"contact_name,omitempty"`
	ContactEmail string      `json:"contact_email,omitempty"`
	Tier         SponsorTier `json:"tier" gorm:"type:varchar(20);not null"`
	Amount       int64       `json:"amount"`
	Currency     string      `json:"currency" gorm:"size:3"`
	Status       string      `json:"status" gorm:"type:varchar(20);not null;default:prospect"`
	LogoURL      string      `json:"logo_url,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

func (Sponsor) TableName() string { return "sponsors" }

// NewSponsor creates a prospect sponsor
func NewSponsor(tenantID, eventID, name string, tier SponsorTier, amount int64, currency string) (*Sponsor, error) {
	if err := validatePartner(tenantID, name, amount); err != nil {
		return nil, err
	}
	if !tier.IsValid() {
		tier = SponsorTierPartner
	}
	now := time.Now()
	return &Sponsor{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		EventID:   eventID,
		Name:      name,
		Tier:      tier,
		Amount:    amount,
		Currency:  currency,
		Status:    SponsorStatusProspect,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// SetStatus moves the sponsor through prospect -> confirmed -> cancelled
func (s *Sponsor) SetStatus(status string) error {
	if err := checkPartnerTransition("sponsor", s.Status, status); err != nil {
		return err
	}
	s.Status = status
	s.UpdatedAt = time.Now()
	return nil
}

// Vendor is a supplier contracted for an event
type Vendor struct {
	ID              string    `json:"id" gorm:"type:uuid;primaryKey"`
	TenantID        string    `json:"tenant_id" gorm:"type:uuid;not null;index"`
	EventID         string    `json:"event_id" gorm:"type:uuid;not null;index"`
	Name            string    `json:"name" gorm:"not null"`
	ContactName     string    `json:"contact_name,omitempty"`
	ContactEmail    string    `json:"contact_email,omitempty"`
	ServiceCategory string    `json:"service_category,omitempty"`
	ContractAmount  int64     `json:"contract_amount"`
	Currency        string    `json:"currency" gorm:"size:3"`
	Status          string    `json:"status" gorm:"type:varchar(20);not null;default:pending"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (Vendor) TableName() string { return "vendors" }

// NewVendor creates a pending vendor
func NewVendor(tenantID, eventID, name, category string, contractAmount int64, currency string) (*Vendor, error) {
	if err := validatePartner(tenantID, name, contractAmount); err != nil {
		return nil, err
	}
	now := time.Now()
	return &Vendor{
		ID:              uuid.New().String(),
		TenantID:        tenantID,
		EventID:         eventID,
		Name:            name,
		ServiceCategory: category,
		ContractAmount:  contractAmount,
		Currency:        currency,
		Status:          VendorStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// SetStatus approves or rejects the vendor
func (v *Vendor) SetStatus(status string) error {
	if err := checkPartnerTransition("vendor", v.Status, status); err != nil {
		return err
	}
	v.Status = status
	v.UpdatedAt = time.Now()
	return nil
}

// Exhibitor is a company renting a booth
type Exhibitor struct {
	ID           string    `json:"id" gorm:"type:uuid;primaryKey"`
	TenantID     string    `json:"tenant_id" gorm:"type:uuid;not null;index"`
	EventID      string    `json:"event_id" gorm:"type:uuid;not null;index"`
	CompanyName  string    `json:"company_name" gorm:"not null"`
	ContactName  string    `json:"contact_name,omitempty"`
	ContactEmail string    `json:"contact_email,omitempty"`
	BoothNumber  string    `json:"booth_number,omitempty"`
	BoothSize    string    `json:"booth_size,omitempty"`
	Fee          int64     `json:"fee"`
	Currency     string    `json:"currency" gorm:"size:3"`
	Status       string    `json:"status" gorm:"type:varchar(20);not null;default:applied"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Exhibitor) TableName() string { return "exhibitors" }

// NewExhibitor creates an exhibitor application
func NewExhibitor(tenantID, eventID, companyName string, fee int64, currency string) (*Exhibitor, error) {
	if err := validatePartner(tenantID, companyName, fee); err != nil {
		return nil, err
	}
	now := time.Now()
	return &Exhibitor{
		ID:          uuid.New().String(),
		TenantID:    tenantID,
		EventID:     eventID,
		CompanyName: companyName,
		Fee:         fee,
		Currency:    currency,
		Status:      ExhibitorStatusApplied,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// SetStatus moves the exhibitor through applied -> approved -> checked_in
func (e *Exhibitor) SetStatus(status string) error {
	if err := checkPartnerTransition("exhibitor", e.Status, status); err != nil {
		return err
	}
	e.Status = status
	e.UpdatedAt = time.Now()
	return nil
}

func validatePartner(tenantID, name string, amount int64) error {
	if tenantID == "" {
		return ErrMissingTenant
	}
	if strings.TrimSpace(name) == "" {
		return ErrMissingName
	}
	if amount < 0 {
		return ErrInvalidAmount
	}
	return nil
}
