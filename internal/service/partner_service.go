package service

import (
	"context"
	"fmt"

	"github.com/prohmpiriya/eventdesk/internal/domain"
	"github.com/prohmpiriya/eventdesk/internal/dto"
	"github.com/prohmpiriya/eventdesk/pkg/money"
)

// PartnerService defines the interface for sponsors, vendors and exhibitors
type PartnerService interface {
	CreateSponsor(ctx context.Context, tenantID string, req *dto.SponsorRequest) (*domain.Sponsor, error)
	GetSponsor(ctx context.Context, tenantID, id string) (*domain.Sponsor, error)
	ListSponsors(ctx context.Context, filter *dto.PartnerListFilter) ([]*domain.Sponsor, int64, error)
	UpdateSponsor(ctx context.Context, tenantID, id string, req *dto.SponsorRequest) (*domain.Sponsor, error)
	SetSponsorStatus(ctx context.Context, tenantID, id, status string) (*domain.Sponsor, error)

	CreateVendor(ctx context.Context, tenantID string, req *dto.VendorRequest) (*domain.Vendor, error)
	GetVendor(ctx context.Context, tenantID, id string) (*domain.Vendor, error)
	ListVendors(ctx context.Context, filter *dto.PartnerListFilter) ([]*domain.Vendor, int64, error)
	UpdateVendor(ctx context.Context, tenantID, id string, req *dto.VendorRequest) (*domain.Vendor, error)
	SetVendorStatus(ctx context.Context, tenantID, id, status string) (*domain.Vendor, error)

	CreateExhibitor(ctx context.Context, tenantID string, req *dto.ExhibitorRequest) (*domain.Exhibitor, error)
	GetExhibitor(ctx context.Context, tenantID, id string) (*domain.Exhibitor, error)
	ListExhibitors(ctx context.Context, filter *dto.PartnerListFilter) ([]*domain.Exhibitor, int64, error)
	UpdateExhibitor(ctx context.Context, tenantID, id string, req *dto.ExhibitorRequest) (*domain.Exhibitor, error)
	SetExhibitorStatus(ctx context.Context, tenantID, id, status string) (*domain.Exhibitor, error)

	// Delete removes a partner of the given kind
	Delete(ctx context.Context, kind domain.RecipientType, tenantID, id string) error
	// CreateInvoice drafts an invoice billed to a partner, defaulting to one line for the agreed amount
	CreateInvoice(ctx context.Context, kind domain.RecipientType, tenantID, id string, req *dto.PartnerInvoiceRequest) (*domain.Invoice, error)
}

type partnerService struct {
	ledger   *ledger
	invoices InvoiceService
}

// NewPartnerService creates a new PartnerService
func NewPartnerService(repos Repositories, invoices InvoiceService, cfg Config) PartnerService {
	return &partnerService{ledger: newLedger(repos, cfg), invoices: invoices}
}

// partnerCurrency falls back to the event's currency
func (s *partnerService) partnerCurrency(ctx context.Context, tenantID, eventID, currency string) (string, error) {
	event, err := loadEvent(ctx, s.ledger.repos.Events, tenantID, eventID)
	if err != nil {
		return "", err
	}
	if currency == "" {
		currency = event.Currency
	}
	return money.NormalizeCurrency(currency)
}

func (s *partnerService) CreateSponsor(ctx context.Context, tenantID string, req *dto.SponsorRequest) (*domain.Sponsor, error) {
	currency, err := s.partnerCurrency(ctx, tenantID, req.EventID, req.Currency)
	if err != nil {
		return nil, err
	}
	sp, err := domain.NewSponsor(tenantID, req.EventID, req.Name, req.Tier, req.Amount, currency)
	if err != nil {
		return nil, err
	}
	sp.ContactName = req.ContactName
	sp.ContactEmail = domain.NormalizeEmail(req.ContactEmail)
	sp.LogoURL = req.LogoURL
	if err := s.ledger.repos.Partners.CreateSponsor(ctx, sp); err != nil {
		return nil, err
	}
	return sp, nil
}

func (s *partnerService) GetSponsor(ctx context.Context, tenantID, id string) (*domain.Sponsor, error) {
	sp, err := s.ledger.repos.Partners.GetSponsor(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if sp == nil {
		return nil, ErrPartnerNotFound
	}
	return sp, nil
}

func (s *partnerService) ListSponsors(ctx context.Context, filter *dto.PartnerListFilter) ([]*domain.Sponsor, int64, error) {
	filter.Normalize()
	return s.ledger.repos.Partners.ListSponsors(ctx, filter)
}

func (s *partnerService) UpdateSponsor(ctx context.Context, tenantID, id string, req *dto.SponsorRequest) (*domain.Sponsor, error) {
	sp, err := s.GetSponsor(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	currency, err := s.partnerCurrency(ctx, tenantID, req.EventID, req.Currency)
	if err != nil {
		return nil, err
	}
	if req.Amount < 0 {
		return nil, domain.ErrInvalidAmount
	}
	sp.EventID = req.EventID
	sp.Name = req.Name
	sp.ContactName = req.ContactName
	sp.ContactEmail = domain.NormalizeEmail(req.ContactEmail)
	sp.Tier = req.Tier
	sp.Amount = req.Amount
	sp.Currency = currency
	sp.LogoURL = req.LogoURL
	if err := s.ledger.repos.Partners.UpdateSponsor(ctx, sp); err != nil {
		return nil, err
	}
	return sp, nil
}

func (s *partnerService) SetSponsorStatus(ctx context.Context, tenantID, id, status string) (*domain.Sponsor, error) {
	sp, err := s.GetSponsor(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := sp.SetStatus(status); err != nil {
		return nil, err
	}
	if err := s.ledger.repos.Partners.UpdateSponsor(ctx, sp); err != nil {
		return nil, err
	}
	return sp, nil
}

func (s *partnerService) CreateVendor(ctx context.Context, tenantID string, req *dto.VendorRequest) (*domain.Vendor, error) {
	currency, err := s.partnerCurrency(ctx, tenantID, req.EventID, req.Currency)
	if err != nil {
		return nil, err
	}
	v, err := domain.NewVendor(tenantID, req.EventID, req.Name, req.ServiceCategory, req.ContractAmount, currency)
	if err != nil {
		return nil, err
	}
	v.ContactName = req.ContactName
	v.ContactEmail = domain.NormalizeEmail(req.ContactEmail)
	if err := s.ledger.repos.Partners.CreateVendor(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *partnerService) GetVendor(ctx context.Context, tenantID, id string) (*domain.Vendor, error) {
	v, err := s.ledger.repos.Partners.GetVendor(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, ErrPartnerNotFound
	}
	return v, nil
}

func (s *partnerService) ListVendors(ctx context.Context, filter *dto.PartnerListFilter) ([]*domain.Vendor, int64, error) {
	filter.Normalize()
	return s.ledger.repos.Partners.ListVendors(ctx, filter)
}

func (s *partnerService) UpdateVendor(ctx context.Context, tenantID, id string, req *dto.VendorRequest) (*domain.Vendor, error) {
	v, err := s.GetVendor(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	currency, err := s.partnerCurrency(ctx, tenantID, req.EventID, req.Currency)
	if err != nil {
		return nil, err
	}
	if req.ContractAmount < 0 {
		return nil, domain.ErrInvalidAmount
	}
	v.EventID = req.EventID
	v.Name = req.Name
	v.ContactName = req.ContactName
	v.ContactEmail = domain.NormalizeEmail(req.ContactEmail)
	v.ServiceCategory = req.ServiceCategory
	v.ContractAmount = req.ContractAmount
	v.Currency = currency
	if err := s.ledger.repos.Partners.UpdateVendor(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *partnerService) SetVendorStatus(ctx context.Context, tenantID, id, status string) (*domain.Vendor, error) {
	v, err := s.GetVendor(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := v.SetStatus(status); err != nil {
		return nil, err
	}
	if err := s.ledger.repos.Partners.UpdateVendor(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *partnerService) CreateExhibitor(ctx context.Context, tenantID string, req *dto.ExhibitorRequest) (*domain.Exhibitor, error) {
	currency, err := s.partnerCurrency(ctx, tenantID, req.EventID, req.Currency)
	if err != nil {
		return nil, err
	}
	ex, err := domain.NewExhibitor(tenantID, req.EventID, req.CompanyName, req.Fee, currency)
	if err != nil {
		return nil, err
	}
	ex.ContactName = req.ContactName
	ex.ContactEmail = domain.NormalizeEmail(req.ContactEmail)
	ex.BoothNumber = req.BoothNumber
	ex.BoothSize = req.BoothSize
	if err := s.ledger.repos.Partners.CreateExhibitor(ctx, ex); err != nil {
		return nil, err
	}
	return ex, nil
}

func (s *partnerService) GetExhibitor(ctx context.Context, tenantID, id string) (*domain.Exhibitor, error) {
	ex, err := s.ledger.repos.Partners.GetExhibitor(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if ex == nil {
		return nil, ErrPartnerNotFound
	}
	return ex, nil
}

func (s *partnerService) ListExhibitors(ctx context.Context, filter *dto.PartnerListFilter) ([]*domain.Exhibitor, int64, error) {
	filter.Normalize()
	return s.ledger.repos.Partners.ListExhibitors(ctx, filter)
}

func (s *partnerService) UpdateExhibitor(ctx context.Context, tenantID, id string, req *dto.ExhibitorRequest) (*domain.Exhibitor, error) {
	ex, err := s.GetExhibitor(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	currency, err := s.partnerCurrency(ctx, tenantID, req.EventID, req.Currency)
	if err != nil {
		return nil, err
	}
	if req.Fee < 0 {
		return nil, domain.ErrInvalidAmount
	}
	ex.EventID = req.EventID
	ex.CompanyName = req.CompanyName
	ex.ContactName = req.ContactName
	ex.ContactEmail = domain.NormalizeEmail(req.ContactEmail)
	ex.BoothNumber = req.BoothNumber
	ex.BoothSize = req.BoothSize
	ex.Fee = req.Fee
	ex.Currency = currency
	if err := s.ledger.repos.Partners.UpdateExhibitor(ctx, ex); err != nil {
		return nil, err
	}
	return ex, nil
}

func (s *partnerService) SetExhibitorStatus(ctx context.Context, tenantID, id, status string) (*domain.Exhibitor, error) {
	ex, err := s.GetExhibitor(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := ex.SetStatus(status); err != nil {
		return nil, err
	}
	if err := s.ledger.repos.Partners.UpdateExhibitor(ctx, ex); err != nil {
		return nil, err
	}
	return ex, nil
}

func (s *partnerService) Delete(ctx context.Context, kind domain.RecipientType, tenantID, id string) error {
	if _, err := s.billingParty(ctx, kind, tenantID, id); err != nil {
		return err
	}
	return s.ledger.repos.Partners.Delete(ctx, kind, tenantID, id)
}

// party is who an invoice is billed to
type party struct {
	eventID  string
	name     string
	email    string
	label    string
	amount   int64
	currency string
}

func (s *partnerService) billingParty(ctx context.Context, kind domain.RecipientType, tenantID, id string) (*party, error) {
	switch kind {
	case domain.RecipientSponsor:
		sp, err := s.GetSponsor(ctx, tenantID, id)
		if err != nil {
			return nil, err
		}
		return &party{sp.EventID, sp.Name, sp.ContactEmail, fmt.Sprintf("%s sponsorship", sp.Tier), sp.Amount, sp.Currency}, nil
	case domain.RecipientVendor:
		v, err := s.GetVendor(ctx, tenantID, id)
		if err != nil {
			return nil, err
		}
		return &party{v.EventID, v.Name, v.ContactEmail, "Vendor contract", v.ContractAmount, v.Currency}, nil
	case domain.RecipientExhibitor:
		ex, err := s.GetExhibitor(ctx, tenantID, id)
		if err != nil {
			return nil, err
		}
		label := "Exhibition booth"
		if ex.BoothNumber != "" {
			label += " " + ex.BoothNumber
		}
		return &party{ex.EventID, ex.CompanyName, ex.ContactEmail, label, ex.Fee, ex.Currency}, nil
	}
	return nil, ErrPartnerNotFound
}

func (s *partnerService) CreateInvoice(ctx context.Context, kind domain.RecipientType, tenantID, id string, req *dto.PartnerInvoiceRequest) (*domain.Invoice, error) {
	p, err := s.billingParty(ctx, kind, tenantID, id)
	if err != nil {
		return nil, err
	}

	items := req.LineItems
	if len(items) == 0 {
		if p.amount <= 0 {
			return nil, ErrNothingToPay
		}
		description := req.Description
		if description == "" {
			description = p.label
		}
		items = []dto.LineItemRequest{{Description: description, Quantity: 1, UnitPrice: p.amount}}
	}

	return s.invoices.Create(ctx, tenantID, &dto.CreateInvoiceRequest{
		EventID:        p.eventID,
		RecipientType:  kind,
		RecipientID:    id,
		BillToName:     p.name,
		BillToEmail:    p.email,
		Currency:       p.currency,
		LineItems:      items,
		TaxStructureID: req.TaxStructureID,
	})
}
