package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prohmpiriya/eventdesk/internal/domain"
	"github.com/prohmpiriya/eventdesk/internal/dto"
	"github.com/prohmpiriya/eventdesk/internal/repository"
	"github.com/prohmpiriya/eventdesk/pkg/money"
)

// TenantService manages organisations. Finance mode is set at creation and
// afterwards only changes through FinanceModeService.Migrate.
type TenantService interface {
	Create(ctx context.Context, req *dto.CreateTenantRequest) (*dto.TenantResponse, error)
	GetByID(ctx context.Context, id string) (*dto.TenantResponse, error)
	GetBySlug(ctx context.Context, slug string) (*dto.TenantResponse, error)
	List(ctx context.Context, filter *dto.TenantListFilter) ([]*dto.TenantResponse, int, error)
	Update(ctx context.Context, id string, req *dto.UpdateTenantRequest) (*dto.TenantResponse, error)
	Delete(ctx context.Context, id string) error
}

type tenantService struct {
	tenants repository.TenantRepository
	cfg     Config
}

// NewTenantService creates a new TenantService
func NewTenantService(tenants repository.TenantRepository, cfg Config) TenantService {
	return &tenantService{tenants: tenants, cfg: cfg.withDefaults()}
}

func (s *tenantService) Create(ctx context.Context, req *dto.CreateTenantRequest) (*dto.TenantResponse, error) {
	if ok, msg := req.ValidateSlug(); !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidSlug, msg)
	}
	mode, err := domain.ParseFinanceMode(s.cfg.DefaultFinanceMode)
	if err != nil {
		return nil, err
	}
	currency, err := money.NormalizeCurrency(firstNonEmpty(req.DefaultCurrency, s.cfg.DefaultCurrency))
	if err != nil {
		return nil, err
	}
	prefix := strings.ToUpper(req.InvoicePrefix)
	if prefix == "" {
		prefix = domain.DefaultInvoicePrefix(req.Slug)
	}
	settings := req.Settings
	if settings == nil {
		settings = map[string]interface{}{}
	}

	now := time.Now()
	t := &domain.Tenant{
		ID:               uuid.New().String(),
		Name:             req.Name,
		Slug:             req.Slug,
		Domain:           req.Domain,
		LogoURL:          req.LogoURL,
		Settings:         settings,
		IsActive:         true,
		FinanceMode:      mode,
		DefaultCurrency:  currency,
		InvoicePrefix:    prefix,
		LegacyTaxRateBps: req.LegacyTaxRateBps,
		Locale:           req.Locale,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	switch err := s.tenants.Create(ctx, t); {
	case errors.Is(err, repository.ErrDuplicate):
		return nil, ErrTenantAlreadyExists
	case err != nil:
		return nil, err
	}
	return dto.FromTenant(t), nil
}

func (s *tenantService) GetByID(ctx context.Context, id string) (*dto.TenantResponse, error) {
	t, err := loadTenant(ctx, s.tenants, id)
	if err != nil {
		return nil, err
	}
	return dto.FromTenant(t), nil
}

func (s *tenantService) GetBySlug(ctx context.Context, slug string) (*dto.TenantResponse, error) {
	t, err := s.tenants.GetBySlug(ctx, slug)
	switch {
	case err != nil:
		return nil, err
	case t == nil:
		return nil, ErrTenantNotFound
	}
	return dto.FromTenant(t), nil
}

func (s *tenantService) List(ctx context.Context, filter *dto.TenantListFilter) ([]*dto.TenantResponse, int, error) {
	filter.Normalize()
	tenants, total, err := s.tenants.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return dto.FromTenants(tenants), total, nil
}

func (s *tenantService) Update(ctx context.Context, id string, req *dto.UpdateTenantRequest) (*dto.TenantResponse, error) {
	if ok, _ := req.Validate(); !ok {
		return nil, ErrEmptyUpdate
	}
	t, err := loadTenant(ctx, s.tenants, id)
	if err != nil {
		return nil, err
	}
	applyTenantUpdate(t, req)
	t.UpdatedAt = time.Now()

	if err := s.tenants.Update(ctx, t); err != nil {
		return nil, notUpdatedAs(err, ErrTenantNotFound)
	}
	return dto.FromTenant(t), nil
}

// Delete soft-deletes; the slug stays reserved
func (s *tenantService) Delete(ctx context.Context, id string) error {
	return notUpdatedAs(s.tenants.Delete(ctx, id), ErrTenantNotFound)
}

func applyTenantUpdate(t *domain.Tenant, req *dto.UpdateTenantRequest) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&t.Name, req.Name)
	set(&t.Domain, req.Domain)
	set(&t.LogoURL, req.LogoURL)
	set(&t.Locale, req.Locale)
	if req.InvoicePrefix != nil {
		t.InvoicePrefix = strings.ToUpper(*req.InvoicePrefix)
	}
	if req.Settings != nil {
		t.Settings = *req.Settings
	}
	if req.IsActive != nil {
		t.IsActive = *req.IsActive
	}
	if req.LegacyTaxRateBps != nil {
		t.LegacyTaxRateBps = *req.LegacyTaxRateBps
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// notUpdatedAs translates the repository's zero-rows error into a not-found sentinel
func notUpdatedAs(err, notFound error) error {
	if errors.Is(err, repository.ErrNotUpdated) {
		return notFound
	}
	return err
}

func loadTenant(ctx context.Context, repo repository.TenantRepository, id string) (*domain.Tenant, error) {
	if id == "" {
		return nil, ErrTenantNotFound
	}
	t, err := repo.GetByID(ctx, id)
	switch {
	case err != nil:
		return nil, err
	case t == nil:
		return nil, ErrTenantNotFound
	}
	return t, nil
}
