package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/prohmpiriya/eventdesk/internal/domain"
	"github.com/prohmpiriya/eventdesk/internal/dto"
	"github.com/prohmpiriya/eventdesk/pkg/logger"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// TaxService defines the interface for tenant tax structures
type TaxService interface {
	Create(ctx context.Context, tenantID string, req *dto.TaxStructureRequest) (*domain.TaxStructure, error)
	GetByID(ctx context.Context, tenantID, id string) (*domain.TaxStructure, error)
	List(ctx context.Context, tenantID string, activeOnly bool) ([]*domain.TaxStructure, error)
	// Update replaces a structure's components. Issued invoices keep their computed breakdown.
	Update(ctx context.Context, tenantID, id string, req *dto.TaxStructureRequest) (*domain.TaxStructure, error)
	SetDefault(ctx context.Context, tenantID, id string) (*domain.TaxStructure, error)
	// Deactivate retires a structure. The default of a tenant-mode tenant cannot be retired.
	Deactivate(ctx context.Context, tenantID, id string) error
	// Preview computes tax for an amount without storing anything
	Preview(ctx context.Context, tenantID string, req *dto.TaxPreviewRequest) (*domain.TaxBreakdown, error)
	// Seed creates the structures in a seed file, skipping names the tenant already has
	Seed(ctx context.Context, file *dto.TaxSeedFile) (int, error)
}

type taxService struct {
	ledger *ledger
	tx     TxManager
}

// NewTaxService creates a new TaxService
func NewTaxService(repos Repositories, tx TxManager, cfg Config) TaxService {
	return &taxService{ledger: newLedger(repos, cfg), tx: tx}
}

// LoadTaxSeed decodes a YAML tax seed document
func LoadTaxSeed(r io.Reader) (*dto.TaxSeedFile, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var file dto.TaxSeedFile
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode tax seed: %w", err)
	}
	if file.TenantSlug == "" {
		return nil, fmt.Errorf("decode tax seed: tenant is required")
	}
	return &file, nil
}

func (s *taxService) Create(ctx context.Context, tenantID string, req *dto.TaxStructureRequest) (*domain.TaxStructure, error) {
	ts, err := domain.NewTaxStructure(tenantID, req.Name, req.Components, req.Inclusive)
	if err != nil {
		return nil, err
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.ledger.repos.Taxes.Create(ctx, ts); err != nil {
			return err
		}
		if !req.IsDefault {
			return nil
		}
		ts.IsDefault = true
		return s.ledger.repos.Taxes.SetDefault(ctx, tenantID, ts.ID)
	})
	if err != nil {
		return nil, err
	}
	return ts, nil
}

func (s *taxService) GetByID(ctx context.Context, tenantID, id string) (*domain.TaxStructure, error) {
	ts, err := s.ledger.repos.Taxes.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if ts == nil {
		return nil, ErrTaxStructureNotFound
	}
	return ts, nil
}

func (s *taxService) List(ctx context.Context, tenantID string, activeOnly bool) ([]*domain.TaxStructure, error) {
	return s.ledger.repos.Taxes.List(ctx, tenantID, activeOnly)
}

func (s *taxService) Update(ctx context.Context, tenantID, id string, req *dto.TaxStructureRequest) (*domain.TaxStructure, error) {
	if err := domain.ValidateTaxComponents(req.Components); err != nil {
		return nil, err
	}
	ts, err := s.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	ts.Name = req.Name
	ts.Components = req.Components
	ts.Inclusive = req.Inclusive

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.ledger.repos.Taxes.Update(ctx, ts); err != nil {
			return err
		}
		if req.IsDefault && !ts.IsDefault {
			ts.IsDefault = true
			return s.ledger.repos.Taxes.SetDefault(ctx, tenantID, ts.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ts, nil
}

func (s *taxService) SetDefault(ctx context.Context, tenantID, id string) (*domain.TaxStructure, error) {
	ts, err := s.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if !ts.IsActive {
		return nil, ErrTaxStructureNotFound
	}
	if err := s.ledger.repos.Taxes.SetDefault(ctx, tenantID, id); err != nil {
		return nil, err
	}
	ts.IsDefault = true
	return ts, nil
}

func (s *taxService) Deactivate(ctx context.Context, tenantID, id string) error {
	ts, err := s.GetByID(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if ts.IsDefault {
		tenant, err := loadTenant(ctx, s.ledger.repos.Tenants, tenantID)
		if err != nil {
			return err
		}
		if tenant.FinanceMode == domain.FinanceModeTenant {
			return ErrNoDefaultTaxStructure
		}
	}
	return s.ledger.repos.Taxes.Deactivate(ctx, tenantID, id)
}

func (s *taxService) Preview(ctx context.Context, tenantID string, req *dto.TaxPreviewRequest) (*domain.TaxBreakdown, error) {
	if req.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	var ts *domain.TaxStructure
	switch {
	case req.TaxStructureID != "":
		var err error
		if ts, err = s.GetByID(ctx, tenantID, req.TaxStructureID); err != nil {
			return nil, err
		}
	case len(req.Components) > 0:
		var err error
		if ts, err = domain.NewTaxStructure(tenantID, "preview", req.Components, req.Inclusive); err != nil {
			return nil, err
		}
	default:
		tenant, err := loadTenant(ctx, s.ledger.repos.Tenants, tenantID)
		if err != nil {
			return nil, err
		}
		if ts, err = s.ledger.taxFor(ctx, tenant, tenant.FinanceMode, ""); err != nil {
			return nil, err
		}
	}

	breakdown := ts.Compute(req.Amount)
	return &breakdown, nil
}

func (s *taxService) Seed(ctx context.Context, file *dto.TaxSeedFile) (int, error) {
	tenant, err := s.ledger.repos.Tenants.GetBySlug(ctx, file.TenantSlug)
	if err != nil {
		return 0, err
	}
	if tenant == nil {
		return 0, fmt.Errorf("%w: %s", ErrTenantNotFound, file.TenantSlug)
	}

	existing, err := s.List(ctx, tenant.ID, false)
	if err != nil {
		return 0, err
	}
	have := make(map[string]bool, len(existing))
	for _, ts := range existing {
		have[strings.ToLower(ts.Name)] = true
	}

	created := 0
	for i := range file.Structures {
		req := &file.Structures[i]
		if have[strings.ToLower(req.Name)] {
			logger.Info("tax structure exists, skipping",
				zap.String("tenant", tenant.Slug),
				zap.String("name", req.Name),
			)
			continue
		}
		if _, err := s.Create(ctx, tenant.ID, req); err != nil {
			return created, fmt.Errorf("seed %q: %w", req.Name, err)
		}
		have[strings.ToLower(req.Name)] = true
		created++
	}
	return created, nil
}
