package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/prohmpiriya/eventdesk/internal/domain"
	"github.com/prohmpiriya/eventdesk/pkg/database"
)

const taxStructureColumns = `id, tenant_id, name, components, inclusive, is_default, is_active, created_at, updated_at`

// PostgresTaxStructureRepository implements TaxStructureRepository using PostgreSQL
type PostgresTaxStructureRepository struct {
	db *database.PostgresDB
}

// NewPostgresTaxStructureRepository creates a new PostgresTaxStructureRepository
func NewPostgresTaxStructureRepository(db *database.PostgresDB) *PostgresTaxStructureRepository {
	return &PostgresTaxStructureRepository{db: db}
}

func scanTaxStructure(row pgx.Row) (*domain.TaxStructure, error) {
	ts := &domain.TaxStructure{}
	err := row.Scan(
		&ts.ID,
		&ts.TenantID,
		&ts.Name,
		&ts.Components,
		&ts.Inclusive,
		&ts.IsDefault,
		&ts.IsActive,
		&ts.CreatedAt,
		&ts.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return ts, nil
}

func componentsOrEmpty(c []domain.TaxComponent) []domain.TaxComponent {
	if c == nil {
		return []domain.TaxComponent{}
	}
	return c
}

// Create creates a tax structure. A default structure replaces the previous default.
func (r *PostgresTaxStructureRepository) Create(ctx context.Context, ts *domain.TaxStructure) error {
	return r.db.WithinTx(ctx, func(ctx context.Context) error {
		if ts.IsDefault {
			if err := r.clearDefault(ctx, ts.TenantID); err != nil {
				return err
			}
		}
		_, err := r.db.Conn(ctx).Exec(ctx, `
			INSERT INTO tax_structures (id, tenant_id, name, components, inclusive, is_default, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`,
			ts.ID,
			ts.TenantID,
			ts.Name,
			componentsOrEmpty(ts.Components),
			ts.Inclusive,
			ts.IsDefault,
			ts.IsActive,
			ts.CreatedAt,
			ts.UpdatedAt,
		)
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	})
}

// GetByID retrieves a tenant's tax structure
func (r *PostgresTaxStructureRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.TaxStructure, error) {
	query := `SELECT ` + taxStructureColumns + ` FROM tax_structures WHERE tenant_id = $1 AND id = $2`
	return scanTaxStructure(r.db.Conn(ctx).QueryRow(ctx, query, tenantID, id))
}

// GetDefault retrieves the tenant's active default tax structure
func (r *PostgresTaxStructureRepository) GetDefault(ctx context.Context, tenantID string) (*domain.TaxStructure, error) {
	query := `SELECT ` + taxStructureColumns + ` FROM tax_structures WHERE tenant_id = $1 AND is_default AND is_active`
	return scanTaxStructure(r.db.Conn(ctx).QueryRow(ctx, query, tenantID))
}

// List returns a tenant's tax structures, default first
func (r *PostgresTaxStructureRepository) List(ctx context.Context, tenantID string, activeOnly bool) ([]*domain.TaxStructure, error) {
	query := `SELECT ` + taxStructureColumns + ` FROM tax_structures WHERE tenant_id = $1`
	if activeOnly {
		query += ` AND is_active`
	}
	query += ` ORDER BY is_default DESC, name`

	rows, err := r.db.Conn(ctx).Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*domain.TaxStructure, 0)
	for rows.Next() {
		ts, err := scanTaxStructure(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ts)
	}
	return out, rows.Err()
}

// Update replaces a tax structure's name, components and inclusivity
func (r *PostgresTaxStructureRepository) Update(ctx context.Context, ts *domain.TaxStructure) error {
	ts.UpdatedAt = time.Now()
	result, err := r.db.Conn(ctx).Exec(ctx, `
		UPDATE tax_structures
		SET name = $3, components = $4, inclusive = $5, updated_at = $6
		WHERE tenant_id = $1 AND id = $2
	`, ts.TenantID, ts.ID, ts.Name, componentsOrEmpty(ts.Components), ts.Inclusive, ts.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("tax structure %s: %w", ts.ID, ErrNotUpdated)
	}
	return nil
}

// SetDefault makes id the tenant's only default structure
func (r *PostgresTaxStructureRepository) SetDefault(ctx context.Context, tenantID, id string) error {
	return r.db.WithinTx(ctx, func(ctx context.Context) error {
		if err := r.clearDefault(ctx, tenantID); err != nil {
			return err
		}
		result, err := r.db.Conn(ctx).Exec(ctx, `
			UPDATE tax_structures SET is_default = TRUE, updated_at = NOW()
			WHERE tenant_id = $1 AND id = $2 AND is_active
		`, tenantID, id)
		if err != nil {
			return err
		}
		if result.RowsAffected() == 0 {
			return fmt.Errorf("tax structure %s: %w", id, ErrNotUpdated)
		}
		return nil
	})
}

// Deactivate retires a structure. Issued invoices keep their own breakdown.
func (r *PostgresTaxStructureRepository) Deactivate(ctx context.Context, tenantID, id string) error {
	result, err := r.db.Conn(ctx).Exec(ctx, `
		UPDATE tax_structures SET is_active = FALSE, is_default = FALSE, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2 AND is_active
	`, tenantID, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("tax structure %s: %w", id, ErrNotUpdated)
	}
	return nil
}

func (r *PostgresTaxStructureRepository) clearDefault(ctx context.Context, tenantID string) error {
	_, err := r.db.Conn(ctx).Exec(ctx,
		`UPDATE tax_structures SET is_default = FALSE, updated_at = NOW() WHERE tenant_id = $1 AND is_default`,
		tenantID,
	)
	return err
}
