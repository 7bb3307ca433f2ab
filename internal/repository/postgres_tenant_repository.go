package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/prohmpiriya/eventdesk/internal/domain"
	"github.com/prohmpiriya/eventdesk/internal/dto"
	"github.com/prohmpiriya/eventdesk/pkg/database"
)

const tenantColumns = `
	id, name, slug, COALESCE(domain, '') as domain, COALESCE(logo_url, '') as logo_url,
	COALESCE(settings, '{}'::jsonb) as settings, is_active, finance_mode, finance_mode_changed_at,
	default_currency, invoice_prefix, legacy_tax_rate_bps, COALESCE(locale, '') as locale,
	created_at, updated_at, deleted_at`

// PostgresTenantRepository implements TenantRepository using PostgreSQL
type PostgresTenantRepository struct {
	db *database.PostgresDB
}

// NewPostgresTenantRepository creates a new PostgresTenantRepository
func NewPostgresTenantRepository(db *database.PostgresDB) *PostgresTenantRepository {
	return &PostgresTenantRepository{db: db}
}

func scanTenant(row pgx.Row) (*domain.Tenant, error) {
	tenant := &domain.Tenant{}
	err := row.Scan(
		&tenant.ID,
		&tenant.Name,
		&tenant.Slug,
		&tenant.Domain,
		&tenant.LogoURL,
		&tenant.Settings,
		&tenant.IsActive,
		&tenant.FinanceMode,
		&tenant.FinanceModeChangedAt,
		&tenant.DefaultCurrency,
		&tenant.InvoicePrefix,
		&tenant.LegacyTaxRateBps,
		&tenant.Locale,
		&tenant.CreatedAt,
		&tenant.UpdatedAt,
		&tenant.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return tenant, nil
}

// Create creates a new tenant
func (r *PostgresTenantRepository) Create(ctx context.Context, tenant *domain.Tenant) error {
	query := `
		INSERT INTO tenants (id, name, slug, domain, logo_url, settings, is_active, finance_mode,
		                     default_currency, invoice_prefix, legacy_tax_rate_bps, locale, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := r.db.Conn(ctx).Exec(ctx, query,
		tenant.ID,
		tenant.Name,
		tenant.Slug,
		nullStringOrValue(tenant.Domain),
		nullStringOrValue(tenant.LogoURL),
		tenant.Settings,
		tenant.IsActive,
		tenant.FinanceMode,
		tenant.DefaultCurrency,
		tenant.InvoicePrefix,
		tenant.LegacyTaxRateBps,
		nullStringOrValue(tenant.Locale),
		tenant.CreatedAt,
		tenant.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// GetByID retrieves a tenant by ID
func (r *PostgresTenantRepository) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE id = $1 AND deleted_at IS NULL`
	return scanTenant(r.db.Conn(ctx).QueryRow(ctx, query, id))
}

// GetByIDForUpdate retrieves a tenant and locks its row until the transaction ends
func (r *PostgresTenantRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`
	return scanTenant(r.db.Conn(ctx).QueryRow(ctx, query, id))
}

// GetBySlug retrieves a tenant by slug
func (r *PostgresTenantRepository) GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE slug = $1 AND deleted_at IS NULL`
	return scanTenant(r.db.Conn(ctx).QueryRow(ctx, query, slug))
}

// List retrieves tenants with pagination and filters
func (r *PostgresTenantRepository) List(ctx context.Context, filter *dto.TenantListFilter) ([]*domain.Tenant, int, error) {
	filter.Normalize()

	whereClause := "WHERE deleted_at IS NULL"
	args := []interface{}{}
	argIndex := 1

	if filter.IsActive != nil {
		whereClause += fmt.Sprintf(" AND is_active = $%d", argIndex)
		args = append(args, *filter.IsActive)
		argIndex++
	}

	if filter.Search != "" {
		whereClause += fmt.Sprintf(" AND (name ILIKE $%d OR slug ILIKE $%d)", argIndex, argIndex)
		args = append(args, "%"+filter.Search+"%")
		argIndex++
	}

	conn := r.db.Conn(ctx)

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM tenants %s", whereClause)
	var totalCount int
	if err := conn.QueryRow(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM tenants
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, tenantColumns, whereClause, argIndex, argIndex+1)
	args = append(args, filter.Limit, filter.Offset())

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	tenants := make([]*domain.Tenant, 0)
	for rows.Next() {
		tenant, err := scanTenant(rows)
		if err != nil {
			return nil, 0, err
		}
		tenants = append(tenants, tenant)
	}
	return tenants, totalCount, rows.Err()
}

// Update updates a tenant's profile. Finance mode is changed only through UpdateFinanceMode.
func (r *PostgresTenantRepository) Update(ctx context.Context, tenant *domain.Tenant) error {
	query := `
		UPDATE tenants
		SET name = $2, domain = $3, logo_url = $4, settings = $5, is_active = $6,
		    default_currency = $7, invoice_prefix = $8, legacy_tax_rate_bps = $9, locale = $10, updated_at = $11
		WHERE id = $1 AND deleted_at IS NULL
	`
	tenant.UpdatedAt = time.Now()
	result, err := r.db.Conn(ctx).Exec(ctx, query,
		tenant.ID,
		tenant.Name,
		nullStringOrValue(tenant.Domain),
		nullStringOrValue(tenant.LogoURL),
		tenant.Settings,
		tenant.IsActive,
		tenant.DefaultCurrency,
		tenant.InvoicePrefix,
		tenant.LegacyTaxRateBps,
		nullStringOrValue(tenant.Locale),
		tenant.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("tenant not found or already deleted: %w", ErrNotUpdated)
	}
	return nil
}

// Delete soft deletes a tenant by setting deleted_at timestamp
func (r *PostgresTenantRepository) Delete(ctx context.Context, id string) error {
	query := `
		UPDATE tenants
		SET deleted_at = $2, is_active = FALSE
		WHERE id = $1 AND deleted_at IS NULL
	`
	result, err := r.db.Conn(ctx).Exec(ctx, query, id, time.Now())
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("tenant not found or already deleted: %w", ErrNotUpdated)
	}
	return nil
}

// UpdateFinanceMode persists a finance mode switch. The WHERE clause keeps the
// change one-way even if two migrations race.
func (r *PostgresTenantRepository) UpdateFinanceMode(ctx context.Context, tenant *domain.Tenant) error {
	query := `
		UPDATE tenants
		SET finance_mode = $2, finance_mode_changed_at = $3, updated_at = $4
		WHERE id = $1 AND deleted_at IS NULL AND finance_mode <> 'tenant'
	`
	result, err := r.db.Conn(ctx).Exec(ctx, query,
		tenant.ID,
		tenant.FinanceMode,
		tenant.FinanceModeChangedAt,
		tenant.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("tenant finance mode not updated: %w", ErrNotUpdated)
	}
	return nil
}

// CreateFinanceModeMigration appends a row to the finance mode history
func (r *PostgresTenantRepository) CreateFinanceModeMigration(ctx context.Context, m *domain.FinanceModeMigration) error {
	query := `
		INSERT INTO finance_mode_migrations (id, tenant_id, from_mode, to_mode, actor_id, checks, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	checks := m.Checks
	if checks == nil {
		checks = []string{}
	}
	_, err := r.db.Conn(ctx).Exec(ctx, query,
		m.ID,
		m.TenantID,
		m.FromMode,
		m.ToMode,
		nullStringOrValue(m.ActorID),
		checks,
		m.CreatedAt,
	)
	return err
}

// ListFinanceModeMigrations returns a tenant's mode changes, newest first
func (r *PostgresTenantRepository) ListFinanceModeMigrations(ctx context.Context, tenantID string) ([]*domain.FinanceModeMigration, error) {
	query := `
		SELECT id, tenant_id, from_mode, to_mode, COALESCE(actor_id, ''), checks, created_at
		FROM finance_mode_migrations
		WHERE tenant_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.Conn(ctx).Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*domain.FinanceModeMigration, 0)
	for rows.Next() {
		m := &domain.FinanceModeMigration{}
		if err := rows.Scan(&m.ID, &m.TenantID, &m.FromMode, &m.ToMode, &m.ActorID, &m.Checks, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
