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

const invoiceColumns = `
	id, tenant_id, COALESCE(event_id::text, '') as event_id, COALESCE(number, '') as number,
	recipient_type, recipient_id, bill_to_name, bill_to_email, currency, line_items,
	subtotal, tax_total, total, amount_paid, amount_refunded, amount_disputed, status, finance_mode,
	COALESCE(tax_structure_id::text, '') as tax_structure_id, tax_breakdown, COALESCE(notes, '') as notes,
	due_at, issued_at, paid_at, voided_at, created_at, updated_at`

// PostgresInvoiceRepository implements InvoiceRepository using PostgreSQL
type PostgresInvoiceRepository struct {
	db *database.PostgresDB
}

// NewPostgresInvoiceRepository creates a new PostgresInvoiceRepository
func NewPostgresInvoiceRepository(db *database.PostgresDB) *PostgresInvoiceRepository {
	return &PostgresInvoiceRepository{db: db}
}

func scanInvoice(row pgx.Row) (*domain.Invoice, error) {
	inv := &domain.Invoice{}
	err := row.Scan(
		&inv.ID,
		&inv.TenantID,
		&inv.EventID,
		&inv.Number,
		&inv.RecipientType,
		&inv.RecipientID,
		&inv.BillToName,
		&inv.BillToEmail,
		&inv.Currency,
		&inv.LineItems,
		&inv.Subtotal,
		&inv.TaxTotal,
		&inv.Total,
		&inv.AmountPaid,
		&inv.AmountRefunded,
		&inv.AmountDisputed,
		&inv.Status,
		&inv.FinanceMode,
		&inv.TaxStructureID,
		&inv.TaxBreakdown,
		&inv.Notes,
		&inv.DueAt,
		&inv.IssuedAt,
		&inv.PaidAt,
		&inv.VoidedAt,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return inv, nil
}

// Create creates a new invoice
func (r *PostgresInvoiceRepository) Create(ctx context.Context, inv *domain.Invoice) error {
	query := `
		INSERT INTO invoices (id, tenant_id, event_id, number, recipient_type, recipient_id, bill_to_name, bill_to_email,
		                      currency, line_items, subtotal, tax_total, total, amount_paid, amount_refunded,
		                      amount_disputed, status, finance_mode, tax_structure_id, tax_breakdown, notes,
		                      due_at, issued_at, paid_at, voided_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21,
		        $22, $23, $24, $25, $26, $27)
	`
	_, err := r.db.Conn(ctx).Exec(ctx, query,
		inv.ID,
		inv.TenantID,
		nullStringOrValue(inv.EventID),
		nullStringOrValue(inv.Number),
		inv.RecipientType,
		inv.RecipientID,
		inv.BillToName,
		inv.BillToEmail,
		inv.Currency,
		inv.LineItems,
		inv.Subtotal,
		inv.TaxTotal,
		inv.Total,
		inv.AmountPaid,
		inv.AmountRefunded,
		inv.AmountDisputed,
		inv.Status,
		inv.FinanceMode,
		nullStringOrValue(inv.TaxStructureID),
		inv.TaxBreakdown,
		nullStringOrValue(inv.Notes),
		inv.DueAt,
		inv.IssuedAt,
		inv.PaidAt,
		inv.VoidedAt,
		inv.CreatedAt,
		inv.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// GetByID retrieves a tenant's invoice
func (r *PostgresInvoiceRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE tenant_id = $1 AND id = $2`
	return scanInvoice(r.db.Conn(ctx).QueryRow(ctx, query, tenantID, id))
}

// GetByIDForUpdate retrieves an invoice and locks its row
func (r *PostgresInvoiceRepository) GetByIDForUpdate(ctx context.Context, tenantID, id string) (*domain.Invoice, error) {
	if tenantID == "" {
		query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1 FOR UPDATE`
		return scanInvoice(r.db.Conn(ctx).QueryRow(ctx, query, id))
	}
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE tenant_id = $1 AND id = $2 FOR UPDATE`
	return scanInvoice(r.db.Conn(ctx).QueryRow(ctx, query, tenantID, id))
}

// GetByRecipient returns the latest non-void invoice for a recipient
func (r *PostgresInvoiceRepository) GetByRecipient(ctx context.Context, tenantID string, recipientType domain.RecipientType, recipientID string) (*domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE tenant_id = $1 AND recipient_type = $2 AND recipient_id = $3 AND status <> 'void'
		ORDER BY created_at DESC
		LIMIT 1`
	return scanInvoice(r.db.Conn(ctx).QueryRow(ctx, query, tenantID, recipientType, recipientID))
}

// Update persists every mutable invoice field
func (r *PostgresInvoiceRepository) Update(ctx context.Context, inv *domain.Invoice) error {
	query := `
		UPDATE invoices
		SET number = $3, bill_to_name = $4, bill_to_email = $5, line_items = $6, subtotal = $7, tax_total = $8,
		    total = $9, amount_paid = $10, amount_refunded = $11, amount_disputed = $12, status = $13,
		    tax_structure_id = $14, tax_breakdown = $15, notes = $16, due_at = $17, issued_at = $18,
		    paid_at = $19, voided_at = $20, updated_at = $21
		WHERE tenant_id = $1 AND id = $2
	`
	inv.UpdatedAt = time.Now()
	result, err := r.db.Conn(ctx).Exec(ctx, query,
		inv.TenantID,
		inv.ID,
		nullStringOrValue(inv.Number),
		inv.BillToName,
		inv.BillToEmail,
		inv.LineItems,
		inv.Subtotal,
		inv.TaxTotal,
		inv.Total,
		inv.AmountPaid,
		inv.AmountRefunded,
		inv.AmountDisputed,
		inv.Status,
		nullStringOrValue(inv.TaxStructureID),
		inv.TaxBreakdown,
		nullStringOrValue(inv.Notes),
		inv.DueAt,
		inv.IssuedAt,
		inv.PaidAt,
		inv.VoidedAt,
		inv.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("invoice %s: %w", inv.ID, ErrNotUpdated)
	}
	return nil
}

// List retrieves invoices with pagination and filters
func (r *PostgresInvoiceRepository) List(ctx context.Context, filter *dto.InvoiceListFilter) ([]*domain.Invoice, int, error) {
	filter.Normalize()

	whereClause := "WHERE tenant_id = $1"
	args := []interface{}{filter.TenantID}
	argIndex := 2

	if filter.EventID != "" {
		whereClause += fmt.Sprintf(" AND event_id = $%d", argIndex)
		args = append(args, filter.EventID)
		argIndex++
	}
	if filter.Status != "" {
		whereClause += fmt.Sprintf(" AND status = $%d", argIndex)
		args = append(args, filter.Status)
		argIndex++
	}
	if filter.RecipientType != "" {
		whereClause += fmt.Sprintf(" AND recipient_type = $%d", argIndex)
		args = append(args, filter.RecipientType)
		argIndex++
	}
	if filter.Search != "" {
		whereClause += fmt.Sprintf(" AND (number ILIKE $%d OR bill_to_name ILIKE $%d OR bill_to_email ILIKE $%d)", argIndex, argIndex, argIndex)
		args = append(args, "%"+filter.Search+"%")
		argIndex++
	}

	conn := r.db.Conn(ctx)

	var totalCount int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM invoices %s", whereClause)
	if err := conn.QueryRow(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM invoices
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, invoiceColumns, whereClause, argIndex, argIndex+1)
	args = append(args, filter.Limit, filter.Offset())

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	invoices := make([]*domain.Invoice, 0)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, totalCount, rows.Err()
}

// CountByStatus counts a tenant's invoices in one status
func (r *PostgresInvoiceRepository) CountByStatus(ctx context.Context, tenantID string, status domain.InvoiceStatus) (int64, error) {
	var n int64
	err := r.db.Conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM invoices WHERE tenant_id = $1 AND status = $2`,
		tenantID, status,
	).Scan(&n)
	return n, err
}

// Summary aggregates amounts and counts across a tenant's invoices
func (r *PostgresInvoiceRepository) Summary(ctx context.Context, tenantID string) (*dto.InvoiceSummary, error) {
	rows, err := r.db.Conn(ctx).Query(ctx, `
		SELECT status, COUNT(*),
		       COALESCE(SUM(amount_paid), 0),
		       COALESCE(SUM(CASE WHEN status IN ('issued', 'partially_paid') THEN total - amount_paid ELSE 0 END), 0),
		       COALESCE(SUM(amount_refunded), 0),
		       COALESCE(SUM(amount_disputed), 0)
		FROM invoices
		WHERE tenant_id = $1
		GROUP BY status
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summary := &dto.InvoiceSummary{CountsByStatus: make(map[domain.InvoiceStatus]int64)}
	for rows.Next() {
		var (
			status                                       domain.InvoiceStatus
			count, paid, outstanding, refunded, disputed int64
		)
		if err := rows.Scan(&status, &count, &paid, &outstanding, &refunded, &disputed); err != nil {
			return nil, err
		}
		summary.CountsByStatus[status] = count
		summary.Collected += paid
		summary.Outstanding += outstanding
		summary.Refunded += refunded
		summary.Disputed += disputed
	}
	return summary, rows.Err()
}

// NextLegacyNumber draws from the global legacy invoice sequence
func (r *PostgresInvoiceRepository) NextLegacyNumber(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.Conn(ctx).QueryRow(ctx, `SELECT nextval('legacy_invoice_seq')`).Scan(&n)
	return n, err
}

// NextTenantSequence increments the tenant's counter for year. The upsert takes a
// row lock, so concurrent issuers get distinct, gapless values inside their transactions.
func (r *PostgresInvoiceRepository) NextTenantSequence(ctx context.Context, tenantID string, year int) (int64, error) {
	var n int64
	err := r.db.Conn(ctx).QueryRow(ctx, `
		INSERT INTO invoice_sequences (tenant_id, year, last_value)
		VALUES ($1, $2, 1)
		ON CONFLICT (tenant_id, year) DO UPDATE SET last_value = invoice_sequences.last_value + 1
		RETURNING last_value
	`, tenantID, year).Scan(&n)
	return n, err
}
