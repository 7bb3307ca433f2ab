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

const paymentColumns = `
	id, tenant_id, COALESCE(invoice_id::text, '') as invoice_id, COALESCE(registration_id::text, '') as registration_id,
	gateway, gateway_payment_id, COALESCE(gateway_order_id, '') as gateway_order_id, amount, currency, status,
	amount_refunded, COALESCE(method, '') as method, COALESCE(failure_code, '') as failure_code,
	COALESCE(failure_message, '') as failure_message, processed_at, created_at, updated_at`

const refundColumns = `
	id, tenant_id, payment_id, COALESCE(invoice_id::text, '') as invoice_id, gateway_refund_id, amount, currency,
	status, COALESCE(reason, '') as reason, created_at`

const disputeColumns = `
	id, tenant_id, payment_id, gateway_dispute_id, amount, currency, COALESCE(reason, '') as reason,
	status, opened_at, closed_at`

// PostgresPaymentRepository implements PaymentRepository using PostgreSQL
type PostgresPaymentRepository struct {
	db *database.PostgresDB
}

// NewPostgresPaymentRepository creates a new PostgresPaymentRepository
func NewPostgresPaymentRepository(db *database.PostgresDB) *PostgresPaymentRepository {
	return &PostgresPaymentRepository{db: db}
}

func scanPayment(row pgx.Row) (*domain.PaymentRecord, error) {
	p := &domain.PaymentRecord{}
	err := row.Scan(
		&p.ID,
		&p.TenantID,
		&p.InvoiceID,
		&p.RegistrationID,
		&p.Gateway,
		&p.GatewayPaymentID,
		&p.GatewayOrderID,
		&p.Amount,
		&p.Currency,
		&p.Status,
		&p.AmountRefunded,
		&p.Method,
		&p.FailureCode,
		&p.FailureMessage,
		&p.ProcessedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

const insertPayment = `
	INSERT INTO payment_records (id, tenant_id, invoice_id, registration_id, gateway, gateway_payment_id,
	                             gateway_order_id, amount, currency, status, amount_refunded, method,
	                             failure_code, failure_message, processed_at, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

func paymentArgs(p *domain.PaymentRecord) []any {
	return []any{
		p.ID,
		p.TenantID,
		nullStringOrValue(p.InvoiceID),
		nullStringOrValue(p.RegistrationID),
		p.Gateway,
		p.GatewayPaymentID,
		nullStringOrValue(p.GatewayOrderID),
		p.Amount,
		p.Currency,
		p.Status,
		p.AmountRefunded,
		nullStringOrValue(p.Method),
		nullStringOrValue(p.FailureCode),
		nullStringOrValue(p.FailureMessage),
		p.ProcessedAt,
		p.CreatedAt,
		p.UpdatedAt,
	}
}

// UpsertByGatewayID inserts the record unless the gateway ID is already known,
// then returns the stored row locked for the current transaction
func (r *PostgresPaymentRepository) UpsertByGatewayID(ctx context.Context, p *domain.PaymentRecord) (*domain.PaymentRecord, bool, error) {
	conn := r.db.Conn(ctx)
	result, err := conn.Exec(ctx, insertPayment+` ON CONFLICT (gateway, gateway_payment_id) DO NOTHING`, paymentArgs(p)...)
	if err != nil {
		return nil, false, err
	}
	created := result.RowsAffected() == 1

	stored, err := r.getByGatewayID(ctx, p.Gateway, p.GatewayPaymentID, true)
	if err != nil {
		return nil, false, err
	}
	if stored == nil {
		return nil, false, fmt.Errorf("payment %s/%s vanished after upsert", p.Gateway, p.GatewayPaymentID)
	}
	return stored, created, nil
}

// Create creates a new payment record
func (r *PostgresPaymentRepository) Create(ctx context.Context, p *domain.PaymentRecord) error {
	_, err := r.db.Conn(ctx).Exec(ctx, insertPayment, paymentArgs(p)...)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// GetByID retrieves a payment record by ID
func (r *PostgresPaymentRepository) GetByID(ctx context.Context, id string) (*domain.PaymentRecord, error) {
	query := `SELECT ` + paymentColumns + ` FROM payment_records WHERE id = $1`
	return scanPayment(r.db.Conn(ctx).QueryRow(ctx, query, id))
}

// GetByGatewayID retrieves a payment by its gateway identifier and locks the row
func (r *PostgresPaymentRepository) GetByGatewayID(ctx context.Context, gateway domain.Gateway, gatewayPaymentID string) (*domain.PaymentRecord, error) {
	return r.getByGatewayID(ctx, gateway, gatewayPaymentID, true)
}

func (r *PostgresPaymentRepository) getByGatewayID(ctx context.Context, gateway domain.Gateway, gatewayPaymentID string, lock bool) (*domain.PaymentRecord, error) {
	query := `SELECT ` + paymentColumns + ` FROM payment_records WHERE gateway = $1 AND gateway_payment_id = $2`
	if lock && database.InTx(ctx) {
		query += ` FOR UPDATE`
	}
	return scanPayment(r.db.Conn(ctx).QueryRow(ctx, query, gateway, gatewayPaymentID))
}

// GetByGatewayOrderID retrieves the latest payment created for a gateway order
func (r *PostgresPaymentRepository) GetByGatewayOrderID(ctx context.Context, gateway domain.Gateway, orderID string) (*domain.PaymentRecord, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payment_records
		WHERE gateway = $1 AND gateway_order_id = $2
		ORDER BY created_at DESC
		LIMIT 1`
	if database.InTx(ctx) {
		query += ` FOR UPDATE`
	}
	return scanPayment(r.db.Conn(ctx).QueryRow(ctx, query, gateway, orderID))
}

// Update persists status, amounts and links of a payment record
func (r *PostgresPaymentRepository) Update(ctx context.Context, p *domain.PaymentRecord) error {
	query := `
		UPDATE payment_records
		SET invoice_id = $2, registration_id = $3, gateway_order_id = $4, status = $5, amount_refunded = $6,
		    method = $7, failure_code = $8, failure_message = $9, processed_at = $10, updated_at = $11,
		    gateway_payment_id = $12
		WHERE id = $1
	`
	p.UpdatedAt = time.Now()
	result, err := r.db.Conn(ctx).Exec(ctx, query,
		p.ID,
		nullStringOrValue(p.InvoiceID),
		nullStringOrValue(p.RegistrationID),
		nullStringOrValue(p.GatewayOrderID),
		p.Status,
		p.AmountRefunded,
		nullStringOrValue(p.Method),
		nullStringOrValue(p.FailureCode),
		nullStringOrValue(p.FailureMessage),
		p.ProcessedAt,
		p.UpdatedAt,
		p.GatewayPaymentID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("payment %s: %w", p.GatewayPaymentID, ErrDuplicate)
		}
		return err
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("payment %s: %w", p.ID, ErrNotUpdated)
	}
	return nil
}

// List retrieves payment records with pagination and filters
func (r *PostgresPaymentRepository) List(ctx context.Context, filter *dto.PaymentListFilter) ([]*domain.PaymentRecord, int, error) {
	filter.Normalize()

	whereClause := "WHERE tenant_id = $1"
	args := []interface{}{filter.TenantID}
	argIndex := 2

	if filter.InvoiceID != "" {
		whereClause += fmt.Sprintf(" AND invoice_id = $%d", argIndex)
		args = append(args, filter.InvoiceID)
		argIndex++
	}
	if filter.Gateway != "" {
		whereClause += fmt.Sprintf(" AND gateway = $%d", argIndex)
		args = append(args, filter.Gateway)
		argIndex++
	}
	if filter.Status != "" {
		whereClause += fmt.Sprintf(" AND status = $%d", argIndex)
		args = append(args, filter.Status)
		argIndex++
	}

	conn := r.db.Conn(ctx)

	var totalCount int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM payment_records %s", whereClause)
	if err := conn.QueryRow(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM payment_records
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, paymentColumns, whereClause, argIndex, argIndex+1)
	args = append(args, filter.Limit, filter.Offset())

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	payments := make([]*domain.PaymentRecord, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, 0, err
		}
		payments = append(payments, p)
	}
	return payments, totalCount, rows.Err()
}

// CountByStatus counts a tenant's payments in one status
func (r *PostgresPaymentRepository) CountByStatus(ctx context.Context, tenantID string, status domain.PaymentStatus) (int64, error) {
	var n int64
	err := r.db.Conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM payment_records WHERE tenant_id = $1 AND status = $2`,
		tenantID, status,
	).Scan(&n)
	return n, err
}

// HasLivePayment reports whether a non-failed payment exists for the registration or its invoice
func (r *PostgresPaymentRepository) HasLivePayment(ctx context.Context, registrationID, invoiceID string) (bool, error) {
	var exists bool
	err := r.db.Conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM payment_records
			WHERE (registration_id = $1 OR ($2 <> '' AND invoice_id::text = $2))
			AND status <> 'failed'
		)`, registrationID, invoiceID,
	).Scan(&exists)
	return exists, err
}

// CreateRefund records a refund once per gateway refund ID
func (r *PostgresPaymentRepository) CreateRefund(ctx context.Context, ref *domain.Refund) (bool, error) {
	result, err := r.db.Conn(ctx).Exec(ctx, `
		INSERT INTO refunds (id, tenant_id, payment_id, invoice_id, gateway_refund_id, amount, currency, status, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (gateway_refund_id) DO NOTHING
	`,
		ref.ID,
		ref.TenantID,
		ref.PaymentID,
		nullStringOrValue(ref.InvoiceID),
		ref.GatewayRefundID,
		ref.Amount,
		ref.Currency,
		ref.Status,
		nullStringOrValue(ref.Reason),
		ref.CreatedAt,
	)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() == 1, nil
}

// ListRefunds returns a payment's refunds, oldest first
func (r *PostgresPaymentRepository) ListRefunds(ctx context.Context, paymentID string) ([]*domain.Refund, error) {
	rows, err := r.db.Conn(ctx).Query(ctx,
		`SELECT `+refundColumns+` FROM refunds WHERE payment_id = $1 ORDER BY created_at`,
		paymentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	refunds := make([]*domain.Refund, 0)
	for rows.Next() {
		ref := &domain.Refund{}
		if err := rows.Scan(
			&ref.ID, &ref.TenantID, &ref.PaymentID, &ref.InvoiceID, &ref.GatewayRefundID,
			&ref.Amount, &ref.Currency, &ref.Status, &ref.Reason, &ref.CreatedAt,
		); err != nil {
			return nil, err
		}
		refunds = append(refunds, ref)
	}
	return refunds, rows.Err()
}

// CreateDispute records a dispute once per gateway dispute ID
func (r *PostgresPaymentRepository) CreateDispute(ctx context.Context, d *domain.Dispute) (bool, error) {
	result, err := r.db.Conn(ctx).Exec(ctx, `
		INSERT INTO disputes (id, tenant_id, payment_id, gateway_dispute_id, amount, currency, reason, status, opened_at, closed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (gateway_dispute_id) DO NOTHING
	`,
		d.ID,
		d.TenantID,
		d.PaymentID,
		d.GatewayDisputeID,
		d.Amount,
		d.Currency,
		nullStringOrValue(d.Reason),
		d.Status,
		d.OpenedAt,
		d.ClosedAt,
	)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() == 1, nil
}

// GetDisputeByGatewayID retrieves a dispute and locks it when called inside a transaction
func (r *PostgresPaymentRepository) GetDisputeByGatewayID(ctx context.Context, gatewayDisputeID string) (*domain.Dispute, error) {
	query := `SELECT ` + disputeColumns + ` FROM disputes WHERE gateway_dispute_id = $1`
	if database.InTx(ctx) {
		query += ` FOR UPDATE`
	}
	d := &domain.Dispute{}
	err := r.db.Conn(ctx).QueryRow(ctx, query, gatewayDisputeID).Scan(
		&d.ID, &d.TenantID, &d.PaymentID, &d.GatewayDisputeID, &d.Amount, &d.Currency,
		&d.Reason, &d.Status, &d.OpenedAt, &d.ClosedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return d, nil
}

// UpdateDispute persists a dispute outcome
func (r *PostgresPaymentRepository) UpdateDispute(ctx context.Context, d *domain.Dispute) error {
	result, err := r.db.Conn(ctx).Exec(ctx,
		`UPDATE disputes SET amount = $2, status = $3, closed_at = $4 WHERE id = $1`,
		d.ID, d.Amount, d.Status, d.ClosedAt,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("dispute %s: %w", d.ID, ErrNotUpdated)
	}
	return nil
}
