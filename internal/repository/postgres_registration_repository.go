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

const registrationColumns = `
	id, tenant_id, event_id, attendee_name, email, COALESCE(phone, '') as phone, quantity, amount, currency,
	status, payment_status, COALESCE(invoice_id::text, '') as invoice_id,
	COALESCE(floor_plan_id::text, '') as floor_plan_id, seat_ids::text[], confirmed_at, cancelled_at,
	created_at, updated_at`

// PostgresRegistrationRepository implements RegistrationRepository using PostgreSQL
type PostgresRegistrationRepository struct {
	db *database.PostgresDB
}

// NewPostgresRegistrationRepository creates a new PostgresRegistrationRepository
func NewPostgresRegistrationRepository(db *database.PostgresDB) *PostgresRegistrationRepository {
	return &PostgresRegistrationRepository{db: db}
}

func scanRegistration(row pgx.Row) (*domain.Registration, error) {
	reg := &domain.Registration{}
	err := row.Scan(
		&reg.ID,
		&reg.TenantID,
		&reg.EventID,
		&reg.AttendeeName,
		&reg.Email,
		&reg.Phone,
		&reg.Quantity,
		&reg.Amount,
		&reg.Currency,
		&reg.Status,
		&reg.PaymentStatus,
		&reg.InvoiceID,
		&reg.FloorPlanID,
		&reg.SeatIDs,
		&reg.ConfirmedAt,
		&reg.CancelledAt,
		&reg.CreatedAt,
		&reg.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return reg, nil
}

func seatIDsOrEmpty(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

// Create creates a new registration
func (r *PostgresRegistrationRepository) Create(ctx context.Context, reg *domain.Registration) error {
	query := `
		INSERT INTO registrations (id, tenant_id, event_id, attendee_name, email, phone, quantity, amount, currency,
		                           status, payment_status, invoice_id, floor_plan_id, seat_ids, confirmed_at,
		                           created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14::uuid[], $15, $16, $17)
	`
	_, err := r.db.Conn(ctx).Exec(ctx, query,
		reg.ID,
		reg.TenantID,
		reg.EventID,
		reg.AttendeeName,
		reg.Email,
		nullStringOrValue(reg.Phone),
		reg.Quantity,
		reg.Amount,
		reg.Currency,
		reg.Status,
		reg.PaymentStatus,
		nullStringOrValue(reg.InvoiceID),
		nullStringOrValue(reg.FloorPlanID),
		seatIDsOrEmpty(reg.SeatIDs),
		reg.ConfirmedAt,
		reg.CreatedAt,
		reg.UpdatedAt,
	)
	return err
}

// GetByID retrieves a registration by ID
func (r *PostgresRegistrationRepository) GetByID(ctx context.Context, id string) (*domain.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE id = $1`
	return scanRegistration(r.db.Conn(ctx).QueryRow(ctx, query, id))
}

// GetByIDForUpdate retrieves a registration and locks its row
func (r *PostgresRegistrationRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE id = $1 FOR UPDATE`
	return scanRegistration(r.db.Conn(ctx).QueryRow(ctx, query, id))
}

// Update persists status, payment and seat changes
func (r *PostgresRegistrationRepository) Update(ctx context.Context, reg *domain.Registration) error {
	query := `
		UPDATE registrations
		SET status = $2, payment_status = $3, invoice_id = $4, floor_plan_id = $5, seat_ids = $6::uuid[],
		    confirmed_at = $7, cancelled_at = $8, updated_at = $9
		WHERE id = $1
	`
	reg.UpdatedAt = time.Now()
	result, err := r.db.Conn(ctx).Exec(ctx, query,
		reg.ID,
		reg.Status,
		reg.PaymentStatus,
		nullStringOrValue(reg.InvoiceID),
		nullStringOrValue(reg.FloorPlanID),
		seatIDsOrEmpty(reg.SeatIDs),
		reg.ConfirmedAt,
		reg.CancelledAt,
		reg.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("registration %s: %w", reg.ID, ErrNotUpdated)
	}
	return nil
}

// List retrieves registrations with pagination and filters
func (r *PostgresRegistrationRepository) List(ctx context.Context, filter *dto.RegistrationListFilter) ([]*domain.Registration, int, error) {
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
	if filter.Search != "" {
		whereClause += fmt.Sprintf(" AND (attendee_name ILIKE $%d OR email ILIKE $%d)", argIndex, argIndex)
		args = append(args, "%"+filter.Search+"%")
		argIndex++
	}

	conn := r.db.Conn(ctx)

	var totalCount int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM registrations %s", whereClause)
	if err := conn.QueryRow(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM registrations
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, registrationColumns, whereClause, argIndex, argIndex+1)
	args = append(args, filter.Limit, filter.Offset())

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	regs := make([]*domain.Registration, 0)
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, 0, err
		}
		regs = append(regs, reg)
	}
	return regs, totalCount, rows.Err()
}

// CountSince counts a tenant's registrations created at or after since
func (r *PostgresRegistrationRepository) CountSince(ctx context.Context, tenantID string, since time.Time) (int64, error) {
	var n int64
	err := r.db.Conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM registrations WHERE tenant_id = $1 AND created_at >= $2`,
		tenantID, since,
	).Scan(&n)
	return n, err
}

// SumQuantity returns the tickets held by live registrations of an event
func (r *PostgresRegistrationRepository) SumQuantity(ctx context.Context, eventID string) (int64, error) {
	var n int64
	err := r.db.Conn(ctx).QueryRow(ctx,
		`SELECT COALESCE(SUM(quantity), 0) FROM registrations WHERE event_id = $1 AND status IN ('pending', 'confirmed')`,
		eventID,
	).Scan(&n)
	return n, err
}

// ListStalePending returns unpaid pending registrations created before cutoff
// that have no live payment against them or their invoice, oldest first
func (r *PostgresRegistrationRepository) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Registration, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM registrations r
		WHERE r.status = 'pending' AND r.payment_status = 'unpaid' AND r.created_at < $1
		AND NOT EXISTS (
			SELECT 1 FROM payment_records p
			WHERE (p.registration_id = r.id OR (r.invoice_id IS NOT NULL AND p.invoice_id = r.invoice_id))
			AND p.status <> 'failed'
		)
		ORDER BY r.created_at ASC
		LIMIT $2`, registrationColumns)

	rows, err := r.db.Conn(ctx).Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var regs []*domain.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		regs = append(regs, reg)
	}
	return regs, rows.Err()
}
