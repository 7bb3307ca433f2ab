package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/prohmpiriya/eventdesk/internal/domain"
	"github.com/prohmpiriya/eventdesk/internal/dto"
	"github.com/prohmpiriya/eventdesk/pkg/database"
)

const webhookLogColumns = `
	id, gateway, event_id, event_type, COALESCE(tenant_id::text, '') as tenant_id, payload, processed, attempts,
	COALESCE(last_error, '') as last_error, COALESCE(note, '') as note, received_at, processed_at`

// PostgresWebhookLogRepository implements WebhookLogRepository using PostgreSQL
type PostgresWebhookLogRepository struct {
	db *database.PostgresDB
}

// NewPostgresWebhookLogRepository creates a new PostgresWebhookLogRepository
func NewPostgresWebhookLogRepository(db *database.PostgresDB) *PostgresWebhookLogRepository {
	return &PostgresWebhookLogRepository{db: db}
}

func scanWebhookLog(row pgx.Row) (*domain.WebhookLog, error) {
	l := &domain.WebhookLog{}
	var payload []byte
	err := row.Scan(
		&l.ID,
		&l.Gateway,
		&l.EventID,
		&l.EventType,
		&l.TenantID,
		&payload,
		&l.Processed,
		&l.Attempts,
		&l.LastError,
		&l.Note,
		&l.ReceivedAt,
		&l.ProcessedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	l.Payload = payload
	return l, nil
}

// Record inserts the log unless (gateway, event_id) is already present and returns the stored row
func (r *PostgresWebhookLogRepository) Record(ctx context.Context, l *domain.WebhookLog) (*domain.WebhookLog, bool, error) {
	conn := r.db.Conn(ctx)
	payload := []byte(l.Payload)
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	result, err := conn.Exec(ctx, `
		INSERT INTO webhook_logs (id, gateway, event_id, event_type, tenant_id, payload, processed, attempts, received_at)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, FALSE, 0, $7)
		ON CONFLICT (gateway, event_id) DO NOTHING
	`, l.ID, l.Gateway, l.EventID, l.EventType, nullStringOrValue(l.TenantID), string(payload), l.ReceivedAt)
	if err != nil {
		return nil, false, err
	}
	inserted := result.RowsAffected() == 1

	stored, err := scanWebhookLog(conn.QueryRow(ctx,
		`SELECT `+webhookLogColumns+` FROM webhook_logs WHERE gateway = $1 AND event_id = $2`,
		l.Gateway, l.EventID,
	))
	if err != nil {
		return nil, false, err
	}
	if stored == nil {
		return nil, false, fmt.Errorf("webhook log %s/%s vanished after insert", l.Gateway, l.EventID)
	}
	return stored, inserted, nil
}

// GetByID retrieves a webhook log by ID
func (r *PostgresWebhookLogRepository) GetByID(ctx context.Context, id string) (*domain.WebhookLog, error) {
	return scanWebhookLog(r.db.Conn(ctx).QueryRow(ctx,
		`SELECT `+webhookLogColumns+` FROM webhook_logs WHERE id = $1`, id,
	))
}

// MarkProcessed stores a successful application
func (r *PostgresWebhookLogRepository) MarkProcessed(ctx context.Context, l *domain.WebhookLog) error {
	result, err := r.db.Conn(ctx).Exec(ctx, `
		UPDATE webhook_logs
		SET processed = TRUE, attempts = $2, last_error = NULL, note = $3, tenant_id = $4, processed_at = $5
		WHERE id = $1
	`, l.ID, l.Attempts, nullStringOrValue(l.Note), nullStringOrValue(l.TenantID), l.ProcessedAt)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("webhook log %s: %w", l.ID, ErrNotUpdated)
	}
	return nil
}

// MarkFailed stores a failed attempt. It must run outside the failed transaction.
func (r *PostgresWebhookLogRepository) MarkFailed(ctx context.Context, l *domain.WebhookLog) error {
	result, err := r.db.Conn(ctx).Exec(ctx, `
		UPDATE webhook_logs
		SET attempts = $2, last_error = $3, tenant_id = COALESCE($4, tenant_id)
		WHERE id = $1 AND NOT processed
	`, l.ID, l.Attempts, nullStringOrValue(l.LastError), nullStringOrValue(l.TenantID))
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("webhook log %s: %w", l.ID, ErrNotUpdated)
	}
	return nil
}

// List retrieves webhook logs with pagination and filters. An empty TenantID lists every tenant.
func (r *PostgresWebhookLogRepository) List(ctx context.Context, filter *dto.WebhookLogFilter) ([]*domain.WebhookLog, int, error) {
	filter.Normalize()

	whereClause := "WHERE 1=1"
	args := []interface{}{}
	argIndex := 1

	if filter.TenantID != "" {
		whereClause += fmt.Sprintf(" AND tenant_id = $%d", argIndex)
		args = append(args, filter.TenantID)
		argIndex++
	}
	if filter.Gateway != "" {
		whereClause += fmt.Sprintf(" AND gateway = $%d", argIndex)
		args = append(args, filter.Gateway)
		argIndex++
	}
	if filter.Processed != nil {
		whereClause += fmt.Sprintf(" AND processed = $%d", argIndex)
		args = append(args, *filter.Processed)
		argIndex++
	}
	if filter.EventType != "" {
		whereClause += fmt.Sprintf(" AND event_type = $%d", argIndex)
		args = append(args, filter.EventType)
		argIndex++
	}

	conn := r.db.Conn(ctx)

	var totalCount int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM webhook_logs %s", whereClause)
	if err := conn.QueryRow(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM webhook_logs
		%s
		ORDER BY received_at DESC
		LIMIT $%d OFFSET $%d
	`, webhookLogColumns, whereClause, argIndex, argIndex+1)
	args = append(args, filter.Limit, filter.Offset())

	logs, err := r.collect(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return logs, totalCount, nil
}

// ListUnprocessed returns the oldest unprocessed logs
func (r *PostgresWebhookLogRepository) ListUnprocessed(ctx context.Context, limit int) ([]*domain.WebhookLog, error) {
	if limit <= 0 {
		limit = 50
	}
	return r.collect(ctx,
		`SELECT `+webhookLogColumns+` FROM webhook_logs WHERE NOT processed ORDER BY received_at LIMIT $1`,
		limit,
	)
}

func (r *PostgresWebhookLogRepository) collect(ctx context.Context, query string, args ...any) ([]*domain.WebhookLog, error) {
	rows, err := r.db.Conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]*domain.WebhookLog, 0)
	for rows.Next() {
		l, err := scanWebhookLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
