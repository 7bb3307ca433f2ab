package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/prohmpiriya/eventdesk/pkg/database"
	"github.com/prohmpiriya/eventdesk/pkg/middleware"
)

var auditColumns = []string{
	"id", "tenant_id", "user_id", "user_email", "user_role", "action", "resource_type", "resource_id",
	"status_code", "ip_address", "user_agent", "request_id", "trace_id",
	"request_body", "metadata", "created_at",
}

// PostgresAuditRepository writes audit middleware batches into audit_logs
type PostgresAuditRepository struct {
	db *database.PostgresDB
}

// NewPostgresAuditRepository creates a new PostgresAuditRepository
func NewPostgresAuditRepository(db *database.PostgresDB) *PostgresAuditRepository {
	return &PostgresAuditRepository{db: db}
}

// WriteAuditEntries bulk-inserts a batch with COPY
func (r *PostgresAuditRepository) WriteAuditEntries(ctx context.Context, entries []*middleware.AuditEntry) error {
	if len(entries) == 0 {
		return nil
	}
	_, err := r.db.Conn(ctx).CopyFrom(ctx,
		pgx.Identifier{"audit_logs"},
		auditColumns,
		pgx.CopyFromSlice(len(entries), func(i int) ([]any, error) {
			e := entries[i]
			return []any{
				e.ID,
				e.TenantID,
				e.UserID,
				nullStringOrValue(e.UserEmail),
				nullStringOrValue(e.UserRole),
				string(e.Action),
				e.ResourceType,
				e.ResourceID,
				e.StatusCode,
				nullStringOrValue(e.IPAddress),
				nullStringOrValue(e.UserAgent),
				nullStringOrValue(e.RequestID),
				nullStringOrValue(e.TraceID),
				jsonOrNil(e.Request),
				jsonOrNil(e.Metadata),
				e.CreatedAt,
			}, nil
		}),
	)
	return err
}

func jsonOrNil(m map[string]any) any {
	if len(m) == 0 {
		return nil
	}
	return m
}
