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

// ErrSeatsUnavailable is returned when a booking touches a seat that is not available
var ErrSeatsUnavailable = errors.New("one or more seats are not available")

const seatColumns = `
	id, floor_plan_id, section, row_label, number, label, x, y, COALESCE(category, '') as category,
	price, status, COALESCE(registration_id::text, '') as registration_id, updated_at`

var seatCopyColumns = []string{
	"id", "floor_plan_id", "section", "row_label", "number", "label", "x", "y", "category", "price", "status", "updated_at",
}

// PostgresSeatRepository implements SeatRepository using PostgreSQL
type PostgresSeatRepository struct {
	db *database.PostgresDB
}

// NewPostgresSeatRepository creates a new PostgresSeatRepository
func NewPostgresSeatRepository(db *database.PostgresDB) *PostgresSeatRepository {
	return &PostgresSeatRepository{db: db}
}

// CreateBatch bulk-loads generated seats with COPY
func (r *PostgresSeatRepository) CreateBatch(ctx context.Context, seats []*domain.Seat) (int64, error) {
	if len(seats) == 0 {
		return 0, nil
	}
	n, err := r.db.Conn(ctx).CopyFrom(ctx,
		pgx.Identifier{"seats"},
		seatCopyColumns,
		pgx.CopyFromSlice(len(seats), func(i int) ([]any, error) {
			s := seats[i]
			return []any{
				s.ID, s.FloorPlanID, s.Section, s.Row, s.Number, s.Label, s.X, s.Y,
				nullStringOrValue(s.Category), s.Price, s.Status, s.UpdatedAt,
			}, nil
		}),
	)
	if isUniqueViolation(err) {
		return 0, ErrDuplicate
	}
	return n, err
}

func (r *PostgresSeatRepository) query(ctx context.Context, query string, args ...any) ([]*domain.Seat, error) {
	rows, err := r.db.Conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seats := make([]*domain.Seat, 0)
	for rows.Next() {
		s := &domain.Seat{}
		if err := rows.Scan(
			&s.ID, &s.FloorPlanID, &s.Section, &s.Row, &s.Number, &s.Label, &s.X, &s.Y,
			&s.Category, &s.Price, &s.Status, &s.RegistrationID, &s.UpdatedAt,
		); err != nil {
			return nil, err
		}
		seats = append(seats, s)
	}
	return seats, rows.Err()
}

// ListByFloorPlan returns every seat of a floor plan in layout order
func (r *PostgresSeatRepository) ListByFloorPlan(ctx context.Context, floorPlanID string) ([]*domain.Seat, error) {
	return r.query(ctx,
		`SELECT `+seatColumns+` FROM seats WHERE floor_plan_id = $1 ORDER BY section, length(row_label), row_label, number`,
		floorPlanID,
	)
}

// GetByIDs returns the listed seats of a floor plan
func (r *PostgresSeatRepository) GetByIDs(ctx context.Context, floorPlanID string, ids []string) ([]*domain.Seat, error) {
	return r.query(ctx,
		`SELECT `+seatColumns+` FROM seats WHERE floor_plan_id = $1 AND id = ANY($2::uuid[]) ORDER BY label`,
		floorPlanID, ids,
	)
}

// Book assigns seats to a registration. Either every seat is booked or none is.
func (r *PostgresSeatRepository) Book(ctx context.Context, floorPlanID string, ids []string, registrationID string) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithinTx(ctx, func(ctx context.Context) error {
		result, err := r.db.Conn(ctx).Exec(ctx, `
			UPDATE seats
			SET status = 'booked', registration_id = $3, updated_at = $4
			WHERE floor_plan_id = $1 AND id = ANY($2::uuid[]) AND status = 'available'
		`, floorPlanID, ids, registrationID, time.Now())
		if err != nil {
			return err
		}
		if result.RowsAffected() != int64(len(ids)) {
			return fmt.Errorf("booked %d of %d seats: %w", result.RowsAffected(), len(ids), ErrSeatsUnavailable)
		}
		return nil
	})
}

// ReleaseByRegistration frees every seat booked by a registration
func (r *PostgresSeatRepository) ReleaseByRegistration(ctx context.Context, registrationID string) (int64, error) {
	result, err := r.db.Conn(ctx).Exec(ctx, `
		UPDATE seats
		SET status = 'available', registration_id = NULL, updated_at = $2
		WHERE registration_id = $1 AND status = 'booked'
	`, registrationID, time.Now())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

// SetBlocked blocks or unblocks seats that are not booked
func (r *PostgresSeatRepository) SetBlocked(ctx context.Context, floorPlanID string, ids []string, blocked bool) (int64, error) {
	from, to := domain.SeatStatusAvailable, domain.SeatStatusBlocked
	if !blocked {
		from, to = to, from
	}
	result, err := r.db.Conn(ctx).Exec(ctx, `
		UPDATE seats
		SET status = $4, updated_at = $5
		WHERE floor_plan_id = $1 AND id = ANY($2::uuid[]) AND status = $3
	`, floorPlanID, ids, from, to, time.Now())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
