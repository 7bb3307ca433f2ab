package service

import (
	"context"
	"testing"
	"time"

	"github.com/prohmpiriya/eventdesk/internal/domain"
	"github.com/prohmpiriya/eventdesk/internal/dto"
	"github.com/prohmpiriya/eventdesk/pkg/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type floorPlanFixture struct {
	store *memStore
	svc   FloorPlanService
	plan  *domain.FloorPlan
}

// newFloorPlanFixture creates an unpublished 10x10 plan for a published event
func newFloorPlanFixture(t *testing.T, holds SeatHolder) *floorPlanFixture {
	t.Helper()
	f := &floorPlanFixture{store: newMemStore()}
	f.store.putTenant(legacyTenant("tenant-1"))
	seedEvent(f.store, "event-1", 0, 0, domain.EventStatusPublished)
	f.svc = NewFloorPlanService(f.store.repos(), holds, Config{MaxSeatsPerHold: 4})

	plan, err := f.svc.Create(context.Background(), "tenant-1", &dto.CreateFloorPlanRequest{
		EventID: "event-1", Name: "Main hall", Width: 10, Height: 10,
	})
	require.NoError(t, err)
	f.plan = plan
	return f
}

func (f *floorPlanFixture) seatIDs(t *testing.T) []string {
	t.Helper()
	seats, err := f.store.repos().Seats.ListByFloorPlan(context.Background(), f.plan.ID)
	require.NoError(t, err)
	ids := make([]string, 0, len(seats))
	for _, s := range seats {
		ids = append(ids, s.ID)
	}
	return ids
}

func TestFloorPlanService_Create(t *testing.T) {
	f := newFloorPlanFixture(t, nil)

	_, err := f.svc.Create(context.Background(), "tenant-1", &dto.CreateFloorPlanRequest{
		EventID: "event-404", Name: "Nowhere", Width: 10, Height: 10,
	})
	assert.ErrorIs(t, err, ErrEventNotFound)

	plans, err := f.svc.ListByEvent(context.Background(), "tenant-1", "event-1")
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.False(t, plans[0].IsPublished)
}

func TestFloorPlanService_GenerateAndPublish(t *testing.T) {
	f := newFloorPlanFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Publish(ctx, "tenant-1", f.plan.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidGrid, "a plan without seats cannot be published")

	tests := []struct {
		name    string
		req     dto.GenerateSeatsRequest
		want    int64
		wantErr error
	}{
		{"two rows of three", dto.GenerateSeatsRequest{Section: "A", Rows: 2, Cols: 3, Price: 1500}, 6, nil},
		{"balcony", dto.GenerateSeatsRequest{Section: "BAL", Rows: 1, Cols: 4, FirstRow: 5}, 4, nil},
		{"oversized grid", dto.GenerateSeatsRequest{Section: "X", Rows: 200, Cols: 200}, 0, domain.ErrInvalidGrid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := f.svc.GenerateSeats(ctx, "tenant-1", f.plan.ID, &tt.req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}

	seats, err := f.svc.Seats(ctx, "tenant-1", f.plan.ID)
	require.NoError(t, err)
	require.Len(t, seats, 10)
	labels := make([]string, 0, len(seats))
	for _, s := range seats {
		labels = append(labels, s.Label)
		assert.Equal(t, domain.SeatStatusAvailable, s.Status)
	}
	assert.Contains(t, labels, "A-A1")
	assert.Contains(t, labels, "A-B3")
	assert.Contains(t, labels, "BAL-F4")

	plan, err := f.svc.Publish(ctx, "tenant-1", f.plan.ID)
	require.NoError(t, err)
	assert.True(t, plan.IsPublished)

	// the layout is frozen once published
	_, err = f.svc.GenerateSeats(ctx, "tenant-1", f.plan.ID, &dto.GenerateSeatsRequest{Section: "C", Rows: 1, Cols: 1})
	assert.ErrorIs(t, err, ErrFloorPlanPublished)
	name := "Renamed"
	_, err = f.svc.Update(ctx, "tenant-1", f.plan.ID, &dto.UpdateFloorPlanRequest{Name: &name})
	assert.ErrorIs(t, err, ErrFloorPlanPublished)
}

func TestFloorPlanService_HoldAndRelease(t *testing.T) {
	holds := &stubHolds{holders: map[string]string{}}
	f := newFloorPlanFixture(t, holds)
	ctx := context.Background()

	_, err := f.svc.GenerateSeats(ctx, "tenant-1", f.plan.ID, &dto.GenerateSeatsRequest{Section: "A", Rows: 1, Cols: 4})
	require.NoError(t, err)
	ids := f.seatIDs(t)
	require.Len(t, ids, 4)

	_, err = f.svc.HoldSeats(ctx, "tenant-1", f.plan.ID, &dto.SeatHoldRequest{HoldToken: "cart-1", SeatIDs: ids[:2]})
	assert.ErrorIs(t, err, ErrFloorPlanNotFound, "unpublished plans take no holds")

	_, err = f.svc.Publish(ctx, "tenant-1", f.plan.ID)
	require.NoError(t, err)

	res, err := f.svc.HoldSeats(ctx, "tenant-1", f.plan.ID, &dto.SeatHoldRequest{HoldToken: "cart-1", SeatIDs: ids[:2]})
	require.NoError(t, err)
	assert.Equal(t, "cart-1", res.HoldToken)
	assert.Equal(t, 600, res.ExpiresIn)

	tests := []struct {
		name    string
		req     dto.SeatHoldRequest
		wantErr error
	}{
		{"seat held by another cart", dto.SeatHoldRequest{HoldToken: "cart-2", SeatIDs: ids[1:3]}, ErrSeatsUnavailable},
		{"seat not on this plan", dto.SeatHoldRequest{HoldToken: "cart-2", SeatIDs: []string{"seat-elsewhere"}}, ErrSeatsUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.HoldSeats(ctx, "tenant-1", f.plan.ID, &tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	seats, err := f.svc.Seats(ctx, "tenant-1", f.plan.ID)
	require.NoError(t, err)
	held := map[string]string{}
	for _, s := range seats {
		if s.Status == domain.SeatStatusHeld {
			held[s.ID] = s.HeldBy
		}
	}
	assert.Equal(t, map[string]string{ids[0]: "cart-1", ids[1]: "cart-1"}, held)

	require.NoError(t, f.svc.ReleaseSeats(ctx, "tenant-1", f.plan.ID, &dto.SeatHoldRequest{HoldToken: "cart-1", SeatIDs: ids[:2]}))
	assert.ElementsMatch(t, ids[:2], holds.released)

	_, err = f.svc.HoldSeats(ctx, "tenant-1", f.plan.ID, &dto.SeatHoldRequest{HoldToken: "cart-2", SeatIDs: ids[1:3]})
	require.NoError(t, err)
}

// limitHolds rejects every hold the way the Redis script does past max_per_holder
type limitHolds struct{ stubHolds }

func (h *limitHolds) HoldSeats(ctx context.Context, floorPlanID, holder string, seatIDs []string, ttl time.Duration, maxPerHolder int) (*redis.HoldResult, error) {
	return &redis.HoldResult{OK: false, Code: "HOLDER_LIMIT_EXCEEDED"}, nil
}

func TestFloorPlanService_HoldLimit(t *testing.T) {
	f := newFloorPlanFixture(t, &limitHolds{stubHolds{holders: map[string]string{}}})
	ctx := context.Background()

	_, err := f.svc.GenerateSeats(ctx, "tenant-1", f.plan.ID, &dto.GenerateSeatsRequest{Section: "A", Rows: 1, Cols: 2})
	require.NoError(t, err)
	_, err = f.svc.Publish(ctx, "tenant-1", f.plan.ID)
	require.NoError(t, err)

	_, err = f.svc.HoldSeats(ctx, "tenant-1", f.plan.ID, &dto.SeatHoldRequest{HoldToken: "cart-1", SeatIDs: f.seatIDs(t)})
	assert.ErrorIs(t, err, ErrSeatHoldLimit)
}

func TestFloorPlanService_HoldsDisabled(t *testing.T) {
	f := newFloorPlanFixture(t, nil)

	_, err := f.svc.HoldSeats(context.Background(), "tenant-1", f.plan.ID, &dto.SeatHoldRequest{HoldToken: "cart-1", SeatIDs: []string{"s"}})
	assert.ErrorIs(t, err, ErrSeatsNotConfigured)
	assert.ErrorIs(t, f.svc.ReleaseSeats(context.Background(), "tenant-1", f.plan.ID, &dto.SeatHoldRequest{HoldToken: "cart-1"}), ErrSeatsNotConfigured)
}
