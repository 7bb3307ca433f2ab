package service

import (
	"context"
	"fmt"
	"time"

	"github.com/prohmpiriya/eventdesk/internal/domain"
	"github.com/prohmpiriya/eventdesk/internal/dto"
	"github.com/prohmpiriya/eventdesk/pkg/logger"
	"go.uber.org/zap"
)

// FloorPlanService defines the interface for venue layouts and seat holds
type FloorPlanService interface {
	Create(ctx context.Context, tenantID string, req *dto.CreateFloorPlanRequest) (*domain.FloorPlan, error)
	GetByID(ctx context.Context, tenantID, id string) (*domain.FloorPlan, error)
	ListByEvent(ctx context.Context, tenantID, eventID string) ([]*domain.FloorPlan, error)
	Update(ctx context.Context, tenantID, id string, req *dto.UpdateFloorPlanRequest) (*domain.FloorPlan, error)
	// Publish opens the plan for seat selection; the layout is frozen afterwards
	Publish(ctx context.Context, tenantID, id string) (*domain.FloorPlan, error)
	// GenerateSeats adds a block of seats to an unpublished plan
	GenerateSeats(ctx context.Context, tenantID, id string, req *dto.GenerateSeatsRequest) (int64, error)
	// Seats lists the plan's seats with live holds overlaid
	Seats(ctx context.Context, tenantID, id string) ([]*domain.Seat, error)
	BlockSeats(ctx context.Context, tenantID, id string, req *dto.SeatBlockRequest) (int64, error)
	// HoldSeats reserves seats for a hold token until checkout or expiry
	HoldSeats(ctx context.Context, tenantID, id string, req *dto.SeatHoldRequest) (*dto.SeatHoldResponse, error)
	ReleaseSeats(ctx context.Context, tenantID, id string, req *dto.SeatHoldRequest) error
}

type floorPlanService struct {
	ledger *ledger
	holds  SeatHolder
}

// NewFloorPlanService creates a new FloorPlanService. holds may be nil when Redis is off.
func NewFloorPlanService(repos Repositories, holds SeatHolder, cfg Config) FloorPlanService {
	return &floorPlanService{ledger: newLedger(repos, cfg), holds: holds}
}

func (s *floorPlanService) Create(ctx context.Context, tenantID string, req *dto.CreateFloorPlanRequest) (*domain.FloorPlan, error) {
	if _, err := loadEvent(ctx, s.ledger.repos.Events, tenantID, req.EventID); err != nil {
		return nil, err
	}
	fp, err := domain.NewFloorPlan(tenantID, req.EventID, req.Name, req.Width, req.Height)
	if err != nil {
		return nil, err
	}
	fp.Layout = req.Layout
	if err := s.ledger.repos.FloorPlans.Create(ctx, fp); err != nil {
		return nil, err
	}
	return fp, nil
}

func (s *floorPlanService) GetByID(ctx context.Context, tenantID, id string) (*domain.FloorPlan, error) {
	fp, err := s.ledger.repos.FloorPlans.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if fp == nil {
		return nil, ErrFloorPlanNotFound
	}
	return fp, nil
}

func (s *floorPlanService) ListByEvent(ctx context.Context, tenantID, eventID string) ([]*domain.FloorPlan, error) {
	return s.ledger.repos.FloorPlans.ListByEvent(ctx, tenantID, eventID)
}

func (s *floorPlanService) Update(ctx context.Context, tenantID, id string, req *dto.UpdateFloorPlanRequest) (*domain.FloorPlan, error) {
	fp, err := s.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if fp.IsPublished {
		return nil, ErrFloorPlanPublished
	}
	if req.Name != nil {
		fp.Name = *req.Name
	}
	if req.Width != nil {
		fp.Width = *req.Width
	}
	if req.Height != nil {
		fp.Height = *req.Height
	}
	if len(req.Layout) > 0 {
		fp.Layout = req.Layout
	}
	if fp.Width <= 0 || fp.Height <= 0 {
		return nil, domain.ErrInvalidGrid
	}
	fp.UpdatedAt = time.Now()
	if err := s.ledger.repos.FloorPlans.Update(ctx, fp); err != nil {
		return nil, err
	}
	return fp, nil
}

func (s *floorPlanService) Publish(ctx context.Context, tenantID, id string) (*domain.FloorPlan, error) {
	fp, err := s.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if fp.IsPublished {
		return fp, nil
	}
	seats, err := s.ledger.repos.Seats.ListByFloorPlan(ctx, fp.ID)
	if err != nil {
		return nil, err
	}
	if len(seats) == 0 {
		return nil, fmt.Errorf("%w: floor plan has no seats", domain.ErrInvalidGrid)
	}
	fp.IsPublished = true
	fp.UpdatedAt = time.Now()
	if err := s.ledger.repos.FloorPlans.Update(ctx, fp); err != nil {
		return nil, err
	}
	return fp, nil
}

func (s *floorPlanService) GenerateSeats(ctx context.Context, tenantID, id string, req *dto.GenerateSeatsRequest) (int64, error) {
	fp, err := s.GetByID(ctx, tenantID, id)
	if err != nil {
		return 0, err
	}
	if fp.IsPublished {
		return 0, ErrFloorPlanPublished
	}
	seats, err := domain.GenerateSeats(fp.ID, req.ToGrid())
	if err != nil {
		return 0, err
	}
	n, err := s.ledger.repos.Seats.CreateBatch(ctx, seats)
	if err != nil {
		return 0, err
	}
	logger.InfoCtx(ctx, "seats generated",
		zap.String("floor_plan_id", fp.ID),
		zap.String("section", req.Section),
		zap.Int64("count", n),
	)
	return n, nil
}

func (s *floorPlanService) Seats(ctx context.Context, tenantID, id string) ([]*domain.Seat, error) {
	fp, err := s.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	seats, err := s.ledger.repos.Seats.ListByFloorPlan(ctx, fp.ID)
	if err != nil {
		return nil, err
	}
	if s.holds == nil || len(seats) == 0 {
		return seats, nil
	}

	ids := make([]string, 0, len(seats))
	for _, seat := range seats {
		if seat.Status == domain.SeatStatusAvailable {
			ids = append(ids, seat.ID)
		}
	}
	holders, err := s.holds.SeatHolders(ctx, fp.ID, ids)
	if err != nil {
		// Holds are advisory for display; show the stored state
		logger.WarnCtx(ctx, "seat holds unavailable", zap.String("floor_plan_id", fp.ID), zap.Error(err))
		return seats, nil
	}
	for _, seat := range seats {
		if holder, ok := holders[seat.ID]; ok {
			seat.Status = domain.SeatStatusHeld
			seat.HeldBy = holder
		}
	}
	return seats, nil
}

func (s *floorPlanService) BlockSeats(ctx context.Context, tenantID, id string, req *dto.SeatBlockRequest) (int64, error) {
	fp, err := s.GetByID(ctx, tenantID, id)
	if err != nil {
		return 0, err
	}
	return s.ledger.repos.Seats.SetBlocked(ctx, fp.ID, req.SeatIDs, req.Blocked)
}

func (s *floorPlanService) HoldSeats(ctx context.Context, tenantID, id string, req *dto.SeatHoldRequest) (*dto.SeatHoldResponse, error) {
	if s.holds == nil {
		return nil, ErrSeatsNotConfigured
	}
	fp, err := s.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if !fp.IsPublished {
		return nil, ErrFloorPlanNotFound
	}

	seats, err := s.ledger.repos.Seats.GetByIDs(ctx, fp.ID, req.SeatIDs)
	if err != nil {
		return nil, err
	}
	if len(seats) != len(req.SeatIDs) {
		return nil, ErrSeatsUnavailable
	}
	for _, seat := range seats {
		if seat.Status != domain.SeatStatusAvailable {
			return nil, ErrSeatsUnavailable
		}
	}

	ttl := s.ledger.cfg.SeatHoldTTL
	res, err := s.holds.HoldSeats(ctx, fp.ID, req.HoldToken, req.SeatIDs, ttl, s.ledger.cfg.MaxSeatsPerHold)
	if err != nil {
		return nil, err
	}
	if !res.OK {
		switch res.Code {
		case "HOLDER_LIMIT_EXCEEDED":
			return nil, fmt.Errorf("%w: %d seats max", ErrSeatHoldLimit, s.ledger.cfg.MaxSeatsPerHold)
		default:
			return nil, ErrSeatsUnavailable
		}
	}
	return &dto.SeatHoldResponse{
		HoldToken: req.HoldToken,
		SeatIDs:   req.SeatIDs,
		ExpiresIn: int(ttl.Seconds()),
	}, nil
}

func (s *floorPlanService) ReleaseSeats(ctx context.Context, tenantID, id string, req *dto.SeatHoldRequest) error {
	if s.holds == nil {
		return ErrSeatsNotConfigured
	}
	fp, err := s.GetByID(ctx, tenantID, id)
	if err != nil {
		return err
	}
	_, err = s.holds.ReleaseSeats(ctx, fp.ID, req.HoldToken, req.SeatIDs)
	return err
}
