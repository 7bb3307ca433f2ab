package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prohmpiriya/eventdesk/internal/domain"
	"github.com/prohmpiriya/eventdesk/internal/dto"
	"github.com/prohmpiriya/eventdesk/internal/notification"
	"github.com/prohmpiriya/eventdesk/internal/repository"
	"github.com/prohmpiriya/eventdesk/pkg/logger"
	"go.uber.org/zap"
)

// RegistrationService defines the interface for attendee registrations
type RegistrationService interface {
	// Create registers an attendee. Paid registrations stay pending until checkout completes.
	Create(ctx context.Context, tenantID string, req *dto.CreateRegistrationRequest) (*domain.Registration, error)
	// GetByID returns a registration of the tenant
	GetByID(ctx context.Context, tenantID, id string) (*domain.Registration, error)
	// List returns a page of registrations
	List(ctx context.Context, filter *dto.RegistrationListFilter) ([]*domain.Registration, int, error)
	// Cancel cancels a registration and frees its seats. Refunds go through the invoice.
	Cancel(ctx context.Context, tenantID, id string) (*domain.Registration, error)
	// ExpireStale cancels up to limit unpaid pending registrations created before cutoff.
	// It returns how many were cancelled and how many booked seats were freed.
	ExpireStale(ctx context.Context, cutoff time.Time, limit int) (expired int, released int64, err error)
}

type registrationService struct {
	ledger   *ledger
	tx       TxManager
	holds    SeatHolder
	notifier notification.Notifier
}

// NewRegistrationService creates a new RegistrationService. holds may be nil when Redis is off.
func NewRegistrationService(repos Repositories, tx TxManager, holds SeatHolder, notifier notification.Notifier, cfg Config) RegistrationService {
	if notifier == nil {
		notifier = notification.NopNotifier{}
	}
	return &registrationService{
		ledger:   newLedger(repos, cfg),
		tx:       tx,
		holds:    holds,
		notifier: notifier,
	}
}

func (s *registrationService) Create(ctx context.Context, tenantID string, req *dto.CreateRegistrationRequest) (*domain.Registration, error) {
	repos := s.ledger.repos
	event, err := loadEvent(ctx, repos.Events, tenantID, req.EventID)
	if err != nil {
		return nil, err
	}
	if !event.IsOpenForRegistration() {
		return nil, ErrEventClosed
	}

	seated := req.FloorPlanID != "" || len(req.SeatIDs) > 0
	var seats []*domain.Seat
	if seated {
		if seats, err = s.checkHeldSeats(ctx, tenantID, event, req); err != nil {
			return nil, err
		}
	}

	reg, err := domain.NewRegistration(event, req.AttendeeName, req.Email, req.Phone, req.Quantity)
	if err != nil {
		return nil, err
	}
	if seated {
		reg.FloorPlanID = req.FloorPlanID
		reg.SeatIDs = req.SeatIDs
		priceSeats(reg, event, seats)
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if event.Capacity > 0 {
			sold, err := repos.Registrations.SumQuantity(ctx, event.ID)
			if err != nil {
				return err
			}
			if sold+int64(reg.Quantity) > int64(event.Capacity) {
				return ErrEventSoldOut
			}
		}
		if err := repos.Registrations.Create(ctx, reg); err != nil {
			return err
		}
		if reg.Status == domain.RegistrationStatusConfirmed && reg.HoldsSeats() {
			if err := repos.Seats.Book(ctx, reg.FloorPlanID, reg.SeatIDs, reg.ID); err != nil {
				if errors.Is(err, repository.ErrSeatsUnavailable) {
					return ErrSeatsUnavailable
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if reg.Status == domain.RegistrationStatusConfirmed {
		if reg.HoldsSeats() && s.holds != nil {
			if _, err := s.holds.ReleaseSeats(ctx, reg.FloorPlanID, req.HoldToken, reg.SeatIDs); err != nil {
				logger.WarnCtx(ctx, "seat hold release failed", zap.String("registration_id", reg.ID), zap.Error(err))
			}
		}
		tenant, _ := repos.Tenants.GetByID(ctx, tenantID)
		fx := &afterCommit{}
		fx.notify(registrationJob(tenant, reg, event.Name))
		dispatch(ctx, NopFinancePublisher{}, s.notifier, fx)
	}

	logger.InfoCtx(ctx, "registration created",
		zap.String("registration_id", reg.ID),
		zap.String("event_id", event.ID),
		zap.String("status", string(reg.Status)),
		zap.Int64("amount", reg.Amount),
	)
	return reg, nil
}

// checkHeldSeats verifies the requested seats exist, match the quantity and are held by the caller's token
func (s *registrationService) checkHeldSeats(ctx context.Context, tenantID string, event *domain.Event, req *dto.CreateRegistrationRequest) ([]*domain.Seat, error) {
	if req.FloorPlanID == "" || len(req.SeatIDs) == 0 {
		return nil, ErrSeatCountMismatch
	}
	if len(req.SeatIDs) != req.Quantity {
		return nil, ErrSeatCountMismatch
	}
	fp, err := s.ledger.repos.FloorPlans.GetByID(ctx, tenantID, req.FloorPlanID)
	if err != nil {
		return nil, err
	}
	if fp == nil || fp.EventID != event.ID {
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

	if s.holds == nil {
		return nil, ErrSeatsNotConfigured
	}
	if req.HoldToken == "" {
		return nil, ErrSeatHoldMismatch
	}
	holders, err := s.holds.SeatHolders(ctx, fp.ID, req.SeatIDs)
	if err != nil {
		return nil, fmt.Errorf("read seat holds: %w", err)
	}
	for _, id := range req.SeatIDs {
		if holders[id] != req.HoldToken {
			return nil, ErrSeatHoldMismatch
		}
	}
	return seats, nil
}

// priceSeats charges seat prices where the plan sets them and the event price otherwise
func priceSeats(reg *domain.Registration, event *domain.Event, seats []*domain.Seat) {
	var total int64
	for _, seat := range seats {
		if seat.Price > 0 {
			total += seat.Price
		} else {
			total += event.TicketPrice
		}
	}
	reg.Amount = total
	if total > 0 && reg.Status == domain.RegistrationStatusConfirmed {
		reg.Status = domain.RegistrationStatusPending
		reg.ConfirmedAt = nil
	}
}

func (s *registrationService) GetByID(ctx context.Context, tenantID, id string) (*domain.Registration, error) {
	reg, err := s.ledger.repos.Registrations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if reg == nil || reg.TenantID != tenantID {
		return nil, ErrRegistrationNotFound
	}
	return reg, nil
}

func (s *registrationService) List(ctx context.Context, filter *dto.RegistrationListFilter) ([]*domain.Registration, int, error) {
	filter.Normalize()
	return s.ledger.repos.Registrations.List(ctx, filter)
}

func (s *registrationService) Cancel(ctx context.Context, tenantID, id string) (*domain.Registration, error) {
	var reg *domain.Registration
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		reg, err = s.ledger.repos.Registrations.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if reg == nil || reg.TenantID != tenantID {
			return ErrRegistrationNotFound
		}
		_, err = s.cancelLocked(ctx, reg)
		return err
	})
	if err != nil {
		return nil, err
	}
	return reg, nil
}

func (s *registrationService) ExpireStale(ctx context.Context, cutoff time.Time, limit int) (int, int64, error) {
	stale, err := s.ledger.repos.Registrations.ListStalePending(ctx, cutoff, limit)
	if err != nil {
		return 0, 0, fmt.Errorf("list stale registrations: %w", err)
	}

	var expired int
	var released int64
	for _, candidate := range stale {
		var freed int64
		var cancelled bool
		err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
			reg, err := s.ledger.repos.Registrations.GetByIDForUpdate(ctx, candidate.ID)
			if err != nil || reg == nil {
				return err
			}
			// A payment may have landed since the scan
			if reg.Status != domain.RegistrationStatusPending || reg.PaymentStatus != domain.RegPaymentUnpaid {
				return nil
			}
			live, err := s.ledger.repos.Payments.HasLivePayment(ctx, reg.ID, reg.InvoiceID)
			if err != nil || live {
				return err
			}
			freed, err = s.cancelLocked(ctx, reg)
			cancelled = err == nil
			return err
		})
		if err != nil {
			if ctx.Err() != nil {
				return expired, released, ctx.Err()
			}
			logger.WarnCtx(ctx, "failed to expire registration",
				zap.String("registration_id", candidate.ID),
				zap.Error(err),
			)
			continue
		}
		if cancelled {
			expired++
			released += freed
			logger.InfoCtx(ctx, "expired unpaid registration",
				zap.String("tenant_id", candidate.TenantID),
				zap.String("registration_id", candidate.ID),
				zap.Int64("seats_released", freed),
			)
		}
	}
	return expired, released, nil
}

// cancelLocked cancels a row-locked registration and frees its booked seats
func (s *registrationService) cancelLocked(ctx context.Context, reg *domain.Registration) (int64, error) {
	if err := reg.Cancel(); err != nil {
		return 0, err
	}
	var freed int64
	if reg.HoldsSeats() {
		n, err := s.ledger.repos.Seats.ReleaseByRegistration(ctx, reg.ID)
		if err != nil {
			return 0, err
		}
		freed = n
	}
	return freed, s.ledger.repos.Registrations.Update(ctx, reg)
}
