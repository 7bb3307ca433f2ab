package service

import (
	"context"
	"testing"
	"time"

	"github.com/prohmpiriya/eventdesk/internal/domain"
	"github.com/prohmpiriya/eventdesk/internal/dto"
	"github.com/prohmpiriya/eventdesk/internal/notification"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedEvent(s *memStore, id string, price int64, capacity int, status domain.EventStatus) *domain.Event {
	e := &domain.Event{
		ID:          id,
		TenantID:    "tenant-1",
		Name:        "GopherCon Lite",
		Slug:        "gophercon-lite",
		Currency:    "USD",
		Capacity:    capacity,
		TicketPrice: price,
		Status:      status,
	}
	_ = memEvents{s}.Create(context.Background(), e)
	return e
}

func registrationRequest(eventID string, qty int) *dto.CreateRegistrationRequest {
	return &dto.CreateRegistrationRequest{
		EventID:      eventID,
		AttendeeName: "Ada Lovelace",
		Email:        "Ada@Example.com",
		Quantity:     qty,
	}
}

func TestRegistrationService_Create(t *testing.T) {
	tests := []struct {
		name       string
		price      int64
		capacity   int
		status     domain.EventStatus
		sold       int
		qty        int
		wantErr    error
		wantStatus domain.RegistrationStatus
		wantAmount int64
		wantNotify []string
	}{
		{
			name:       "paid event stays pending",
			price:      2500,
			status:     domain.EventStatusPublished,
			qty:        2,
			wantStatus: domain.RegistrationStatusPending,
			wantAmount: 5000,
		},
		{
			name:       "free event confirms",
			status:     domain.EventStatusPublished,
			qty:        1,
			wantStatus: domain.RegistrationStatusConfirmed,
			wantNotify: []string{notification.TemplateRegistrationConfirmed},
		},
		{
			name:    "draft event is closed",
			price:   2500,
			status:  domain.EventStatusDraft,
			qty:     1,
			wantErr: ErrEventClosed,
		},
		{
			name:     "capacity reached",
			price:    2500,
			capacity: 3,
			status:   domain.EventStatusPublished,
			sold:     2,
			qty:      2,
			wantErr:  ErrEventSoldOut,
		},
		{
			name:       "last seats fit",
			price:      2500,
			capacity:   3,
			status:     domain.EventStatusPublished,
			sold:       2,
			qty:        1,
			wantStatus: domain.RegistrationStatusPending,
			wantAmount: 2500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			store.putTenant(legacyTenant("tenant-1"))
			event := seedEvent(store, "event-1", tt.price, tt.capacity, tt.status)
			if tt.sold > 0 {
				prior := pendingRegistration("reg-prior", "tenant-1", 0)
				prior.EventID = event.ID
				prior.Quantity = tt.sold
				store.putRegistration(prior)
			}
			notifier := &recordingNotifier{}
			svc := NewRegistrationService(store.repos(), &passTx{}, nil, notifier, Config{})

			reg, err := svc.Create(context.Background(), "tenant-1", registrationRequest(event.ID, tt.qty))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, notifier.templates())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, reg.Status)
			assert.Equal(t, tt.wantAmount, reg.Amount)
			assert.Equal(t, "ada@example.com", reg.Email)
			assert.Equal(t, tt.wantNotify, nilIfEmpty(notifier.templates()))
			assert.NotNil(t, store.registration(reg.ID))
		})
	}
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}

func TestRegistrationService_UnknownEvent(t *testing.T) {
	store := newMemStore()
	store.putTenant(legacyTenant("tenant-1"))
	seedEvent(store, "event-1", 0, 0, domain.EventStatusPublished)
	svc := NewRegistrationService(store.repos(), &passTx{}, nil, nil, Config{})

	_, err := svc.Create(context.Background(), "tenant-2", registrationRequest("event-1", 1))
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestRegistrationService_SeatedCreate(t *testing.T) {
	newFixture := func(seatPrice int64) (*memStore, *stubHolds, RegistrationService) {
		store := newMemStore()
		store.putTenant(legacyTenant("tenant-1"))
		seedEvent(store, "event-1", 0, 0, domain.EventStatusPublished)
		store.floorPlans["plan-1"] = &domain.FloorPlan{ID: "plan-1", TenantID: "tenant-1", EventID: "event-1", IsPublished: true}
		for _, id := range []string{"seat-a", "seat-b"} {
			store.seats[id] = &domain.Seat{ID: id, FloorPlanID: "plan-1", Price: seatPrice, Status: domain.SeatStatusAvailable}
		}
		holds := &stubHolds{holders: map[string]string{}}
		return store, holds, NewRegistrationService(store.repos(), &passTx{}, holds, nil, Config{})
	}
	seatedRequest := func(token string) *dto.CreateRegistrationRequest {
		req := registrationRequest("event-1", 2)
		req.FloorPlanID = "plan-1"
		req.SeatIDs = []string{"seat-a", "seat-b"}
		req.HoldToken = token
		return req
	}
	ctx := context.Background()

	t.Run("free seats are booked and holds released", func(t *testing.T) {
		store, holds, svc := newFixture(0)
		holds.holders["seat-a"], holds.holders["seat-b"] = "tok-1", "tok-1"

		reg, err := svc.Create(ctx, "tenant-1", seatedRequest("tok-1"))
		require.NoError(t, err)
		assert.Equal(t, domain.RegistrationStatusConfirmed, reg.Status)
		assert.Equal(t, reg.ID, store.booked["seat-a"])
		assert.ElementsMatch(t, []string{"seat-a", "seat-b"}, holds.released)
	})

	t.Run("priced seats wait for payment", func(t *testing.T) {
		store, holds, svc := newFixture(4000)
		holds.holders["seat-a"], holds.holders["seat-b"] = "tok-1", "tok-1"

		reg, err := svc.Create(ctx, "tenant-1", seatedRequest("tok-1"))
		require.NoError(t, err)
		assert.Equal(t, domain.RegistrationStatusPending, reg.Status)
		assert.Equal(t, int64(8000), reg.Amount)
		assert.Empty(t, store.booked)
		assert.Empty(t, holds.released)
	})

	t.Run("seats held by someone else", func(t *testing.T) {
		_, holds, svc := newFixture(0)
		holds.holders["seat-a"], holds.holders["seat-b"] = "tok-1", "tok-2"

		_, err := svc.Create(ctx, "tenant-1", seatedRequest("tok-1"))
		assert.ErrorIs(t, err, ErrSeatHoldMismatch)
	})

	t.Run("seat already booked", func(t *testing.T) {
		store, holds, svc := newFixture(0)
		holds.holders["seat-a"], holds.holders["seat-b"] = "tok-1", "tok-1"
		store.booked["seat-b"] = "reg-other"

		_, err := svc.Create(ctx, "tenant-1", seatedRequest("tok-1"))
		assert.ErrorIs(t, err, ErrSeatsUnavailable)
	})

	t.Run("seat count must match quantity", func(t *testing.T) {
		_, _, svc := newFixture(0)
		req := seatedRequest("tok-1")
		req.Quantity = 3

		_, err := svc.Create(ctx, "tenant-1", req)
		assert.ErrorIs(t, err, ErrSeatCountMismatch)
	})

	t.Run("no redis", func(t *testing.T) {
		store, _, _ := newFixture(0)
		svc := NewRegistrationService(store.repos(), &passTx{}, nil, nil, Config{})

		_, err := svc.Create(ctx, "tenant-1", seatedRequest("tok-1"))
		assert.ErrorIs(t, err, ErrSeatsNotConfigured)
	})
}

func TestRegistrationService_Cancel(t *testing.T) {
	store := newMemStore()
	store.putTenant(legacyTenant("tenant-1"))
	reg := pendingRegistration("reg-1", "tenant-1", 2500)
	reg.FloorPlanID = "plan-1"
	reg.SeatIDs = []string{"seat-a"}
	store.putRegistration(reg)
	store.booked["seat-a"] = "reg-1"
	svc := NewRegistrationService(store.repos(), &passTx{}, nil, nil, Config{})
	ctx := context.Background()

	_, err := svc.Cancel(ctx, "tenant-2", "reg-1")
	assert.ErrorIs(t, err, ErrRegistrationNotFound)

	got, err := svc.Cancel(ctx, "tenant-1", "reg-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RegistrationStatusCancelled, got.Status)
	assert.NotNil(t, got.CancelledAt)
	assert.Empty(t, store.booked)
	assert.Equal(t, domain.RegistrationStatusCancelled, store.registration("reg-1").Status)

	_, err = svc.Cancel(ctx, "tenant-1", "reg-1")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestRegistrationService_ExpireStale(t *testing.T) {
	store := newMemStore()
	old := time.Now().Add(-2 * time.Hour)

	stale := pendingRegistration("reg-stale", "tenant-1", 2500)
	stale.CreatedAt = old
	stale.FloorPlanID = "plan-1"
	stale.SeatIDs = []string{"seat-a", "seat-b"}
	store.putRegistration(stale)
	store.booked["seat-a"] = "reg-stale"
	store.booked["seat-b"] = "reg-stale"

	fresh := store.putRegistration(pendingRegistration("reg-fresh", "tenant-1", 2500))

	paid := pendingRegistration("reg-paid", "tenant-1", 2500)
	paid.CreatedAt = old
	paid.Status = domain.RegistrationStatusConfirmed
	paid.PaymentStatus = domain.RegPaymentPaid
	store.putRegistration(paid)

	svc := NewRegistrationService(store.repos(), &passTx{}, nil, nil, Config{})
	expired, released, err := svc.ExpireStale(context.Background(), time.Now().Add(-30*time.Minute), 100)
	require.NoError(t, err)

	assert.Equal(t, 1, expired)
	assert.Equal(t, int64(2), released)
	assert.Empty(t, store.booked)
	assert.Equal(t, domain.RegistrationStatusCancelled, store.registration("reg-stale").Status)
	assert.Equal(t, domain.RegistrationStatusPending, store.registration(fresh.ID).Status)
	assert.Equal(t, domain.RegistrationStatusConfirmed, store.registration("reg-paid").Status)
}

func TestRegistrationService_ExpireStale_PaymentInFlight(t *testing.T) {
	tests := []struct {
		name        string
		payment     *domain.PaymentRecord
		wantExpired int
		wantStatus  domain.RegistrationStatus
	}{
		{
			name:        "pending payment against the registration",
			payment:     &domain.PaymentRecord{ID: "pay-1", RegistrationID: "reg-1", Status: domain.PaymentStatusPending},
			wantExpired: 0,
			wantStatus:  domain.RegistrationStatusPending,
		},
		{
			name:        "succeeded payment against its invoice",
			payment:     &domain.PaymentRecord{ID: "pay-1", InvoiceID: "inv-1", Status: domain.PaymentStatusSucceeded},
			wantExpired: 0,
			wantStatus:  domain.RegistrationStatusPending,
		},
		{
			name:        "only a failed attempt",
			payment:     &domain.PaymentRecord{ID: "pay-1", RegistrationID: "reg-1", Status: domain.PaymentStatusFailed},
			wantExpired: 1,
			wantStatus:  domain.RegistrationStatusCancelled,
		},
		{
			name:        "payment for someone else",
			payment:     &domain.PaymentRecord{ID: "pay-1", RegistrationID: "reg-2", InvoiceID: "inv-2", Status: domain.PaymentStatusPending},
			wantExpired: 1,
			wantStatus:  domain.RegistrationStatusCancelled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			reg := pendingRegistration("reg-1", "tenant-1", 2500)
			reg.CreatedAt = time.Now().Add(-2 * time.Hour)
			reg.InvoiceID = "inv-1"
			store.putRegistration(reg)
			// the payment lands after the stale scan read the registration
			tt.payment.TenantID = "tenant-1"
			tt.payment.Gateway = domain.GatewayStripe
			tt.payment.GatewayPaymentID = "pi_" + tt.payment.ID
			store.putPayment(tt.payment)

			svc := NewRegistrationService(store.repos(), &passTx{}, nil, nil, Config{})
			expired, _, err := svc.ExpireStale(context.Background(), time.Now().Add(-30*time.Minute), 10)
			require.NoError(t, err)
			assert.Equal(t, tt.wantExpired, expired)
			assert.Equal(t, tt.wantStatus, store.registration("reg-1").Status)
		})
	}
}

func TestRegistrationService_ExpireStale_ListFails(t *testing.T) {
	store := newMemStore()
	store.errs["registrations.ListStalePending"] = errInjected
	svc := NewRegistrationService(store.repos(), &passTx{}, nil, nil, Config{})

	_, _, err := svc.ExpireStale(context.Background(), time.Now(), 10)
	assert.ErrorIs(t, err, errInjected)
}
