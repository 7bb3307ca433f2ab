package service

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/prohmpiriya/eventdesk/internal/domain"
	"github.com/prohmpiriya/eventdesk/internal/dto"
	"github.com/prohmpiriya/eventdesk/internal/gateway"
	"github.com/prohmpiriya/eventdesk/internal/notification"
	"github.com/prohmpiriya/eventdesk/internal/repository"
	"github.com/prohmpiriya/eventdesk/pkg/redis"
)

var errInjected = errors.New("injected failure")

// memStore backs the in-memory repositories used by the service tests.
// Reads and writes copy rows so services only see changes they persisted.
type memStore struct {
	mu sync.Mutex

	tenants       map[string]*domain.Tenant
	migrations    []*domain.FinanceModeMigration
	events        map[string]*domain.Event
	registrations map[string]*domain.Registration
	booked        map[string]string // seat ID -> registration ID
	floorPlans    map[string]*domain.FloorPlan
	seats         map[string]*domain.Seat
	taxes         map[string]*domain.TaxStructure
	invoices      map[string]*domain.Invoice
	payments      map[string]*domain.PaymentRecord
	refunds       map[string]*domain.Refund
	disputes      map[string]*domain.Dispute
	logs          map[string]*domain.WebhookLog
	users         map[string]*domain.User
	sponsors      map[string]*domain.Sponsor
	vendors       map[string]*domain.Vendor
	exhibitors    map[string]*domain.Exhibitor
	signatures    map[string]*domain.SignatureRequest
	transitions   []*domain.SignatureTransition
	legacySeq     int64
	tenantSeq     map[string]int64

	// errs makes the named operation fail, e.g. "payments.Update"
	errs map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		tenants:       map[string]*domain.Tenant{},
		events:        map[string]*domain.Event{},
		registrations: map[string]*domain.Registration{},
		booked:        map[string]string{},
		floorPlans:    map[string]*domain.FloorPlan{},
		seats:         map[string]*domain.Seat{},
		taxes:         map[string]*domain.TaxStructure{},
		invoices:      map[string]*domain.Invoice{},
		payments:      map[string]*domain.PaymentRecord{},
		refunds:       map[string]*domain.Refund{},
		disputes:      map[string]*domain.Dispute{},
		logs:          map[string]*domain.WebhookLog{},
		users:         map[string]*domain.User{},
		sponsors:      map[string]*domain.Sponsor{},
		vendors:       map[string]*domain.Vendor{},
		exhibitors:    map[string]*domain.Exhibitor{},
		signatures:    map[string]*domain.SignatureRequest{},
		tenantSeq:     map[string]int64{},
		errs:          map[string]error{},
	}
}

func (m *memStore) repos() Repositories {
	return Repositories{
		Tenants:       memTenants{m},
		Events:        memEvents{m},
		Registrations: memRegistrations{m},
		Seats:         memSeats{m},
		Taxes:         memTaxes{m},
		Invoices:      memInvoices{m},
		Payments:      memPayments{m},
		WebhookLogs:   memWebhookLogs{m},
		FloorPlans:    memFloorPlans{m},
		Users:         memUsers{m},
		Partners:      memPartners{m},
		Signatures:    memSignatures{m},
	}
}

func (m *memStore) fail(op string) error {
	return m.errs[op]
}

func clone[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Lookups used by assertions

func (m *memStore) invoice(id string) *domain.Invoice {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clone(m.invoices[id])
}

func (m *memStore) registration(id string) *domain.Registration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clone(m.registrations[id])
}

func (m *memStore) tenant(id string) *domain.Tenant {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clone(m.tenants[id])
}

func (m *memStore) paymentByGatewayID(gw domain.Gateway, id string) *domain.PaymentRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.Gateway == gw && p.GatewayPaymentID == id {
			return clone(p)
		}
	}
	return nil
}

func (m *memStore) allPayments() []*domain.PaymentRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.PaymentRecord, 0, len(m.payments))
	for _, p := range m.payments {
		out = append(out, clone(p))
	}
	return out
}

func (m *memStore) allInvoices() []*domain.Invoice {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Invoice, 0, len(m.invoices))
	for _, inv := range m.invoices {
		out = append(out, clone(inv))
	}
	return out
}

func (m *memStore) logByEvent(gw domain.Gateway, eventID string) *domain.WebhookLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clone(m.logs[string(gw)+"/"+eventID])
}

// Seed helpers

func (m *memStore) putTenant(t *domain.Tenant) *domain.Tenant {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tenants[t.ID] = clone(t)
	return t
}

func (m *memStore) putRegistration(r *domain.Registration) *domain.Registration {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registrations[r.ID] = clone(r)
	return r
}

func (m *memStore) putInvoice(inv *domain.Invoice) *domain.Invoice {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invoices[inv.ID] = clone(inv)
	return inv
}

func (m *memStore) putPayment(p *domain.PaymentRecord) *domain.PaymentRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[p.ID] = clone(p)
	return p
}

func (m *memStore) putUser(u *domain.User) *domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = clone(u)
	return u
}

func (m *memStore) signature(id string) *domain.SignatureRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clone(m.signatures[id])
}

func (m *memStore) putTax(ts *domain.TaxStructure) *domain.TaxStructure {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.taxes[ts.ID] = clone(ts)
	return ts
}

type memTenants struct{ m *memStore }

func (r memTenants) Create(ctx context.Context, t *domain.Tenant) error {
	if existing, _ := r.GetBySlug(ctx, t.Slug); existing != nil {
		return repository.ErrDuplicate
	}
	r.m.putTenant(t)
	return nil
}

func (r memTenants) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	if err := r.m.fail("tenants.GetByID"); err != nil {
		return nil, err
	}
	return r.m.tenant(id), nil
}

func (r memTenants) GetByIDForUpdate(ctx context.Context, id string) (*domain.Tenant, error) {
	return r.GetByID(ctx, id)
}

func (r memTenants) GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, t := range r.m.tenants {
		if t.Slug == slug {
			return clone(t), nil
		}
	}
	return nil, nil
}

func (r memTenants) List(ctx context.Context, filter *dto.TenantListFilter) ([]*domain.Tenant, int, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*domain.Tenant
	for _, t := range r.m.tenants {
		out = append(out, clone(t))
	}
	return out, len(out), nil
}

func (r memTenants) Update(ctx context.Context, t *domain.Tenant) error {
	if r.m.tenant(t.ID) == nil {
		return repository.ErrNotUpdated
	}
	r.m.putTenant(t)
	return nil
}

func (r memTenants) Delete(ctx context.Context, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.tenants[id]; !ok {
		return repository.ErrNotUpdated
	}
	delete(r.m.tenants, id)
	return nil
}

func (r memTenants) UpdateFinanceMode(ctx context.Context, t *domain.Tenant) error {
	if err := r.m.fail("tenants.UpdateFinanceMode"); err != nil {
		return err
	}
	r.m.putTenant(t)
	return nil
}

func (r memTenants) CreateFinanceModeMigration(ctx context.Context, fm *domain.FinanceModeMigration) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.migrations = append(r.m.migrations, fm)
	return nil
}

func (r memTenants) ListFinanceModeMigrations(ctx context.Context, tenantID string) ([]*domain.FinanceModeMigration, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*domain.FinanceModeMigration
	for i := len(r.m.migrations) - 1; i >= 0; i-- {
		if r.m.migrations[i].TenantID == tenantID {
			out = append(out, r.m.migrations[i])
		}
	}
	return out, nil
}

type memEvents struct{ m *memStore }

func (r memEvents) Create(ctx context.Context, e *domain.Event) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, other := range r.m.events {
		if other.ID != e.ID && other.TenantID == e.TenantID && other.Slug == e.Slug {
			return repository.ErrDuplicate
		}
	}
	r.m.events[e.ID] = clone(e)
	return nil
}

func (r memEvents) GetByID(ctx context.Context, tenantID, id string) (*domain.Event, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	e := r.m.events[id]
	if e == nil || e.TenantID != tenantID {
		return nil, nil
	}
	return clone(e), nil
}

func (r memEvents) List(ctx context.Context, filter *dto.EventListFilter) ([]*domain.Event, int64, error) {
	return nil, 0, nil
}

func (r memEvents) ListUpcoming(ctx context.Context, tenantID string, from time.Time, limit int) ([]*domain.Event, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*domain.Event
	for _, e := range r.m.events {
		if e.TenantID == tenantID && e.StartsAt.After(from) {
			out = append(out, clone(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memEvents) Update(ctx context.Context, e *domain.Event) error {
	if existing, _ := r.GetByID(ctx, e.TenantID, e.ID); existing == nil {
		return repository.ErrNotUpdated
	}
	return r.Create(ctx, e)
}

func (r memEvents) Delete(ctx context.Context, tenantID, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if e, ok := r.m.events[id]; !ok || e.TenantID != tenantID {
		return repository.ErrNotUpdated
	}
	delete(r.m.events, id)
	return nil
}

type memRegistrations struct{ m *memStore }

func (r memRegistrations) Create(ctx context.Context, reg *domain.Registration) error {
	r.m.putRegistration(reg)
	return nil
}

func (r memRegistrations) GetByID(ctx context.Context, id string) (*domain.Registration, error) {
	return r.m.registration(id), nil
}

func (r memRegistrations) GetByIDForUpdate(ctx context.Context, id string) (*domain.Registration, error) {
	return r.m.registration(id), nil
}

func (r memRegistrations) Update(ctx context.Context, reg *domain.Registration) error {
	r.m.putRegistration(reg)
	return nil
}

func (r memRegistrations) List(ctx context.Context, filter *dto.RegistrationListFilter) ([]*domain.Registration, int, error) {
	return nil, 0, nil
}

func (r memRegistrations) CountSince(ctx context.Context, tenantID string, since time.Time) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for _, reg := range r.m.registrations {
		if reg.TenantID == tenantID && !reg.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r memRegistrations) SumQuantity(ctx context.Context, eventID string) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for _, reg := range r.m.registrations {
		if reg.EventID == eventID && reg.Status != domain.RegistrationStatusCancelled && reg.Status != domain.RegistrationStatusRefunded {
			n += int64(reg.Quantity)
		}
	}
	return n, nil
}

func (r memRegistrations) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Registration, error) {
	if err := r.m.fail("registrations.ListStalePending"); err != nil {
		return nil, err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*domain.Registration
	for _, reg := range r.m.registrations {
		if reg.Status == domain.RegistrationStatusPending && reg.PaymentStatus == domain.RegPaymentUnpaid && reg.CreatedAt.Before(cutoff) {
			out = append(out, clone(reg))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memSeats struct{ m *memStore }

func (r memSeats) CreateBatch(ctx context.Context, seats []*domain.Seat) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, seat := range seats {
		r.m.seats[seat.ID] = clone(seat)
	}
	return int64(len(seats)), nil
}

func (r memSeats) ListByFloorPlan(ctx context.Context, floorPlanID string) ([]*domain.Seat, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*domain.Seat
	for _, seat := range r.m.seats {
		if seat.FloorPlanID == floorPlanID {
			out = append(out, clone(seat))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}

func (r memSeats) GetByIDs(ctx context.Context, floorPlanID string, ids []string) ([]*domain.Seat, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*domain.Seat
	for _, id := range ids {
		seat := r.m.seats[id]
		if seat == nil || seat.FloorPlanID != floorPlanID {
			continue
		}
		c := clone(seat)
		if owner, ok := r.m.booked[id]; ok {
			c.Status = domain.SeatStatusBooked
			c.RegistrationID = owner
		}
		out = append(out, c)
	}
	return out, nil
}

func (r memSeats) Book(ctx context.Context, floorPlanID string, ids []string, registrationID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, id := range ids {
		if owner, ok := r.m.booked[id]; ok && owner != registrationID {
			return repository.ErrSeatsUnavailable
		}
	}
	for _, id := range ids {
		r.m.booked[id] = registrationID
	}
	return nil
}

func (r memSeats) ReleaseByRegistration(ctx context.Context, registrationID string) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for seat, owner := range r.m.booked {
		if owner == registrationID {
			delete(r.m.booked, seat)
			n++
		}
	}
	return n, nil
}

func (r memSeats) SetBlocked(ctx context.Context, floorPlanID string, ids []string, blocked bool) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for _, id := range ids {
		seat := r.m.seats[id]
		if seat == nil || seat.FloorPlanID != floorPlanID || seat.SetBlocked(blocked) != nil {
			continue
		}
		n++
	}
	return n, nil
}

type memFloorPlans struct{ m *memStore }

func (r memFloorPlans) Create(ctx context.Context, fp *domain.FloorPlan) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.floorPlans[fp.ID] = clone(fp)
	return nil
}

func (r memFloorPlans) GetByID(ctx context.Context, tenantID, id string) (*domain.FloorPlan, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	fp := r.m.floorPlans[id]
	if fp == nil || fp.TenantID != tenantID {
		return nil, nil
	}
	return clone(fp), nil
}

func (r memFloorPlans) ListByEvent(ctx context.Context, tenantID, eventID string) ([]*domain.FloorPlan, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*domain.FloorPlan
	for _, fp := range r.m.floorPlans {
		if fp.TenantID == tenantID && fp.EventID == eventID {
			out = append(out, clone(fp))
		}
	}
	return out, nil
}

func (r memFloorPlans) Update(ctx context.Context, fp *domain.FloorPlan) error {
	return r.Create(ctx, fp)
}

type memTaxes struct{ m *memStore }

func (r memTaxes) Create(ctx context.Context, ts *domain.TaxStructure) error {
	r.m.putTax(ts)
	return nil
}

func (r memTaxes) GetByID(ctx context.Context, tenantID, id string) (*domain.TaxStructure, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	ts := r.m.taxes[id]
	if ts == nil || ts.TenantID != tenantID {
		return nil, nil
	}
	return clone(ts), nil
}

func (r memTaxes) GetDefault(ctx context.Context, tenantID string) (*domain.TaxStructure, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, ts := range r.m.taxes {
		if ts.TenantID == tenantID && ts.IsDefault && ts.IsActive {
			return clone(ts), nil
		}
	}
	return nil, nil
}

func (r memTaxes) List(ctx context.Context, tenantID string, activeOnly bool) ([]*domain.TaxStructure, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*domain.TaxStructure
	for _, ts := range r.m.taxes {
		if ts.TenantID == tenantID && (!activeOnly || ts.IsActive) {
			out = append(out, clone(ts))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r memTaxes) Update(ctx context.Context, ts *domain.TaxStructure) error {
	r.m.putTax(ts)
	return nil
}

func (r memTaxes) SetDefault(ctx context.Context, tenantID, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, ts := range r.m.taxes {
		if ts.TenantID == tenantID {
			ts.IsDefault = ts.ID == id
		}
	}
	return nil
}

func (r memTaxes) Deactivate(ctx context.Context, tenantID, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if ts := r.m.taxes[id]; ts != nil && ts.TenantID == tenantID {
		ts.IsActive = false
		ts.IsDefault = false
	}
	return nil
}

type memInvoices struct{ m *memStore }

func (r memInvoices) Create(ctx context.Context, inv *domain.Invoice) error {
	if err := r.m.fail("invoices.Create"); err != nil {
		return err
	}
	r.m.putInvoice(inv)
	return nil
}

func (r memInvoices) GetByID(ctx context.Context, tenantID, id string) (*domain.Invoice, error) {
	inv := r.m.invoice(id)
	if inv == nil || (tenantID != "" && inv.TenantID != tenantID) {
		return nil, nil
	}
	return inv, nil
}

func (r memInvoices) GetByIDForUpdate(ctx context.Context, tenantID, id string) (*domain.Invoice, error) {
	return r.GetByID(ctx, tenantID, id)
}

func (r memInvoices) GetByRecipient(ctx context.Context, tenantID string, recipientType domain.RecipientType, recipientID string) (*domain.Invoice, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, inv := range r.m.invoices {
		if inv.TenantID == tenantID && inv.RecipientType == recipientType && inv.RecipientID == recipientID &&
			inv.Status != domain.InvoiceStatusVoid {
			return clone(inv), nil
		}
	}
	return nil, nil
}

func (r memInvoices) Update(ctx context.Context, inv *domain.Invoice) error {
	if err := r.m.fail("invoices.Update"); err != nil {
		return err
	}
	r.m.putInvoice(inv)
	return nil
}

func (r memInvoices) List(ctx context.Context, filter *dto.InvoiceListFilter) ([]*domain.Invoice, int, error) {
	var out []*domain.Invoice
	for _, inv := range r.m.allInvoices() {
		if inv.TenantID == filter.TenantID {
			out = append(out, inv)
		}
	}
	return out, len(out), nil
}

func (r memInvoices) CountByStatus(ctx context.Context, tenantID string, status domain.InvoiceStatus) (int64, error) {
	var n int64
	for _, inv := range r.m.allInvoices() {
		if inv.TenantID == tenantID && inv.Status == status {
			n++
		}
	}
	return n, nil
}

func (r memInvoices) Summary(ctx context.Context, tenantID string) (*dto.InvoiceSummary, error) {
	if err := r.m.fail("invoices.Summary"); err != nil {
		return nil, err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	sum := &dto.InvoiceSummary{CountsByStatus: map[domain.InvoiceStatus]int64{}}
	for _, inv := range r.m.invoices {
		if inv.TenantID == tenantID {
			sum.CountsByStatus[inv.Status]++
		}
	}
	return sum, nil
}

func (r memInvoices) NextLegacyNumber(ctx context.Context) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.legacySeq++
	return r.m.legacySeq, nil
}

func (r memInvoices) NextTenantSequence(ctx context.Context, tenantID string, year int) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.tenantSeq[tenantID]++
	return r.m.tenantSeq[tenantID], nil
}

type memPayments struct{ m *memStore }

func (r memPayments) UpsertByGatewayID(ctx context.Context, p *domain.PaymentRecord) (*domain.PaymentRecord, bool, error) {
	if err := r.m.fail("payments.UpsertByGatewayID"); err != nil {
		return nil, false, err
	}
	if existing := r.m.paymentByGatewayID(p.Gateway, p.GatewayPaymentID); existing != nil {
		return existing, false, nil
	}
	r.m.putPayment(p)
	return clone(p), true, nil
}

func (r memPayments) Create(ctx context.Context, p *domain.PaymentRecord) error {
	if existing := r.m.paymentByGatewayID(p.Gateway, p.GatewayPaymentID); existing != nil {
		return repository.ErrDuplicate
	}
	r.m.putPayment(p)
	return nil
}

func (r memPayments) GetByID(ctx context.Context, id string) (*domain.PaymentRecord, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return clone(r.m.payments[id]), nil
}

func (r memPayments) GetByGatewayID(ctx context.Context, gw domain.Gateway, gatewayPaymentID string) (*domain.PaymentRecord, error) {
	return r.m.paymentByGatewayID(gw, gatewayPaymentID), nil
}

func (r memPayments) GetByGatewayOrderID(ctx context.Context, gw domain.Gateway, orderID string) (*domain.PaymentRecord, error) {
	for _, p := range r.m.allPayments() {
		if p.Gateway == gw && p.GatewayOrderID == orderID {
			return p, nil
		}
	}
	return nil, nil
}

func (r memPayments) Update(ctx context.Context, p *domain.PaymentRecord) error {
	if err := r.m.fail("payments.Update"); err != nil {
		return err
	}
	r.m.putPayment(p)
	return nil
}

func (r memPayments) List(ctx context.Context, filter *dto.PaymentListFilter) ([]*domain.PaymentRecord, int, error) {
	var out []*domain.PaymentRecord
	for _, p := range r.m.allPayments() {
		if p.TenantID != filter.TenantID || (filter.InvoiceID != "" && p.InvoiceID != filter.InvoiceID) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, len(out), nil
}

func (r memPayments) CountByStatus(ctx context.Context, tenantID string, status domain.PaymentStatus) (int64, error) {
	var n int64
	for _, p := range r.m.allPayments() {
		if p.TenantID == tenantID && p.Status == status {
			n++
		}
	}
	return n, nil
}

func (r memPayments) HasLivePayment(ctx context.Context, registrationID, invoiceID string) (bool, error) {
	for _, p := range r.m.allPayments() {
		if p.Status == domain.PaymentStatusFailed {
			continue
		}
		if p.RegistrationID == registrationID || (invoiceID != "" && p.InvoiceID == invoiceID) {
			return true, nil
		}
	}
	return false, nil
}

func (r memPayments) CreateRefund(ctx context.Context, rf *domain.Refund) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.refunds[rf.GatewayRefundID]; ok {
		return false, nil
	}
	r.m.refunds[rf.GatewayRefundID] = clone(rf)
	return true, nil
}

func (r memPayments) ListRefunds(ctx context.Context, paymentID string) ([]*domain.Refund, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*domain.Refund
	for _, rf := range r.m.refunds {
		if rf.PaymentID == paymentID {
			out = append(out, clone(rf))
		}
	}
	return out, nil
}

func (r memPayments) CreateDispute(ctx context.Context, d *domain.Dispute) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.disputes[d.GatewayDisputeID]; ok {
		return false, nil
	}
	r.m.disputes[d.GatewayDisputeID] = clone(d)
	return true, nil
}

func (r memPayments) GetDisputeByGatewayID(ctx context.Context, gatewayDisputeID string) (*domain.Dispute, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return clone(r.m.disputes[gatewayDisputeID]), nil
}

func (r memPayments) UpdateDispute(ctx context.Context, d *domain.Dispute) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.disputes[d.GatewayDisputeID] = clone(d)
	return nil
}

type memWebhookLogs struct{ m *memStore }

func (r memWebhookLogs) Record(ctx context.Context, l *domain.WebhookLog) (*domain.WebhookLog, bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	key := string(l.Gateway) + "/" + l.EventID
	if existing, ok := r.m.logs[key]; ok {
		return clone(existing), false, nil
	}
	r.m.logs[key] = clone(l)
	return clone(l), true, nil
}

func (r memWebhookLogs) GetByID(ctx context.Context, id string) (*domain.WebhookLog, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, l := range r.m.logs {
		if l.ID == id {
			return clone(l), nil
		}
	}
	return nil, nil
}

func (r memWebhookLogs) save(l *domain.WebhookLog) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.logs[string(l.Gateway)+"/"+l.EventID] = clone(l)
	return nil
}

func (r memWebhookLogs) MarkProcessed(ctx context.Context, l *domain.WebhookLog) error {
	return r.save(l)
}

func (r memWebhookLogs) MarkFailed(ctx context.Context, l *domain.WebhookLog) error {
	return r.save(l)
}

func (r memWebhookLogs) List(ctx context.Context, filter *dto.WebhookLogFilter) ([]*domain.WebhookLog, int, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*domain.WebhookLog
	for _, l := range r.m.logs {
		if filter.Processed != nil && l.Processed != *filter.Processed {
			continue
		}
		if filter.TenantID == "" || l.TenantID == filter.TenantID {
			out = append(out, clone(l))
		}
	}
	return out, len(out), nil
}

func (r memWebhookLogs) ListUnprocessed(ctx context.Context, limit int) ([]*domain.WebhookLog, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*domain.WebhookLog
	for _, l := range r.m.logs {
		if !l.Processed {
			out = append(out, clone(l))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.Before(out[j].ReceivedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memUsers struct{ m *memStore }

func (r memUsers) Create(ctx context.Context, u *domain.User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, other := range r.m.users {
		if other.Email == u.Email {
			return repository.ErrDuplicate
		}
	}
	r.m.users[u.ID] = clone(u)
	return nil
}

func (r memUsers) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return clone(r.m.users[id]), nil
}

func (r memUsers) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, u := range r.m.users {
		if u.Email == email {
			return clone(u), nil
		}
	}
	return nil, nil
}

func (r memUsers) ListByTenant(ctx context.Context, tenantID string) ([]*domain.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*domain.User
	for _, u := range r.m.users {
		if u.TenantID == tenantID {
			out = append(out, clone(u))
		}
	}
	return out, nil
}

func (r memUsers) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u, ok := r.m.users[id]
	if !ok {
		return repository.ErrNotUpdated
	}
	u.LastLoginAt = &at
	return nil
}

type memPartners struct{ m *memStore }

func (r memPartners) CreateSponsor(ctx context.Context, sp *domain.Sponsor) error {
	return r.UpdateSponsor(ctx, sp)
}

func (r memPartners) GetSponsor(ctx context.Context, tenantID, id string) (*domain.Sponsor, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if sp := r.m.sponsors[id]; sp != nil && sp.TenantID == tenantID {
		return clone(sp), nil
	}
	return nil, nil
}

func (r memPartners) ListSponsors(ctx context.Context, filter *dto.PartnerListFilter) ([]*domain.Sponsor, int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*domain.Sponsor
	for _, sp := range r.m.sponsors {
		if sp.TenantID == filter.TenantID {
			out = append(out, clone(sp))
		}
	}
	return out, int64(len(out)), nil
}

func (r memPartners) UpdateSponsor(ctx context.Context, sp *domain.Sponsor) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.sponsors[sp.ID] = clone(sp)
	return nil
}

func (r memPartners) CreateVendor(ctx context.Context, v *domain.Vendor) error {
	return r.UpdateVendor(ctx, v)
}

func (r memPartners) GetVendor(ctx context.Context, tenantID, id string) (*domain.Vendor, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if v := r.m.vendors[id]; v != nil && v.TenantID == tenantID {
		return clone(v), nil
	}
	return nil, nil
}

func (r memPartners) ListVendors(ctx context.Context, filter *dto.PartnerListFilter) ([]*domain.Vendor, int64, error) {
	return nil, 0, nil
}

func (r memPartners) UpdateVendor(ctx context.Context, v *domain.Vendor) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.vendors[v.ID] = clone(v)
	return nil
}

func (r memPartners) CreateExhibitor(ctx context.Context, ex *domain.Exhibitor) error {
	return r.UpdateExhibitor(ctx, ex)
}

func (r memPartners) GetExhibitor(ctx context.Context, tenantID, id string) (*domain.Exhibitor, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if ex := r.m.exhibitors[id]; ex != nil && ex.TenantID == tenantID {
		return clone(ex), nil
	}
	return nil, nil
}

func (r memPartners) ListExhibitors(ctx context.Context, filter *dto.PartnerListFilter) ([]*domain.Exhibitor, int64, error) {
	return nil, 0, nil
}

func (r memPartners) UpdateExhibitor(ctx context.Context, ex *domain.Exhibitor) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.exhibitors[ex.ID] = clone(ex)
	return nil
}

func (r memPartners) Delete(ctx context.Context, kind domain.RecipientType, tenantID, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	switch kind {
	case domain.RecipientSponsor:
		delete(r.m.sponsors, id)
	case domain.RecipientVendor:
		delete(r.m.vendors, id)
	case domain.RecipientExhibitor:
		delete(r.m.exhibitors, id)
	}
	return nil
}

type memSignatures struct{ m *memStore }

func (r memSignatures) Create(ctx context.Context, sr *domain.SignatureRequest) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.signatures[sr.ID] = clone(sr)
	return nil
}

func (r memSignatures) GetByID(ctx context.Context, tenantID, id string) (*domain.SignatureRequest, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if sr := r.m.signatures[id]; sr != nil && sr.TenantID == tenantID {
		return clone(sr), nil
	}
	return nil, nil
}

func (r memSignatures) GetByEnvelopeID(ctx context.Context, envelopeID string) (*domain.SignatureRequest, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, sr := range r.m.signatures {
		if envelopeID != "" && sr.ProviderEnvelopeID == envelopeID {
			return clone(sr), nil
		}
	}
	return nil, nil
}

func (r memSignatures) List(ctx context.Context, filter *dto.SignatureListFilter) ([]*domain.SignatureRequest, int64, error) {
	return nil, 0, nil
}

// SaveTransition rejects a transition whose from-status no longer matches the stored row
func (r memSignatures) SaveTransition(ctx context.Context, sr *domain.SignatureRequest, t *domain.SignatureTransition) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	stored := r.m.signatures[sr.ID]
	if stored == nil || stored.Status != t.FromStatus {
		return repository.ErrNotUpdated
	}
	r.m.signatures[sr.ID] = clone(sr)
	r.m.transitions = append(r.m.transitions, clone(t))
	return nil
}

func (r memSignatures) UpdateDetails(ctx context.Context, sr *domain.SignatureRequest) error {
	return r.Create(ctx, sr)
}

func (r memSignatures) History(ctx context.Context, requestID string) ([]*domain.SignatureTransition, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*domain.SignatureTransition
	for _, t := range r.m.transitions {
		if t.SignatureRequestID == requestID {
			out = append(out, clone(t))
		}
	}
	return out, nil
}

// stubHolds is a SeatHolder backed by a map of seat ID to hold token
type stubHolds struct {
	holders  map[string]string
	released []string
}

func (h *stubHolds) HoldSeats(ctx context.Context, floorPlanID, holder string, seatIDs []string, ttl time.Duration, maxPerHolder int) (*redis.HoldResult, error) {
	for _, id := range seatIDs {
		if h.holders[id] != "" && h.holders[id] != holder {
			return &redis.HoldResult{OK: false, Code: "SEAT_HELD"}, nil
		}
	}
	for _, id := range seatIDs {
		h.holders[id] = holder
	}
	return &redis.HoldResult{OK: true, Code: "OK"}, nil
}

func (h *stubHolds) ReleaseSeats(ctx context.Context, floorPlanID, holder string, seatIDs []string) (*redis.HoldResult, error) {
	for _, id := range seatIDs {
		if h.holders[id] == holder {
			delete(h.holders, id)
			h.released = append(h.released, id)
		}
	}
	return &redis.HoldResult{OK: true, Code: "OK"}, nil
}

func (h *stubHolds) SeatHolders(ctx context.Context, floorPlanID string, seatIDs []string) (map[string]string, error) {
	out := make(map[string]string, len(seatIDs))
	for _, id := range seatIDs {
		if holder, ok := h.holders[id]; ok {
			out[id] = holder
		}
	}
	return out, nil
}

// passTx runs fn directly. Writes are not rolled back.
type passTx struct{ calls int }

func (t *passTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	return fn(ctx)
}

type stubLocker struct {
	acquired bool
	err      error
	released []string
}

func (l *stubLocker) AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	return l.acquired, l.err
}

func (l *stubLocker) ReleaseLock(ctx context.Context, key, token string) error {
	l.released = append(l.released, key)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*dto.FinanceEvent
}

func (p *recordingPublisher) PublishFinanceEvent(ctx context.Context, evt *dto.FinanceEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType)
	}
	return out
}

type recordingNotifier struct {
	mu   sync.Mutex
	jobs []*notification.Job
}

func (n *recordingNotifier) Notify(ctx context.Context, job *notification.Job) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.jobs = append(n.jobs, job)
	return nil
}

func (n *recordingNotifier) templates() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.jobs))
	for _, j := range n.jobs {
		out = append(out, j.Template)
	}
	return out
}

// stubProvider is a payment gateway that records refunds.
// onRefund runs before the refund is acknowledged.
type stubProvider struct {
	name     domain.Gateway
	refunds  []*gateway.RefundRequest
	created  []*gateway.CreatePaymentRequest
	onRefund func(req *gateway.RefundRequest)
}

func (p *stubProvider) Name() domain.Gateway { return p.name }

func (p *stubProvider) CreatePayment(ctx context.Context, req *gateway.CreatePaymentRequest) (*gateway.CreatePaymentResponse, error) {
	p.created = append(p.created, req)
	return &gateway.CreatePaymentResponse{
		Gateway:      p.name,
		PaymentID:    "pi_" + req.Receipt,
		ClientSecret: "secret",
		Status:       "requires_payment_method",
	}, nil
}

func (p *stubProvider) Refund(ctx context.Context, req *gateway.RefundRequest) (*gateway.RefundResponse, error) {
	p.refunds = append(p.refunds, req)
	if p.onRefund != nil {
		p.onRefund(req)
	}
	return &gateway.RefundResponse{RefundID: "re_stub", Status: "succeeded", Amount: req.Amount}, nil
}

func (p *stubProvider) VerifyWebhook(payload []byte, header http.Header) (string, error) {
	return "", gateway.ErrInvalidSignature
}

func (p *stubProvider) ParseWebhook(eventID string, payload []byte) (*gateway.WebhookEvent, error) {
	return nil, gateway.ErrMalformedPayload
}

// Fixtures

func legacyTenant(id string) *domain.Tenant {
	return &domain.Tenant{
		ID:               id,
		Name:             "Acme Events",
		Slug:             "acme-events",
		IsActive:         true,
		FinanceMode:      domain.FinanceModeLegacy,
		DefaultCurrency:  "USD",
		LegacyTaxRateBps: 1000,
		Locale:           "en-US",
	}
}

func tenantModeTenant(id string) *domain.Tenant {
	t := legacyTenant(id)
	t.FinanceMode = domain.FinanceModeTenant
	t.InvoicePrefix = "ACME"
	return t
}

func pendingRegistration(id, tenantID string, amount int64) *domain.Registration {
	return &domain.Registration{
		ID:            id,
		TenantID:      tenantID,
		EventID:       "event-1",
		AttendeeName:  "Ada Lovelace",
		Email:         "ada@example.com",
		Quantity:      1,
		Amount:        amount,
		Currency:      "USD",
		Status:        domain.RegistrationStatusPending,
		PaymentStatus: domain.RegPaymentUnpaid,
		CreatedAt:     time.Now(),
	}
}

// issuedInvoice builds an issued, untaxed invoice for total
func issuedInvoice(tenantID string, mode domain.FinanceMode, total int64) *domain.Invoice {
	inv, err := domain.NewInvoice(tenantID, mode, domain.RecipientSponsor, "sponsor-1", "USD",
		[]domain.LineItem{{Description: "Gold sponsorship", Quantity: 1, UnitPrice: total}}, nil)
	if err != nil {
		panic(err)
	}
	inv.BillToName = "Globex"
	inv.BillToEmail = "billing@globex.test"
	if err := inv.Issue("ACME-2026-00001", nil); err != nil {
		panic(err)
	}
	return inv
}
