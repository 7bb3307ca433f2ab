package service

import (
	"context"
	"time"

	"github.com/prohmpiriya/eventdesk/internal/dto"
	"golang.org/x/sync/errgroup"
)

// DashboardService assembles the tenant overview
type DashboardService interface {
	Summary(ctx context.Context, tenantID string) (*dto.DashboardSummary, error)
}

type dashboardService struct {
	repos Repositories
	now   func() time.Time
}

// NewDashboardService creates a new DashboardService
func NewDashboardService(repos Repositories) DashboardService {
	return &dashboardService{repos: repos, now: time.Now}
}

func (s *dashboardService) Summary(ctx context.Context, tenantID string) (*dto.DashboardSummary, error) {
	tenant, err := loadTenant(ctx, s.repos.Tenants, tenantID)
	if err != nil {
		return nil, err
	}
	out := &dto.DashboardSummary{Tenant: tenant}
	now := s.now()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sum, err := s.repos.Invoices.Summary(gctx, tenantID)
		if err == nil && sum != nil {
			out.Invoices = *sum
		}
		return err
	})
	g.Go(func() error {
		filter := &dto.PaymentListFilter{TenantID: tenantID}
		filter.Limit = 10
		filter.Normalize()
		payments, _, err := s.repos.Payments.List(gctx, filter)
		out.RecentPayments = payments
		return err
	})
	g.Go(func() error {
		unprocessed := false
		filter := &dto.WebhookLogFilter{TenantID: tenantID, Processed: &unprocessed}
		filter.Limit = 10
		filter.Normalize()
		logs, _, err := s.repos.WebhookLogs.List(gctx, filter)
		out.UnprocessedHooks = logs
		return err
	})
	g.Go(func() error {
		events, err := s.repos.Events.ListUpcoming(gctx, tenantID, now, 5)
		out.UpcomingEvents = events
		return err
	})
	g.Go(func() error {
		since := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		n, err := s.repos.Registrations.CountSince(gctx, tenantID, since)
		out.RegistrationsToday = n
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
