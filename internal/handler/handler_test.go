package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/eventdesk/internal/domain"
	"github.com/prohmpiriya/eventdesk/internal/dto"
	"github.com/prohmpiriya/eventdesk/internal/service"
	"github.com/prohmpiriya/eventdesk/pkg/middleware"
	"github.com/prohmpiriya/eventdesk/pkg/response"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// withClaims stands in for the JWT middleware
func withClaims(tenant, user, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tenant != "" {
			c.Set(middleware.ContextKeyTenantID, tenant)
		}
		c.Set(middleware.ContextKeyUserID, user)
		c.Set(middleware.ContextKeyRole, role)
		c.Next()
	}
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var body response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

type fakeWebhookService struct {
	ingest  func(gw domain.Gateway, payload []byte, header http.Header) (*service.ReconcileResult, error)
	list    func(filter *dto.WebhookLogFilter) ([]*domain.WebhookLog, int, error)
	getByID func(tenantID, id string) (*domain.WebhookLog, error)
	replay  func(id string) (*service.ReconcileResult, error)
}

func (f *fakeWebhookService) Ingest(_ context.Context, gw domain.Gateway, payload []byte, header http.Header) (*service.ReconcileResult, error) {
	return f.ingest(gw, payload, header)
}

func (f *fakeWebhookService) List(_ context.Context, filter *dto.WebhookLogFilter) ([]*domain.WebhookLog, int, error) {
	filter.Normalize()
	if f.list == nil {
		return nil, 0, nil
	}
	return f.list(filter)
}

func (f *fakeWebhookService) GetByID(_ context.Context, tenantID, id string) (*domain.WebhookLog, error) {
	return f.getByID(tenantID, id)
}

func (f *fakeWebhookService) Replay(_ context.Context, id string) (*service.ReconcileResult, error) {
	return f.replay(id)
}

func (f *fakeWebhookService) ReplayUnprocessed(context.Context, int) ([]*service.ReconcileResult, error) {
	return nil, nil
}

type fakeFinanceService struct {
	migrate func(tenantID, actorID string, dryRun bool) (*dto.MigrationReport, error)
}

func (f *fakeFinanceService) Get(_ context.Context, tenantID string) (*dto.FinanceModeResponse, error) {
	return &dto.FinanceModeResponse{TenantID: tenantID, Mode: domain.FinanceModeLegacy}, nil
}

func (f *fakeFinanceService) Migrate(_ context.Context, tenantID, actorID string, dryRun bool) (*dto.MigrationReport, error) {
	return f.migrate(tenantID, actorID, dryRun)
}

func (f *fakeFinanceService) History(context.Context, string) ([]*domain.FinanceModeMigration, error) {
	return nil, nil
}
