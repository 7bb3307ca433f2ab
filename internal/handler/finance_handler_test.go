package handler

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/eventdesk/internal/domain"
	"github.com/prohmpiriya/eventdesk/internal/dto"
	"github.com/prohmpiriya/eventdesk/internal/service"
	"github.com/prohmpiriya/eventdesk/pkg/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFinanceRouter(svc service.FinanceModeService) *gin.Engine {
	h := NewFinanceHandler(svc)
	r := gin.New()
	r.POST("/finance/mode/migrate", withClaims("tenant-1", "user-1", string(domain.RoleTenantAdmin)), h.Migrate)
	return r
}

func TestFinanceHandler_Migrate(t *testing.T) {
	t.Run("blocked lists failed checks", func(t *testing.T) {
		svc := &fakeFinanceService{
			migrate: func(tenantID, actorID string, dryRun bool) (*dto.MigrationReport, error) {
				return &dto.MigrationReport{
					TenantID: tenantID,
					FromMode: domain.FinanceModeLegacy,
					ToMode:   domain.FinanceModeTenant,
					Checks: []dto.FinanceModeCheck{
						{Name: "default_tax_structure", Passed: false, Message: "no default tax structure"},
						{Name: "draft_invoices", Passed: true},
						{Name: "pending_payments", Passed: false, Message: "2 payments pending"},
					},
				}, fmt.Errorf("%w: 2 checks failed", service.ErrMigrationBlocked)
			},
		}

		w := httptest.NewRecorder()
		newFinanceRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/finance/mode/migrate", nil))

		require.Equal(t, http.StatusPreconditionFailed, w.Code)
		body := decodeResponse(t, w)
		require.NotNil(t, body.Error)
		assert.Equal(t, response.ErrCodeFinanceModeLocked, body.Error.Code)
		assert.Equal(t, map[string]string{
			"default_tax_structure": "no default tax structure",
			"pending_payments":      "2 payments pending",
		}, body.Error.Details)
	})

	t.Run("dry run passes flag and actor", func(t *testing.T) {
		var gotDry bool
		var gotActor string
		svc := &fakeFinanceService{
			migrate: func(tenantID, actorID string, dryRun bool) (*dto.MigrationReport, error) {
				gotDry, gotActor = dryRun, actorID
				return &dto.MigrationReport{TenantID: tenantID, DryRun: dryRun}, nil
			},
		}

		req := httptest.NewRequest(http.MethodPost, "/finance/mode/migrate", strings.NewReader(`{"dry_run":true}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		newFinanceRouter(svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, gotDry)
		assert.Equal(t, "user-1", gotActor)
	})

	t.Run("already migrated", func(t *testing.T) {
		svc := &fakeFinanceService{
			migrate: func(string, string, bool) (*dto.MigrationReport, error) {
				return nil, domain.ErrFinanceModeUnchanged
			},
		}

		w := httptest.NewRecorder()
		newFinanceRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/finance/mode/migrate", nil))

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, response.ErrCodeInvalidTransition, decodeResponse(t, w).Error.Code)
	})
}
