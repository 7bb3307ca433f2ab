package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/eventdesk/internal/dto"
	"github.com/prohmpiriya/eventdesk/internal/service"
	"github.com/prohmpiriya/eventdesk/pkg/middleware"
	"github.com/prohmpiriya/eventdesk/pkg/response"
	"github.com/prohmpiriya/eventdesk/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// FinanceHandler exposes the tenant's finance mode and its migration gate
type FinanceHandler struct {
	financeService service.FinanceModeService
}

// NewFinanceHandler creates a new FinanceHandler
func NewFinanceHandler(financeService service.FinanceModeService) *FinanceHandler {
	return &FinanceHandler{financeService: financeService}
}

// GetMode handles GET /finance/mode
func (h *FinanceHandler) GetMode(c *gin.Context) {
	mode, err := h.financeService.Get(c.Request.Context(), tenantID(c))
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(mode))
}

// History handles GET /finance/mode/history
func (h *FinanceHandler) History(c *gin.Context) {
	history, err := h.financeService.History(c.Request.Context(), tenantID(c))
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(history))
}

// Migrate handles POST /finance/mode/migrate.
// A blocked migration answers 412 with the failed checks as details.
func (h *FinanceHandler) Migrate(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.finance.migrate")
	defer span.End()

	var req dto.MigrateFinanceModeRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	span.SetAttributes(
		attribute.String("tenant_id", tenantID(c)),
		attribute.Bool("dry_run", req.DryRun),
	)

	middleware.AddAuditMetadata(c, "dry_run", req.DryRun)
	report, err := h.financeService.Migrate(ctx, tenantID(c), userID(c), req.DryRun)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, service.ErrMigrationBlocked) && report != nil {
			details := make(map[string]string, len(report.Checks))
			for _, check := range report.Checks {
				if !check.Passed {
					details[check.Name] = check.Message
				}
			}
			c.JSON(http.StatusPreconditionFailed, response.ErrorWithDetails(response.ErrCodeFinanceModeLocked, err.Error(), details))
			return
		}
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(report))
}
