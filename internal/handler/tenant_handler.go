package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/eventdesk/internal/domain"
	"github.com/prohmpiriya/eventdesk/internal/dto"
	"github.com/prohmpiriya/eventdesk/internal/service"
	"github.com/prohmpiriya/eventdesk/pkg/response"
)

// TenantHandler is the super admin console over every organisation
type TenantHandler struct {
	tenantService  service.TenantService
	financeService service.FinanceModeService
}

// NewTenantHandler creates a new TenantHandler. financeService may be nil,
// in which case the finance overview route answers 503.
func NewTenantHandler(tenantService service.TenantService, financeService service.FinanceModeService) *TenantHandler {
	return &TenantHandler{tenantService: tenantService, financeService: financeService}
}

// tenantFinanceOverview is a tenant with its finance mode and migration history
type tenantFinanceOverview struct {
	Tenant  *dto.TenantResponse            `json:"tenant"`
	Mode    *dto.FinanceModeResponse       `json:"mode"`
	History []*domain.FinanceModeMigration `json:"history"`
}

// Create handles POST /tenants. New tenants start in the configured default finance mode.
func (h *TenantHandler) Create(c *gin.Context) {
	var req dto.CreateTenantRequest
	if !bindJSON(c, &req) {
		return
	}
	tenant, err := h.tenantService.Create(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(tenant))
}

func (h *TenantHandler) GetByID(c *gin.Context) {
	tenant, err := h.tenantService.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(tenant))
}

func (h *TenantHandler) GetBySlug(c *gin.Context) {
	tenant, err := h.tenantService.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(tenant))
}

// List handles GET /tenants?is_active=&search=&page=
func (h *TenantHandler) List(c *gin.Context) {
	var filter dto.TenantListFilter
	if !bindQuery(c, &filter) {
		return
	}
	tenants, total, err := h.tenantService.List(c.Request.Context(), &filter)
	if err != nil {
		handleError(c, err)
		return
	}
	paginated(c, tenants, filter.Pagination, int64(total))
}

// Update handles PUT /tenants/:id. Finance mode only changes through migration.
func (h *TenantHandler) Update(c *gin.Context) {
	var req dto.UpdateTenantRequest
	if !bindJSON(c, &req) {
		return
	}
	if ok, msg := req.Validate(); !ok {
		c.JSON(http.StatusBadRequest, response.Error(response.ErrCodeValidationFailed, msg))
		return
	}
	tenant, err := h.tenantService.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(tenant))
}

// Delete soft-deletes a tenant
func (h *TenantHandler) Delete(c *gin.Context) {
	if err := h.tenantService.Delete(c.Request.Context(), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Finance handles GET /tenants/:id/finance
func (h *TenantHandler) Finance(c *gin.Context) {
	if h.financeService == nil {
		c.JSON(http.StatusServiceUnavailable, response.ServiceUnavailable(""))
		return
	}
	ctx := c.Request.Context()
	tenant, err := h.tenantService.GetByID(ctx, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	mode, err := h.financeService.Get(ctx, tenant.ID)
	if err != nil {
		handleError(c, err)
		return
	}
	history, err := h.financeService.History(ctx, tenant.ID)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(tenantFinanceOverview{Tenant: tenant, Mode: mode, History: history}))
}
