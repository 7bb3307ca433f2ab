package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/eventdesk/internal/dto"
	"github.com/prohmpiriya/eventdesk/internal/service"
	"github.com/prohmpiriya/eventdesk/pkg/response"
)

// TaxHandler handles tax structures
type TaxHandler struct {
	taxService service.TaxService
}

// NewTaxHandler creates a new TaxHandler
func NewTaxHandler(taxService service.TaxService) *TaxHandler {
	return &TaxHandler{taxService: taxService}
}

// Create handles POST /tax-structures
func (h *TaxHandler) Create(c *gin.Context) {
	var req dto.TaxStructureRequest
	if !bindJSON(c, &req) {
		return
	}

	ts, err := h.taxService.Create(c.Request.Context(), tenantID(c), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(ts))
}

// List handles GET /tax-structures?active=true
func (h *TaxHandler) List(c *gin.Context) {
	activeOnly := c.Query("active") == "true"

	structures, err := h.taxService.List(c.Request.Context(), tenantID(c), activeOnly)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(structures))
}

// GetByID handles GET /tax-structures/:id
func (h *TaxHandler) GetByID(c *gin.Context) {
	ts, err := h.taxService.GetByID(c.Request.Context(), tenantID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(ts))
}

// Update handles PUT /tax-structures/:id
func (h *TaxHandler) Update(c *gin.Context) {
	var req dto.TaxStructureRequest
	if !bindJSON(c, &req) {
		return
	}

	ts, err := h.taxService.Update(c.Request.Context(), tenantID(c), c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(ts))
}

// SetDefault handles POST /tax-structures/:id/default
func (h *TaxHandler) SetDefault(c *gin.Context) {
	ts, err := h.taxService.SetDefault(c.Request.Context(), tenantID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(ts))
}

// Deactivate handles DELETE /tax-structures/:id
func (h *TaxHandler) Deactivate(c *gin.Context) {
	if err := h.taxService.Deactivate(c.Request.Context(), tenantID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(gin.H{"message": "Tax structure deactivated"}))
}

// Preview handles POST /tax-structures/preview
func (h *TaxHandler) Preview(c *gin.Context) {
	var req dto.TaxPreviewRequest
	if !bindJSON(c, &req) {
		return
	}

	breakdown, err := h.taxService.Preview(c.Request.Context(), tenantID(c), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(breakdown))
}
