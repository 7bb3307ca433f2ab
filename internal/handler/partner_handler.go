package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/eventdesk/internal/domain"
	"github.com/prohmpiriya/eventdesk/internal/dto"
	"github.com/prohmpiriya/eventdesk/internal/service"
	"github.com/prohmpiriya/eventdesk/pkg/response"
)

// PartnerHandler handles sponsors, vendors and exhibitors
type PartnerHandler struct {
	partnerService service.PartnerService
}

// NewPartnerHandler creates a new PartnerHandler
func NewPartnerHandler(partnerService service.PartnerService) *PartnerHandler {
	return &PartnerHandler{partnerService: partnerService}
}

func createPartner[Req any, T any](c *gin.Context, create func(ctx context.Context, tenantID string, req *Req) (T, error)) {
	var req Req
	if !bindJSON(c, &req) {
		return
	}
	result, err := create(c.Request.Context(), tenantID(c), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(result))
}

func updatePartner[Req any, T any](c *gin.Context, update func(ctx context.Context, tenantID, id string, req *Req) (T, error)) {
	var req Req
	if !bindJSON(c, &req) {
		return
	}
	result, err := update(c.Request.Context(), tenantID(c), c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(result))
}

func getPartner[T any](c *gin.Context, get func(ctx context.Context, tenantID, id string) (T, error)) {
	result, err := get(c.Request.Context(), tenantID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(result))
}

func listPartners[T any](c *gin.Context, list func(ctx context.Context, filter *dto.PartnerListFilter) ([]T, int64, error)) {
	var filter dto.PartnerListFilter
	if !bindQuery(c, &filter) {
		return
	}
	filter.TenantID = tenantID(c)
	items, total, err := list(c.Request.Context(), &filter)
	if err != nil {
		handleError(c, err)
		return
	}
	paginated(c, items, filter.Pagination, total)
}

func setPartnerStatus[T any](c *gin.Context, set func(ctx context.Context, tenantID, id, status string) (T, error)) {
	var req dto.StatusRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := set(c.Request.Context(), tenantID(c), c.Param("id"), req.Status)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(result))
}

// CreateSponsor handles POST /sponsors
func (h *PartnerHandler) CreateSponsor(c *gin.Context) {
	createPartner(c, h.partnerService.CreateSponsor)
}

// GetSponsor handles GET /sponsors/:id
func (h *PartnerHandler) GetSponsor(c *gin.Context) { getPartner(c, h.partnerService.GetSponsor) }

// ListSponsors handles GET /sponsors
func (h *PartnerHandler) ListSponsors(c *gin.Context) { listPartners(c, h.partnerService.ListSponsors) }

// UpdateSponsor handles PUT /sponsors/:id
func (h *PartnerHandler) UpdateSponsor(c *gin.Context) {
	updatePartner(c, h.partnerService.UpdateSponsor)
}

// SetSponsorStatus handles POST /sponsors/:id/status
func (h *PartnerHandler) SetSponsorStatus(c *gin.Context) {
	setPartnerStatus(c, h.partnerService.SetSponsorStatus)
}

func (h *PartnerHandler) CreateVendor(c *gin.Context) { createPartner(c, h.partnerService.CreateVendor) }

func (h *PartnerHandler) GetVendor(c *gin.Context) { getPartner(c, h.partnerService.GetVendor) }

func (h *PartnerHandler) ListVendors(c *gin.Context) { listPartners(c, h.partnerService.ListVendors) }

func (h *PartnerHandler) UpdateVendor(c *gin.Context) { updatePartner(c, h.partnerService.UpdateVendor) }

func (h *PartnerHandler) SetVendorStatus(c *gin.Context) {
	setPartnerStatus(c, h.partnerService.SetVendorStatus)
}

func (h *PartnerHandler) CreateExhibitor(c *gin.Context) {
	createPartner(c, h.partnerService.CreateExhibitor)
}

func (h *PartnerHandler) GetExhibitor(c *gin.Context) { getPartner(c, h.partnerService.GetExhibitor) }

func (h *PartnerHandler) ListExhibitors(c *gin.Context) {
	listPartners(c, h.partnerService.ListExhibitors)
}

func (h *PartnerHandler) UpdateExhibitor(c *gin.Context) {
	updatePartner(c, h.partnerService.UpdateExhibitor)
}

func (h *PartnerHandler) SetExhibitorStatus(c *gin.Context) {
	setPartnerStatus(c, h.partnerService.SetExhibitorStatus)
}

// Delete returns the DELETE /<kind>s/:id handler
func (h *PartnerHandler) Delete(kind domain.RecipientType) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.partnerService.Delete(c.Request.Context(), kind, tenantID(c), c.Param("id")); err != nil {
			handleError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.Success(gin.H{"message": string(kind) + " deleted"}))
	}
}

// CreateInvoice returns the POST /<kind>s/:id/invoice handler
func (h *PartnerHandler) CreateInvoice(kind domain.RecipientType) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req dto.PartnerInvoiceRequest
		if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
			return
		}
		inv, err := h.partnerService.CreateInvoice(c.Request.Context(), kind, tenantID(c), c.Param("id"), &req)
		if err != nil {
			handleError(c, err)
			return
		}
		c.JSON(http.StatusCreated, response.Success(inv))
	}
}
