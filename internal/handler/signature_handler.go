package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/eventdesk/internal/dto"
	"github.com/prohmpiriya/eventdesk/internal/service"
	"github.com/prohmpiriya/eventdesk/pkg/response"
)

// SignatureHandler handles e-signature requests
type SignatureHandler struct {
	signatureService service.SignatureService
}

// NewSignatureHandler creates a new SignatureHandler
func NewSignatureHandler(signatureService service.SignatureService) *SignatureHandler {
	return &SignatureHandler{signatureService: signatureService}
}

// Create handles POST /signatures
func (h *SignatureHandler) Create(c *gin.Context) {
	var req dto.CreateSignatureRequest
	if !bindJSON(c, &req) {
		return
	}

	sr, err := h.signatureService.Create(c.Request.Context(), tenantID(c), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(sr))
}

// GetByID handles GET /signatures/:id
func (h *SignatureHandler) GetByID(c *gin.Context) {
	sr, err := h.signatureService.GetByID(c.Request.Context(), tenantID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(sr))
}

// List handles GET /signatures
func (h *SignatureHandler) List(c *gin.Context) {
	var filter dto.SignatureListFilter
	if !bindQuery(c, &filter) {
		return
	}
	filter.TenantID = tenantID(c)

	requests, total, err := h.signatureService.List(c.Request.Context(), &filter)
	if err != nil {
		handleError(c, err)
		return
	}

	paginated(c, requests, filter.Pagination, total)
}

// Send handles POST /signatures/:id/send
func (h *SignatureHandler) Send(c *gin.Context) {
	sr, err := h.signatureService.Send(c.Request.Context(), tenantID(c), c.Param("id"), userID(c))
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(sr))
}

type voidSignatureRequest struct {
	Reason string `json:"reason" binding:"omitempty,max=200"`
}

// Void handles POST /signatures/:id/void
func (h *SignatureHandler) Void(c *gin.Context) {
	var req voidSignatureRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	sr, err := h.signatureService.Void(c.Request.Context(), tenantID(c), c.Param("id"), userID(c), req.Reason)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(sr))
}

// History handles GET /signatures/:id/history
func (h *SignatureHandler) History(c *gin.Context) {
	history, err := h.signatureService.History(c.Request.Context(), tenantID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(history))
}
