package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/eventdesk/internal/dto"
	"github.com/prohmpiriya/eventdesk/internal/service"
	"github.com/prohmpiriya/eventdesk/pkg/response"
)

// RegistrationHandler handles attendee registrations and their checkout
type RegistrationHandler struct {
	registrationService service.RegistrationService
	paymentService      service.PaymentService
}

// NewRegistrationHandler creates a new RegistrationHandler
func NewRegistrationHandler(registrationService service.RegistrationService, paymentService service.PaymentService) *RegistrationHandler {
	return &RegistrationHandler{
		registrationService: registrationService,
		paymentService:      paymentService,
	}
}

// Create handles POST /registrations
func (h *RegistrationHandler) Create(c *gin.Context) {
	var req dto.CreateRegistrationRequest
	if !bindJSON(c, &req) {
		return
	}

	reg, err := h.registrationService.Create(c.Request.Context(), tenantID(c), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(reg))
}

// GetByID handles GET /registrations/:id
func (h *RegistrationHandler) GetByID(c *gin.Context) {
	reg, err := h.registrationService.GetByID(c.Request.Context(), tenantID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(reg))
}

// List handles GET /registrations
func (h *RegistrationHandler) List(c *gin.Context) {
	var filter dto.RegistrationListFilter
	if !bindQuery(c, &filter) {
		return
	}
	filter.TenantID = tenantID(c)

	regs, total, err := h.registrationService.List(c.Request.Context(), &filter)
	if err != nil {
		handleError(c, err)
		return
	}

	paginated(c, regs, filter.Pagination, int64(total))
}

// Cancel handles POST /registrations/:id/cancel
func (h *RegistrationHandler) Cancel(c *gin.Context) {
	reg, err := h.registrationService.Cancel(c.Request.Context(), tenantID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(reg))
}

// Checkout handles POST /registrations/:id/checkout
func (h *RegistrationHandler) Checkout(c *gin.Context) {
	var req dto.CheckoutRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.paymentService.CheckoutRegistration(c.Request.Context(), tenantID(c), c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(result))
}
