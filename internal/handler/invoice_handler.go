package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/eventdesk/internal/dto"
	"github.com/prohmpiriya/eventdesk/internal/service"
	"github.com/prohmpiriya/eventdesk/pkg/middleware"
	"github.com/prohmpiriya/eventdesk/pkg/response"
)

// InvoiceHandler handles invoices, their payments and refunds
type InvoiceHandler struct {
	invoiceService service.InvoiceService
	paymentService service.PaymentService
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(invoiceService service.InvoiceService, paymentService service.PaymentService) *InvoiceHandler {
	return &InvoiceHandler{
		invoiceService: invoiceService,
		paymentService: paymentService,
	}
}

// Create handles POST /invoices
func (h *InvoiceHandler) Create(c *gin.Context) {
	var req dto.CreateInvoiceRequest
	if !bindJSON(c, &req) {
		return
	}

	inv, err := h.invoiceService.Create(c.Request.Context(), tenantID(c), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(inv))
}

// GetByID handles GET /invoices/:id
func (h *InvoiceHandler) GetByID(c *gin.Context) {
	inv, err := h.invoiceService.GetByID(c.Request.Context(), tenantID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(inv))
}

// List handles GET /invoices
func (h *InvoiceHandler) List(c *gin.Context) {
	var filter dto.InvoiceListFilter
	if !bindQuery(c, &filter) {
		return
	}
	filter.TenantID = tenantID(c)

	invoices, total, err := h.invoiceService.List(c.Request.Context(), &filter)
	if err != nil {
		handleError(c, err)
		return
	}

	paginated(c, invoices, filter.Pagination, int64(total))
}

// Update handles PUT /invoices/:id
func (h *InvoiceHandler) Update(c *gin.Context) {
	var req dto.UpdateInvoiceRequest
	if !bindJSON(c, &req) {
		return
	}

	inv, err := h.invoiceService.Update(c.Request.Context(), tenantID(c), c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(inv))
}

// Issue handles POST /invoices/:id/issue. The body is optional.
func (h *InvoiceHandler) Issue(c *gin.Context) {
	var req dto.IssueInvoiceRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	inv, err := h.invoiceService.Issue(c.Request.Context(), tenantID(c), c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(inv))
}

// Void handles POST /invoices/:id/void
func (h *InvoiceHandler) Void(c *gin.Context) {
	inv, err := h.invoiceService.Void(c.Request.Context(), tenantID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	middleware.AddAuditMetadata(c, "invoice_number", inv.Number)

	c.JSON(http.StatusOK, response.Success(inv))
}

// RecordPayment handles POST /invoices/:id/payments
func (h *InvoiceHandler) RecordPayment(c *gin.Context) {
	var req dto.ManualPaymentRequest
	if !bindJSON(c, &req) {
		return
	}

	rec, err := h.invoiceService.RecordManualPayment(c.Request.Context(), tenantID(c), c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(rec))
}

// Payments handles GET /invoices/:id/payments
func (h *InvoiceHandler) Payments(c *gin.Context) {
	records, err := h.invoiceService.Payments(c.Request.Context(), tenantID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(records))
}

// Refund handles POST /invoices/:id/refund
func (h *InvoiceHandler) Refund(c *gin.Context) {
	var req dto.RefundRequest
	if !bindJSON(c, &req) {
		return
	}

	refund, err := h.invoiceService.Refund(c.Request.Context(), tenantID(c), c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	middleware.AddAuditMetadata(c, "refund_id", refund.ID)
	middleware.AddAuditMetadata(c, "amount", refund.Amount)
	middleware.AddAuditMetadata(c, "currency", refund.Currency)

	c.JSON(http.StatusCreated, response.Success(refund))
}

// Checkout handles POST /invoices/:id/checkout
func (h *InvoiceHandler) Checkout(c *gin.Context) {
	var req dto.CheckoutRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.paymentService.CheckoutInvoice(c.Request.Context(), tenantID(c), c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(result))
}

// PaymentHandler exposes payment records read-only
type PaymentHandler struct {
	paymentService service.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(paymentService service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// List handles GET /payments
func (h *PaymentHandler) List(c *gin.Context) {
	var filter dto.PaymentListFilter
	if !bindQuery(c, &filter) {
		return
	}
	filter.TenantID = tenantID(c)

	records, total, err := h.paymentService.List(c.Request.Context(), &filter)
	if err != nil {
		handleError(c, err)
		return
	}

	paginated(c, records, filter.Pagination, int64(total))
}

// GetByID handles GET /payments/:id
func (h *PaymentHandler) GetByID(c *gin.Context) {
	rec, err := h.paymentService.GetByID(c.Request.Context(), tenantID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(rec))
}

// Refunds handles GET /payments/:id/refunds
func (h *PaymentHandler) Refunds(c *gin.Context) {
	refunds, err := h.paymentService.Refunds(c.Request.Context(), tenantID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(refunds))
}
