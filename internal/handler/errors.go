package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/eventdesk/internal/client"
	"github.com/prohmpiriya/eventdesk/internal/domain"
	"github.com/prohmpiriya/eventdesk/internal/dto"
	"github.com/prohmpiriya/eventdesk/internal/gateway"
	"github.com/prohmpiriya/eventdesk/internal/repository"
	"github.com/prohmpiriya/eventdesk/internal/service"
	"github.com/prohmpiriya/eventdesk/pkg/logger"
	"github.com/prohmpiriya/eventdesk/pkg/middleware"
	"github.com/prohmpiriya/eventdesk/pkg/money"
	"github.com/prohmpiriya/eventdesk/pkg/response"
	"go.uber.org/zap"
)

var notFoundErrors = []error{
	service.ErrTenantNotFound,
	service.ErrUserNotFound,
	service.ErrEventNotFound,
	service.ErrRegistrationNotFound,
	service.ErrInvoiceNotFound,
	service.ErrPaymentNotFound,
	service.ErrTaxStructureNotFound,
	service.ErrPartnerNotFound,
	service.ErrSignatureNotFound,
	service.ErrFloorPlanNotFound,
	service.ErrWebhookLogNotFound,
}

var validationErrors = []error{
	domain.ErrInvalidAmount,
	domain.ErrCurrencyMismatch,
	domain.ErrMissingTenant,
	domain.ErrMissingName,
	domain.ErrInvalidSlug,
	domain.ErrInvalidEmail,
	domain.ErrInvalidSchedule,
	domain.ErrInvalidFinanceMode,
	domain.ErrEmptyInvoice,
	domain.ErrAmountTooLarge,
	domain.ErrInvalidTaxRate,
	domain.ErrInvalidRelatedType,
	domain.ErrInvalidQuantity,
	domain.ErrInvalidGrid,
	money.ErrInvalidCurrency,
	service.ErrSeatCountMismatch,
	service.ErrEmptyUpdate,
	service.ErrInvalidRole,
}

var financeGateErrors = []error{
	service.ErrMigrationBlocked,
	service.ErrNoDefaultTaxStructure,
	service.ErrDraftInvoicesPending,
	service.ErrPendingPayments,
}

func isAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// handleError maps service and domain errors to the response envelope
func handleError(c *gin.Context, err error) {
	status, body := errorResponse(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorCtx(c.Request.Context(), "request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	c.JSON(status, body)
}

func errorResponse(err error) (int, *response.Response) {
	switch {
	case isAny(err, notFoundErrors):
		return http.StatusNotFound, response.NotFound(err.Error())
	case isAny(err, validationErrors):
		return http.StatusBadRequest, response.Error(response.ErrCodeValidationFailed, err.Error())
	case isAny(err, financeGateErrors):
		return http.StatusPreconditionFailed, response.Error(response.ErrCodeFinanceModeLocked, err.Error())

	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, response.Unauthorized(err.Error())
	case errors.Is(err, service.ErrTenantInactive):
		return http.StatusForbidden, response.Forbidden(err.Error())

	case errors.Is(err, service.ErrTenantAlreadyExists),
		errors.Is(err, service.ErrUserAlreadyExists),
		errors.Is(err, service.ErrEventSlugTaken),
		errors.Is(err, repository.ErrDuplicate):
		return http.StatusConflict, response.Error(response.ErrCodeDuplicateEntry, err.Error())

	case errors.Is(err, service.ErrFinanceModeMismatch):
		return http.StatusConflict, response.Error(response.ErrCodeFinanceModeMismatch, err.Error())
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrFinanceModeIrreversible),
		errors.Is(err, domain.ErrFinanceModeUnchanged),
		errors.Is(err, domain.ErrInvoiceHasPayment),
		errors.Is(err, service.ErrFloorPlanPublished):
		return http.StatusConflict, response.Error(response.ErrCodeInvalidTransition, err.Error())

	case errors.Is(err, service.ErrEventClosed), errors.Is(err, service.ErrEventSoldOut):
		return http.StatusConflict, response.Conflict(err.Error())
	case errors.Is(err, service.ErrSeatsUnavailable),
		errors.Is(err, service.ErrSeatHoldLimit),
		errors.Is(err, service.ErrSeatHoldMismatch),
		errors.Is(err, domain.ErrSeatNotBookable):
		return http.StatusConflict, response.Error(response.ErrCodeSeatUnavailable, err.Error())

	case errors.Is(err, domain.ErrOverpayment),
		errors.Is(err, domain.ErrRefundExceedsPaid),
		errors.Is(err, service.ErrRefundNotAllowed),
		errors.Is(err, service.ErrNothingToPay):
		return http.StatusUnprocessableEntity, response.Error(response.ErrCodeUnprocessableEntity, err.Error())

	case errors.Is(err, gateway.ErrInvalidSignature):
		return http.StatusBadRequest, response.Error(response.ErrCodeInvalidSignature, "Webhook signature verification failed")
	case errors.Is(err, service.ErrWebhookInFlight):
		return http.StatusConflict, response.Error(response.ErrCodeWebhookInFlight, err.Error())
	case errors.Is(err, gateway.ErrNotConfigured),
		errors.Is(err, client.ErrDocuSignDisabled),
		errors.Is(err, service.ErrSeatsNotConfigured):
		return http.StatusServiceUnavailable, response.ServiceUnavailable(err.Error())
	}

	return http.StatusInternalServerError, response.InternalError("")
}

// tenantID reads the tenant from the token. RequireTenant guards the routes that call it.
func tenantID(c *gin.Context) string {
	id, _ := middleware.GetTenantID(c)
	return id
}

func userID(c *gin.Context) string {
	id, _ := middleware.GetUserID(c)
	return id
}

// bindJSON writes a 400 and returns false when the body does not bind
func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
		return false
	}
	return true
}

func bindQuery(c *gin.Context, req any) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
		return false
	}
	return true
}

func paginated[T any](c *gin.Context, items []T, p dto.Pagination, total int64) {
	if items == nil {
		items = []T{}
	}
	c.JSON(http.StatusOK, response.Paginated(items, p.Page, p.Limit, total))
}
