package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/eventdesk/internal/domain"
	"github.com/prohmpiriya/eventdesk/internal/dto"
	"github.com/prohmpiriya/eventdesk/internal/service"
	"github.com/prohmpiriya/eventdesk/pkg/logger"
	"github.com/prohmpiriya/eventdesk/pkg/middleware"
	"github.com/prohmpiriya/eventdesk/pkg/response"
	"github.com/prohmpiriya/eventdesk/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// DefaultMaxWebhookBody caps inbound webhook payloads
const DefaultMaxWebhookBody = 1 << 20

// WebhookHandler receives gateway and DocuSign webhooks and serves the webhook log
type WebhookHandler struct {
	webhookService   service.WebhookService
	signatureService service.SignatureService
	maxBody          int64
}

// NewWebhookHandler creates a new WebhookHandler. maxBody <= 0 means DefaultMaxWebhookBody.
func NewWebhookHandler(webhookService service.WebhookService, signatureService service.SignatureService, maxBody int64) *WebhookHandler {
	if maxBody <= 0 {
		maxBody = DefaultMaxWebhookBody
	}
	return &WebhookHandler{
		webhookService:   webhookService,
		signatureService: signatureService,
		maxBody:          maxBody,
	}
}

// Stripe handles POST /webhooks/stripe
func (h *WebhookHandler) Stripe(c *gin.Context) {
	h.ingest(c, domain.GatewayStripe)
}

// Razorpay handles POST /webhooks/razorpay
func (h *WebhookHandler) Razorpay(c *gin.Context) {
	h.ingest(c, domain.GatewayRazorpay)
}

func (h *WebhookHandler) ingest(c *gin.Context, gw domain.Gateway) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.webhook."+string(gw))
	defer span.End()
	c.Request = c.Request.WithContext(ctx)
	span.SetAttributes(attribute.String("gateway", string(gw)))

	body, ok := readWebhookBody(c, h.maxBody)
	if !ok {
		span.SetStatus(codes.Error, "body rejected")
		return
	}

	result, err := h.webhookService.Ingest(ctx, gw, body, c.Request.Header)
	if result != nil {
		span.SetAttributes(attribute.String("outcome", string(result.Outcome)))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		writeWebhookError(c, result, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, response.Success(result))
}

// DocuSign handles POST /webhooks/docusign (Connect notifications)
func (h *WebhookHandler) DocuSign(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.webhook.docusign")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	body, ok := readWebhookBody(c, h.maxBody)
	if !ok {
		return
	}

	result, err := h.signatureService.HandleConnect(ctx, body, c.Request.Header)
	if err != nil {
		span.RecordError(err)
		writeWebhookError(c, result, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(result))
}

// readWebhookBody reads at most limit bytes, answering 413 past that
func readWebhookBody(c *gin.Context, limit int64) ([]byte, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, response.Error(response.ErrCodePayloadTooLarge, "Webhook payload too large"))
			return nil, false
		}
		c.JSON(http.StatusBadRequest, response.BadRequest("Failed to read request body"))
		return nil, false
	}
	return body, true
}

// writeWebhookError answers so the sender retries only what a retry can fix:
// in-flight 409, permanent failures 200, anything else 500.
func writeWebhookError(c *gin.Context, result *service.ReconcileResult, err error) {
	switch {
	case errors.Is(err, service.ErrWebhookInFlight):
		c.JSON(http.StatusConflict, response.Error(response.ErrCodeWebhookInFlight, err.Error()))
	case service.IsPermanent(err):
		logger.WarnCtx(c.Request.Context(), "webhook rejected permanently", zap.Error(err))
		c.JSON(http.StatusOK, response.Success(result))
	default:
		status, body := errorResponse(err)
		if status >= http.StatusInternalServerError {
			logger.ErrorCtx(c.Request.Context(), "webhook processing failed", zap.Error(err))
		}
		c.JSON(status, body)
	}
}

// List handles GET /webhook-logs. Super admins see every tenant.
func (h *WebhookHandler) List(c *gin.Context) {
	var filter dto.WebhookLogFilter
	if !bindQuery(c, &filter) {
		return
	}
	filter.TenantID = scopedTenant(c)

	logs, total, err := h.webhookService.List(c.Request.Context(), &filter)
	if err != nil {
		handleError(c, err)
		return
	}

	paginated(c, logs, filter.Pagination, int64(total))
}

// GetByID handles GET /webhook-logs/:id
func (h *WebhookHandler) GetByID(c *gin.Context) {
	entry, err := h.webhookService.GetByID(c.Request.Context(), scopedTenant(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(entry))
}

// Replay handles POST /webhook-logs/:id/replay
func (h *WebhookHandler) Replay(c *gin.Context) {
	ctx := c.Request.Context()
	if _, err := h.webhookService.GetByID(ctx, scopedTenant(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}

	result, err := h.webhookService.Replay(ctx, c.Param("id"))
	if err != nil && !service.IsPermanent(err) {
		handleError(c, err)
		return
	}
	if result != nil {
		middleware.AddAuditMetadata(c, "outcome", string(result.Outcome))
	}

	c.JSON(http.StatusOK, response.Success(result))
}

// scopedTenant is "" for super admins, the token tenant otherwise
func scopedTenant(c *gin.Context) string {
	if role, _ := middleware.GetRole(c); role == string(domain.RoleSuperAdmin) {
		return c.Query("tenant_id")
	}
	return tenantID(c)
}
