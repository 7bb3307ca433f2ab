package handler

import (
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/eventdesk/internal/domain"
	"github.com/prohmpiriya/eventdesk/internal/dto"
	"github.com/prohmpiriya/eventdesk/internal/service"
	"github.com/prohmpiriya/eventdesk/pkg/logger"
	"github.com/prohmpiriya/eventdesk/pkg/money"
	"go.uber.org/zap"
)

// PageConfig controls the session cookie set by the login page
type PageConfig struct {
	CookieName string
	Secure     bool
}

// PageHandler serves the server-rendered dashboard
type PageHandler struct {
	authService      service.AuthService
	tenantService    service.TenantService
	dashboardService service.DashboardService
	invoiceService   service.InvoiceService
	webhookService   service.WebhookService
	config           PageConfig
}

// NewPageHandler creates a new PageHandler
func NewPageHandler(
	authService service.AuthService,
	tenantService service.TenantService,
	dashboardService service.DashboardService,
	invoiceService service.InvoiceService,
	webhookService service.WebhookService,
	config PageConfig,
) *PageHandler {
	if config.CookieName == "" {
		config.CookieName = "eventdesk_token"
	}
	return &PageHandler{
		authService:      authService,
		tenantService:    tenantService,
		dashboardService: dashboardService,
		invoiceService:   invoiceService,
		webhookService:   webhookService,
		config:           config,
	}
}

// TemplateFuncs are the helpers available to every page template
func TemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"money": func(amount int64, code, locale string) string {
			return money.Format(amount, code, money.Locale(locale))
		},
		"date": func(v any) string {
			switch t := v.(type) {
			case time.Time:
				return t.Format("02 Jan 2006 15:04")
			case *time.Time:
				if t == nil {
					return ""
				}
				return t.Format("02 Jan 2006 15:04")
			}
			return ""
		},
		"bps": func(bps int64) string {
			return strconv.FormatFloat(float64(bps)/100, 'f', -1, 64) + "%"
		},
	}
}

type pageData struct {
	Title  string
	Tenant *dto.TenantResponse
	Locale string
}

func newPageData(title string, tenant *dto.TenantResponse) pageData {
	pd := pageData{Title: title, Tenant: tenant, Locale: "en"}
	if tenant != nil && tenant.Locale != "" {
		pd.Locale = tenant.Locale
	}
	return pd
}

// RedirectToLogin is the JWT OnUnauthorized hook for page routes
func RedirectToLogin(c *gin.Context, _, _ string) {
	c.Redirect(http.StatusSeeOther, "/login")
}

// LoginForm handles GET /login
func (h *PageHandler) LoginForm(c *gin.Context) {
	c.HTML(http.StatusOK, "login.html", gin.H{"Title": "Sign in"})
}

// Login handles POST /login
func (h *PageHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		c.HTML(http.StatusBadRequest, "login.html", gin.H{
			"Title": "Sign in",
			"Email": req.Email,
			"Error": "Enter a valid email and password",
		})
		return
	}

	resp, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		status, _ := errorResponse(err)
		msg := "Invalid email or password"
		if status >= http.StatusInternalServerError {
			logger.ErrorCtx(c.Request.Context(), "page login failed", zap.Error(err))
			msg = "Sign in is unavailable, try again shortly"
		} else if status == http.StatusForbidden {
			msg = "This organisation is inactive"
		}
		c.HTML(status, "login.html", gin.H{"Title": "Sign in", "Email": req.Email, "Error": msg})
		return
	}

	maxAge := int(time.Until(resp.ExpiresAt).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.config.CookieName, resp.AccessToken, maxAge, "/", "", h.config.Secure, true)
	c.Redirect(http.StatusSeeOther, "/dashboard")
}

// Logout handles GET /logout
func (h *PageHandler) Logout(c *gin.Context) {
	c.SetCookie(h.config.CookieName, "", -1, "/", "", h.config.Secure, true)
	c.Redirect(http.StatusSeeOther, "/login")
}

// Dashboard handles GET /dashboard
func (h *PageHandler) Dashboard(c *gin.Context) {
	summary, err := h.dashboardService.Summary(c.Request.Context(), tenantID(c))
	if err != nil {
		h.renderError(c, err)
		return
	}
	if summary.Invoices.Currency == "" {
		summary.Invoices.Currency = summary.Tenant.DefaultCurrency
	}

	c.HTML(http.StatusOK, "dashboard.html", struct {
		pageData
		Summary *dto.DashboardSummary
	}{newPageData("Overview", dto.FromTenant(summary.Tenant)), summary})
}

// Invoice handles GET /dashboard/invoices/:id, a printable invoice
func (h *PageHandler) Invoice(c *gin.Context) {
	ctx := c.Request.Context()
	tenant, err := h.tenantService.GetByID(ctx, tenantID(c))
	if err != nil {
		h.renderError(c, err)
		return
	}
	inv, err := h.invoiceService.GetByID(ctx, tenant.ID, c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	payments, err := h.invoiceService.Payments(ctx, tenant.ID, inv.ID)
	if err != nil {
		h.renderError(c, err)
		return
	}

	title := "Invoice"
	if inv.Number != "" {
		title = "Invoice " + inv.Number
	}
	c.HTML(http.StatusOK, "invoice.html", struct {
		pageData
		Invoice  *domain.Invoice
		Payments []*domain.PaymentRecord
	}{newPageData(title, tenant), inv, payments})
}

// Webhooks handles GET /dashboard/webhooks
func (h *PageHandler) Webhooks(c *gin.Context) {
	ctx := c.Request.Context()
	var filter dto.WebhookLogFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		filter = dto.WebhookLogFilter{}
	}
	filter.TenantID = tenantID(c)

	tenant, err := h.tenantService.GetByID(ctx, filter.TenantID)
	if err != nil {
		h.renderError(c, err)
		return
	}
	logs, total, err := h.webhookService.List(ctx, &filter)
	if err != nil {
		h.renderError(c, err)
		return
	}

	totalPages := (int(total) + filter.Limit - 1) / filter.Limit
	if totalPages < 1 {
		totalPages = 1
	}
	query := url.Values{}
	if filter.Gateway != "" {
		query.Set("gateway", filter.Gateway)
	}
	if filter.Processed != nil {
		query.Set("processed", strconv.FormatBool(*filter.Processed))
	}

	c.HTML(http.StatusOK, "webhooks.html", struct {
		pageData
		Logs       []*domain.WebhookLog
		Page       int
		TotalPages int
		PrevPage   int
		NextPage   int
		Query      string
	}{
		pageData:   newPageData("Webhooks", tenant),
		Logs:       logs,
		Page:       filter.Page,
		TotalPages: totalPages,
		PrevPage:   filter.Page - 1,
		NextPage:   filter.Page + 1,
		Query:      query.Encode(),
	})
}

func (h *PageHandler) renderError(c *gin.Context, err error) {
	status, body := errorResponse(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorCtx(c.Request.Context(), "page render failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	c.String(status, fmt.Sprintf("%d %s", status, body.Error.Message))
}
