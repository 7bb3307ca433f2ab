package di

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/eventdesk/internal/domain"
	"github.com/prohmpiriya/eventdesk/internal/handler"
	"github.com/prohmpiriya/eventdesk/pkg/middleware"
	"github.com/prohmpiriya/eventdesk/pkg/telemetry"
	"github.com/prohmpiriya/eventdesk/web"
)

var (
	superAdmin  = string(domain.RoleSuperAdmin)
	tenantAdmin = string(domain.RoleTenantAdmin)
	finance     = string(domain.RoleFinance)
	staff       = string(domain.RoleStaff)
)

// NewRouter builds the gin engine with every API, webhook and page route
func NewRouter(c *Container) (*gin.Engine, error) {
	if !c.Config.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	tmpl, err := web.Templates(handler.TemplateFuncs())
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	r := gin.New()
	r.SetHTMLTemplate(tmpl)
	r.Use(
		middleware.RequestID(),
		middleware.Recovery(),
		telemetry.GinMiddleware(),
		middleware.RequestLogger(),
	)

	r.GET("/health", c.HealthHandler.Health)
	r.GET("/ready", c.HealthHandler.Ready)

	jwtCfg := middleware.JWTConfig{
		Secret:     c.Config.JWT.Secret,
		Issuer:     c.Config.JWT.Issuer,
		CookieName: c.Config.JWT.CookieName,
	}

	registerPages(r, c, jwtCfg)

	api := r.Group("/api/v1")
	api.Use(middleware.CORS(middleware.DefaultCORSConfig(c.Config.Server.CORSOrigins)))

	// Webhooks authenticate by signature, not by token
	webhooks := api.Group("/webhooks")
	webhooks.Use(middleware.RateLimiter(webhookRateLimit(c)))
	{
		webhooks.POST("/stripe", c.WebhookHandler.Stripe)
		webhooks.POST("/razorpay", c.WebhookHandler.Razorpay)
		webhooks.POST("/docusign", c.WebhookHandler.DocuSign)
	}

	api.POST("/auth/login", c.AuthHandler.Login)

	authed := api.Group("")
	authed.Use(middleware.JWTMiddleware(&jwtCfg))
	if c.Audit != nil {
		authed.Use(middleware.AuditMiddleware(c.Audit))
	}
	authed.GET("/auth/me", c.AuthHandler.Me)

	tenants := authed.Group("/tenants", middleware.RequireRole(superAdmin))
	{
		tenants.POST("", c.TenantHandler.Create)
		tenants.GET("", c.TenantHandler.List)
		tenants.GET("/slug/:slug", c.TenantHandler.GetBySlug)
		tenants.GET("/:id", c.TenantHandler.GetByID)
		tenants.GET("/:id/finance", c.TenantHandler.Finance)
		tenants.PUT("/:id", c.TenantHandler.Update)
		tenants.DELETE("/:id", c.TenantHandler.Delete)
	}

	// The webhook log spans tenants for super admins
	logs := authed.Group("/webhook-logs", middleware.RequireRole(superAdmin, tenantAdmin, finance))
	{
		logs.GET("", c.WebhookHandler.List)
		logs.GET("/:id", c.WebhookHandler.GetByID)
		logs.POST("/:id/replay", c.WebhookHandler.Replay)
	}

	scoped := authed.Group("", middleware.RequireTenant())
	registerTenantRoutes(scoped, c)

	return r, nil
}

func registerTenantRoutes(g *gin.RouterGroup, c *Container) {
	admins := middleware.RequireRole(tenantAdmin)
	financeOps := middleware.RequireRole(tenantAdmin, finance)
	eventOps := middleware.RequireRole(tenantAdmin, staff)

	users := g.Group("/users", admins)
	{
		users.POST("", c.AuthHandler.CreateUser)
		users.GET("", c.AuthHandler.ListUsers)
	}

	fin := g.Group("/finance/mode")
	{
		fin.GET("", c.FinanceHandler.GetMode)
		fin.GET("/history", c.FinanceHandler.History)
		fin.POST("/migrate", admins, c.FinanceHandler.Migrate)
	}

	events := g.Group("/events")
	{
		events.GET("", c.EventHandler.List)
		events.GET("/:id", c.EventHandler.GetByID)
		events.POST("", eventOps, c.EventHandler.Create)
		events.PUT("/:id", eventOps, c.EventHandler.Update)
		events.POST("/:id/publish", eventOps, c.EventHandler.Publish)
		events.POST("/:id/cancel", eventOps, c.EventHandler.Cancel)
		events.DELETE("/:id", admins, c.EventHandler.Delete)
	}

	regs := g.Group("/registrations")
	{
		regs.POST("", c.RegistrationHandler.Create)
		regs.GET("", c.RegistrationHandler.List)
		regs.GET("/:id", c.RegistrationHandler.GetByID)
		regs.POST("/:id/cancel", c.RegistrationHandler.Cancel)
		regs.POST("/:id/checkout", c.RegistrationHandler.Checkout)
	}

	taxes := g.Group("/tax-structures", financeOps)
	{
		taxes.POST("", c.TaxHandler.Create)
		taxes.GET("", c.TaxHandler.List)
		taxes.POST("/preview", c.TaxHandler.Preview)
		taxes.GET("/:id", c.TaxHandler.GetByID)
		taxes.PUT("/:id", c.TaxHandler.Update)
		taxes.POST("/:id/default", c.TaxHandler.SetDefault)
		taxes.DELETE("/:id", c.TaxHandler.Deactivate)
	}

	invoices := g.Group("/invoices", financeOps)
	{
		invoices.POST("", c.InvoiceHandler.Create)
		invoices.GET("", c.InvoiceHandler.List)
		invoices.GET("/:id", c.InvoiceHandler.GetByID)
		invoices.PUT("/:id", c.InvoiceHandler.Update)
		invoices.POST("/:id/issue", c.InvoiceHandler.Issue)
		invoices.POST("/:id/void", c.InvoiceHandler.Void)
		invoices.POST("/:id/payments", c.InvoiceHandler.RecordPayment)
		invoices.GET("/:id/payments", c.InvoiceHandler.Payments)
		invoices.POST("/:id/refund", c.InvoiceHandler.Refund)
		invoices.POST("/:id/checkout", c.InvoiceHandler.Checkout)
	}

	payments := g.Group("/payments", financeOps)
	{
		payments.GET("", c.PaymentHandler.List)
		payments.GET("/:id", c.PaymentHandler.GetByID)
		payments.GET("/:id/refunds", c.PaymentHandler.Refunds)
	}

	p := c.PartnerHandler
	sponsors := g.Group("/sponsors", eventOps)
	{
		sponsors.POST("", p.CreateSponsor)
		sponsors.GET("", p.ListSponsors)
		sponsors.GET("/:id", p.GetSponsor)
		sponsors.PUT("/:id", p.UpdateSponsor)
		sponsors.POST("/:id/status", p.SetSponsorStatus)
		sponsors.DELETE("/:id", p.Delete(domain.RecipientSponsor))
		sponsors.POST("/:id/invoice", p.CreateInvoice(domain.RecipientSponsor))
	}
	vendors := g.Group("/vendors", eventOps)
	{
		vendors.POST("", p.CreateVendor)
		vendors.GET("", p.ListVendors)
		vendors.GET("/:id", p.GetVendor)
		vendors.PUT("/:id", p.UpdateVendor)
		vendors.POST("/:id/status", p.SetVendorStatus)
		vendors.DELETE("/:id", p.Delete(domain.RecipientVendor))
		vendors.POST("/:id/invoice", p.CreateInvoice(domain.RecipientVendor))
	}
	exhibitors := g.Group("/exhibitors", eventOps)
	{
		exhibitors.POST("", p.CreateExhibitor)
		exhibitors.GET("", p.ListExhibitors)
		exhibitors.GET("/:id", p.GetExhibitor)
		exhibitors.PUT("/:id", p.UpdateExhibitor)
		exhibitors.POST("/:id/status", p.SetExhibitorStatus)
		exhibitors.DELETE("/:id", p.Delete(domain.RecipientExhibitor))
		exhibitors.POST("/:id/invoice", p.CreateInvoice(domain.RecipientExhibitor))
	}

	sigs := g.Group("/signatures", eventOps)
	{
		sigs.POST("", c.SignatureHandler.Create)
		sigs.GET("", c.SignatureHandler.List)
		sigs.GET("/:id", c.SignatureHandler.GetByID)
		sigs.POST("/:id/send", c.SignatureHandler.Send)
		sigs.POST("/:id/void", c.SignatureHandler.Void)
		sigs.GET("/:id/history", c.SignatureHandler.History)
	}

	plans := g.Group("/floor-plans")
	{
		plans.GET("", c.FloorPlanHandler.List)
		plans.GET("/:id", c.FloorPlanHandler.GetByID)
		plans.GET("/:id/seats", c.FloorPlanHandler.Seats)
		plans.POST("/:id/seats/hold", c.FloorPlanHandler.HoldSeats)
		plans.POST("/:id/seats/release", c.FloorPlanHandler.ReleaseSeats)
		plans.POST("", eventOps, c.FloorPlanHandler.Create)
		plans.PUT("/:id", eventOps, c.FloorPlanHandler.Update)
		plans.POST("/:id/publish", eventOps, c.FloorPlanHandler.Publish)
		plans.POST("/:id/seats/generate", eventOps, c.FloorPlanHandler.GenerateSeats)
		plans.POST("/:id/seats/block", eventOps, c.FloorPlanHandler.BlockSeats)
	}
}

func registerPages(r *gin.Engine, c *Container, jwtCfg middleware.JWTConfig) {
	r.GET("/", func(ctx *gin.Context) { ctx.Redirect(http.StatusSeeOther, "/dashboard") })
	r.GET("/login", c.PageHandler.LoginForm)
	r.POST("/login", c.PageHandler.Login)
	r.GET("/logout", c.PageHandler.Logout)

	pageJWT := jwtCfg
	pageJWT.OnUnauthorized = handler.RedirectToLogin

	pages := r.Group("/dashboard", middleware.JWTMiddleware(&pageJWT), middleware.RequireTenant())
	{
		pages.GET("", c.PageHandler.Dashboard)
		pages.GET("/invoices/:id", c.PageHandler.Invoice)
		pages.GET("/webhooks", c.PageHandler.Webhooks)
	}
}

func webhookRateLimit(c *Container) middleware.RateLimitConfig {
	cfg := middleware.DefaultRateLimitConfig()
	if c.Config.Finance.WebhookRateLimit > 0 {
		cfg.RequestsPerSecond = c.Config.Finance.WebhookRateLimit
	}
	if c.Config.Finance.WebhookRateBurst > 0 {
		cfg.BurstSize = c.Config.Finance.WebhookRateBurst
	}
	cfg.KeyPrefix = "ratelimit:webhooks:"
	// one provider's retry storm must not throttle the others
	cfg.KeyFunc = middleware.RouteClientKey
	cfg.RedisClient = c.Infra.Redis
	return cfg
}
