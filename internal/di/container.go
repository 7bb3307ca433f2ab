package di

import (
	"fmt"

	"github.com/prohmpiriya/eventdesk/internal/client"
	"github.com/prohmpiriya/eventdesk/internal/gateway"
	"github.com/prohmpiriya/eventdesk/internal/handler"
	"github.com/prohmpiriya/eventdesk/internal/notification"
	"github.com/prohmpiriya/eventdesk/internal/repository"
	"github.com/prohmpiriya/eventdesk/internal/service"
	"github.com/prohmpiriya/eventdesk/internal/worker"
	"github.com/prohmpiriya/eventdesk/pkg/config"
	"github.com/prohmpiriya/eventdesk/pkg/database"
	"github.com/prohmpiriya/eventdesk/pkg/logger"
	"github.com/prohmpiriya/eventdesk/pkg/middleware"
	"github.com/prohmpiriya/eventdesk/pkg/telemetry"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Container holds all dependencies for the eventdesk server
type Container struct {
	Config *config.Config

	// Infrastructure
	Infra    *Infra
	Gorm     *gorm.DB
	Registry *gateway.Registry
	DocuSign *client.DocuSignClient
	Metrics  *telemetry.FinanceMetrics
	Audit    *middleware.AuditLogger

	// Repositories
	Repos service.Repositories

	// Services
	AuthService         service.AuthService
	TenantService       service.TenantService
	EventService        service.EventService
	RegistrationService service.RegistrationService
	TaxService          service.TaxService
	InvoiceService      service.InvoiceService
	PaymentService      service.PaymentService
	FinanceModeService  service.FinanceModeService
	WebhookService      service.WebhookService
	PartnerService      service.PartnerService
	SignatureService    service.SignatureService
	FloorPlanService    service.FloorPlanService
	DashboardService    service.DashboardService
	Reconciler          *service.Reconciler

	// ExpiryWorker is nil when registration expiry is disabled
	ExpiryWorker *worker.ExpiryWorker

	// Handlers
	HealthHandler       *handler.HealthHandler
	AuthHandler         *handler.AuthHandler
	TenantHandler       *handler.TenantHandler
	EventHandler        *handler.EventHandler
	RegistrationHandler *handler.RegistrationHandler
	TaxHandler          *handler.TaxHandler
	InvoiceHandler      *handler.InvoiceHandler
	PaymentHandler      *handler.PaymentHandler
	FinanceHandler      *handler.FinanceHandler
	WebhookHandler      *handler.WebhookHandler
	PartnerHandler      *handler.PartnerHandler
	SignatureHandler    *handler.SignatureHandler
	FloorPlanHandler    *handler.FloorPlanHandler
	PageHandler         *handler.PageHandler
}

// ContainerConfig contains configuration for building the container
type ContainerConfig struct {
	Config *config.Config
	Infra  *Infra
	// WithAudit starts the audit writer; CLI commands leave it off
	WithAudit bool
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *ContainerConfig) (*Container, error) {
	appCfg := cfg.Config
	c := &Container{
		Config: appCfg,
		Infra:  cfg.Infra,
	}

	gdb, err := database.NewGorm(c.Infra.DB, appCfg.App.Debug)
	if err != nil {
		return nil, fmt.Errorf("open gorm: %w", err)
	}
	c.Gorm = gdb

	metrics, err := telemetry.NewFinanceMetrics()
	if err != nil {
		logger.Warn("finance metrics disabled", zap.Error(err))
	}
	c.Metrics = metrics

	// Initialize repositories
	pg := c.Infra.DB
	c.Repos = service.Repositories{
		Tenants:       repository.NewPostgresTenantRepository(pg),
		Users:         repository.NewPostgresUserRepository(pg),
		Events:        repository.NewEventRepository(gdb),
		Registrations: repository.NewPostgresRegistrationRepository(pg),
		Seats:         repository.NewPostgresSeatRepository(pg),
		Taxes:         repository.NewPostgresTaxStructureRepository(pg),
		Invoices:      repository.NewPostgresInvoiceRepository(pg),
		Payments:      repository.NewPostgresPaymentRepository(pg),
		WebhookLogs:   repository.NewPostgresWebhookLogRepository(pg),
		Partners:      repository.NewPartnerRepository(gdb),
		FloorPlans:    repository.NewFloorPlanRepository(gdb),
		Signatures:    repository.NewSignatureRepository(gdb),
	}

	// Infrastructure adapters. Interfaces stay nil, not typed-nil, when a broker is absent.
	var (
		locker    service.Locker
		holds     service.SeatHolder
		publisher service.FinancePublisher
		notifier  notification.Notifier
	)
	if c.Infra.Redis != nil {
		locker = c.Infra.Redis
		holds = c.Infra.Redis
	}
	if c.Infra.Producer != nil {
		publisher = service.NewKafkaFinancePublisher(c.Infra.Producer)
	}
	if c.Infra.Publisher != nil {
		notifier = notification.NewQueueNotifier(c.Infra.Publisher)
	}

	c.Registry = gateway.NewRegistry(gatewayProviders(appCfg)...)
	c.DocuSign = client.NewDocuSignClient(client.DocuSignConfig{
		BaseURL:        appCfg.DocuSign.BaseURL,
		AccountID:      appCfg.DocuSign.AccountID,
		AccessToken:    appCfg.DocuSign.AccessToken,
		ConnectHMACKey: appCfg.DocuSign.ConnectHMACKey,
		Timeout:        appCfg.DocuSign.Timeout,
	})

	// Initialize services
	svcCfg := ServiceConfig(appCfg)
	c.AuthService = service.NewAuthService(c.Repos.Users, c.Repos.Tenants, svcCfg)
	c.TenantService = service.NewTenantService(c.Repos.Tenants, svcCfg)
	c.EventService = service.NewEventService(c.Repos.Events, c.Repos.Tenants)
	c.RegistrationService = service.NewRegistrationService(c.Repos, pg, holds, notifier, svcCfg)
	c.TaxService = service.NewTaxService(c.Repos, pg, svcCfg)
	c.InvoiceService = service.NewInvoiceService(service.InvoiceServiceDeps{
		Repos:     c.Repos,
		Tx:        pg,
		Registry:  c.Registry,
		Publisher: publisher,
		Notifier:  notifier,
		Metrics:   c.Metrics,
		Config:    svcCfg,
	})
	c.PaymentService = service.NewPaymentService(c.Repos, pg, c.Registry, svcCfg)
	c.FinanceModeService = service.NewFinanceModeService(c.Repos, pg, publisher, svcCfg)
	c.Reconciler = service.NewReconciler(service.ReconcilerDeps{
		Repos:     c.Repos,
		Tx:        pg,
		Locker:    locker,
		Publisher: publisher,
		Notifier:  notifier,
		Metrics:   c.Metrics,
		Config:    svcCfg,
	})
	c.WebhookService = service.NewWebhookService(c.Registry, c.Reconciler, c.Repos.WebhookLogs)
	c.PartnerService = service.NewPartnerService(c.Repos, c.InvoiceService, svcCfg)
	c.SignatureService = service.NewSignatureService(c.Repos, c.DocuSign, notifier)
	c.FloorPlanService = service.NewFloorPlanService(c.Repos, holds, svcCfg)
	c.DashboardService = service.NewDashboardService(c.Repos)

	if ttl := appCfg.Finance.PendingRegistrationTTL; ttl > 0 {
		c.ExpiryWorker = worker.NewExpiryWorker(c.RegistrationService, &worker.ExpiryWorkerConfig{
			ScanInterval: appCfg.Finance.ExpiryScanInterval,
			PendingTTL:   ttl,
		})
	}

	if cfg.WithAudit {
		c.Audit = middleware.NewAuditLogger(middleware.DefaultAuditConfig(repository.NewPostgresAuditRepository(pg)))
	}

	// Initialize handlers
	checks := map[string]handler.HealthChecker{"postgres": pg}
	if c.Infra.Redis != nil {
		checks["redis"] = c.Infra.Redis
	}
	c.HealthHandler = handler.NewHealthHandler(appCfg.App.Version, checks)
	c.AuthHandler = handler.NewAuthHandler(c.AuthService)
	c.TenantHandler = handler.NewTenantHandler(c.TenantService, c.FinanceModeService)
	c.EventHandler = handler.NewEventHandler(c.EventService)
	c.RegistrationHandler = handler.NewRegistrationHandler(c.RegistrationService, c.PaymentService)
	c.TaxHandler = handler.NewTaxHandler(c.TaxService)
	c.InvoiceHandler = handler.NewInvoiceHandler(c.InvoiceService, c.PaymentService)
	c.PaymentHandler = handler.NewPaymentHandler(c.PaymentService)
	c.FinanceHandler = handler.NewFinanceHandler(c.FinanceModeService)
	c.WebhookHandler = handler.NewWebhookHandler(c.WebhookService, c.SignatureService, appCfg.Finance.WebhookMaxBodyBytes)
	c.PartnerHandler = handler.NewPartnerHandler(c.PartnerService)
	c.SignatureHandler = handler.NewSignatureHandler(c.SignatureService)
	c.FloorPlanHandler = handler.NewFloorPlanHandler(c.FloorPlanService)
	c.PageHandler = handler.NewPageHandler(
		c.AuthService,
		c.TenantService,
		c.DashboardService,
		c.InvoiceService,
		c.WebhookService,
		handler.PageConfig{CookieName: appCfg.JWT.CookieName, Secure: appCfg.IsProduction()},
	)

	return c, nil
}

// ServiceConfig maps application settings onto the service layer
func ServiceConfig(cfg *config.Config) service.Config {
	return service.Config{
		DefaultFinanceMode:  cfg.Finance.DefaultMode,
		DefaultCurrency:     cfg.Finance.DefaultCurrency,
		LegacyInvoicePrefix: cfg.Finance.LegacyInvoicePrefix,
		InvoiceDueDays:      cfg.Finance.InvoiceDueDays,
		WebhookLockTTL:      cfg.Finance.WebhookLockTTL,
		SeatHoldTTL:         cfg.Finance.SeatHoldTTL,
		MaxSeatsPerHold:     cfg.Finance.MaxSeatsPerHold,
		JWTSecret:           cfg.JWT.Secret,
		JWTIssuer:           cfg.JWT.Issuer,
		JWTTTL:              cfg.JWT.AccessTokenTTL,
	}
}

func gatewayProviders(cfg *config.Config) []gateway.Provider {
	var providers []gateway.Provider
	if cfg.Stripe.Enabled {
		providers = append(providers, gateway.NewStripeGateway(gateway.StripeConfig{
			SecretKey:        cfg.Stripe.SecretKey,
			PublishableKey:   cfg.Stripe.PublishableKey,
			WebhookSecret:    cfg.Stripe.WebhookSecret,
			WebhookTolerance: cfg.Stripe.WebhookTolerance,
		}))
	}
	if cfg.Razorpay.Enabled {
		providers = append(providers, gateway.NewRazorpayGateway(gateway.RazorpayConfig{
			KeyID:         cfg.Razorpay.KeyID,
			KeySecret:     cfg.Razorpay.KeySecret,
			WebhookSecret: cfg.Razorpay.WebhookSecret,
		}))
	}
	return providers
}

// Close stops the audit writer. Connections are closed by Infra.
func (c *Container) Close() {
	if c.Audit != nil {
		if err := c.Audit.Close(); err != nil {
			logger.Warn("audit logger close failed", zap.Error(err))
		}
	}
}
