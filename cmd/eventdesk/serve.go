package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prohmpiriya/eventdesk/internal/di"
	"github.com/prohmpiriya/eventdesk/migrations"
	"github.com/prohmpiriya/eventdesk/pkg/logger"
	"github.com/prohmpiriya/eventdesk/pkg/telemetry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func serveCmd() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server (API, webhooks, dashboard)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if _, err := telemetry.Init(ctx, telemetry.FromAppConfig(&cfg.OTel, &cfg.App)); err != nil {
				logger.Warn("telemetry disabled", zap.Error(err))
			}

			infra, err := di.Connect(ctx, cfg)
			if err != nil {
				return err
			}
			defer infra.Close()

			if migrate {
				applied, err := infra.DB.Migrate(ctx, migrations.FS)
				if err != nil {
					return err
				}
				logger.Info("migrations applied", zap.Strings("versions", applied))
			}

			container, err := di.NewContainer(&di.ContainerConfig{Config: cfg, Infra: infra, WithAudit: true})
			if err != nil {
				return err
			}
			defer container.Close()

			router, err := di.NewRouter(container)
			if err != nil {
				return err
			}

			srv := &http.Server{
				Addr:         cfg.Server.Addr(),
				Handler:      router,
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
				IdleTimeout:  cfg.Server.IdleTimeout,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				logger.Info("http server listening",
					zap.String("addr", srv.Addr),
					zap.String("version", cfg.App.Version),
					zap.String("environment", cfg.App.Environment),
				)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			if container.ExpiryWorker != nil {
				g.Go(func() error { return container.ExpiryWorker.Run(gctx) })
			}
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
				defer cancel()

				logger.Info("shutting down http server")
				if err := srv.Shutdown(shutdownCtx); err != nil {
					logger.Error("http server shutdown failed", zap.Error(err))
				}
				if err := telemetry.Shutdown(shutdownCtx); err != nil {
					logger.Warn("telemetry shutdown failed", zap.Error(err))
				}
				return nil
			})

			return g.Wait()
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before serving")
	return cmd
}
