package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prohmpiriya/eventdesk/internal/di"
	"github.com/prohmpiriya/eventdesk/internal/notification"
	"github.com/prohmpiriya/eventdesk/pkg/logger"
	"github.com/prohmpiriya/eventdesk/pkg/rabbitmq"
	"github.com/prohmpiriya/eventdesk/pkg/telemetry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func notifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Notification delivery",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "worker",
		Short: "Consume notification jobs and deliver email, SMS and WhatsApp",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			if !cfg.RabbitMQ.Enabled {
				return errors.New("rabbitmq is disabled (RABBITMQ_ENABLED=false)")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if _, err := telemetry.Init(ctx, telemetry.FromAppConfig(&cfg.OTel, &cfg.App)); err != nil {
				logger.Warn("telemetry disabled", zap.Error(err))
			}
			defer func() { _ = telemetry.Shutdown(context.WithoutCancel(ctx)) }()

			renderer, err := notification.NewRenderer()
			if err != nil {
				return fmt.Errorf("load notification templates: %w", err)
			}
			messaging := notification.NewMessagingSender(notification.MessagingConfig{
				SMSURL:      cfg.Messaging.SMSURL,
				WhatsAppURL: cfg.Messaging.WhatsAppURL,
				APIKey:      cfg.Messaging.APIKey,
				Timeout:     cfg.Messaging.Timeout,
			}, renderer)
			senders := map[notification.Channel]notification.Sender{
				notification.ChannelEmail: notification.NewEmailSender(notification.SMTPConfig{
					Host:     cfg.SMTP.Host,
					Port:     cfg.SMTP.Port,
					Username: cfg.SMTP.Username,
					Password: cfg.SMTP.Password,
					From:     cfg.SMTP.From,
				}, renderer),
				notification.ChannelSMS:      messaging,
				notification.ChannelWhatsApp: messaging,
			}

			metrics, err := telemetry.NewFinanceMetrics()
			if err != nil {
				logger.Warn("notification metrics disabled", zap.Error(err))
			}

			consumer, err := rabbitmq.NewConsumer(di.RabbitConfig(&cfg.RabbitMQ))
			if err != nil {
				return err
			}
			defer consumer.Close()

			deliveries, err := consumer.Consume()
			if err != nil {
				return err
			}

			logger.Info("notification worker started", zap.String("queue", cfg.RabbitMQ.Queue))
			err = notification.NewWorker(senders, metrics).Run(ctx, deliveries)
			if errors.Is(err, context.Canceled) {
				logger.Info("notification worker stopped")
				return nil
			}
			return err
		},
	})

	return cmd
}
