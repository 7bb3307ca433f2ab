package main

import (
	"context"

	"github.com/prohmpiriya/eventdesk/internal/di"
	"github.com/prohmpiriya/eventdesk/pkg/logger"
	"github.com/spf13/cobra"
)

// withContainer runs fn against a fully wired container, without the audit writer
func withContainer(cmd *cobra.Command, fn func(ctx context.Context, c *di.Container) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx := cmd.Context()
	infra, err := di.Connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer infra.Close()

	container, err := di.NewContainer(&di.ContainerConfig{Config: cfg, Infra: infra})
	if err != nil {
		return err
	}
	defer container.Close()

	return fn(ctx, container)
}
