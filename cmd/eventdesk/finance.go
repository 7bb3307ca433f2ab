package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/prohmpiriya/eventdesk/internal/di"
	"github.com/prohmpiriya/eventdesk/internal/service"
	"github.com/spf13/cobra"
)

func financeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "finance",
		Short: "Inspect and migrate tenant finance modes",
	}

	var (
		tenantID string
		dryRun   bool
	)
	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Move a tenant from legacy to tenant finance mode",
		Long: `Runs the migration gate for one tenant: a default tax structure must exist and no
draft invoices or pending payments may remain. With --dry-run only the checks run.

Examples:
  eventdesk finance migrate --tenant 6f1c... --dry-run
  eventdesk finance migrate --tenant 6f1c...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, func(ctx context.Context, c *di.Container) error {
				report, err := c.FinanceModeService.Migrate(ctx, tenantID, "cli", dryRun)
				if report != nil {
					w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
					fmt.Fprintf(w, "tenant\t%s\n", report.TenantID)
					fmt.Fprintf(w, "mode\t%s -> %s\n", report.FromMode, report.ToMode)
					for _, check := range report.Checks {
						status := "ok"
						if !check.Passed {
							status = "FAIL " + check.Message
						}
						fmt.Fprintf(w, "check %s\t%s\n", check.Name, status)
					}
					fmt.Fprintf(w, "migrated\t%t\n", report.Migrated)
					_ = w.Flush()
				}
				if errors.Is(err, service.ErrMigrationBlocked) {
					return fmt.Errorf("migration blocked for tenant %s", tenantID)
				}
				return err
			})
		},
	}
	migrate.Flags().StringVar(&tenantID, "tenant", "", "tenant ID")
	migrate.Flags().BoolVar(&dryRun, "dry-run", false, "run the checks without migrating")
	_ = migrate.MarkFlagRequired("tenant")

	var modeTenant string
	mode := &cobra.Command{
		Use:   "mode",
		Short: "Show a tenant's finance mode",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, func(ctx context.Context, c *di.Container) error {
				m, err := c.FinanceModeService.Get(ctx, modeTenant)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", m.TenantID, m.Mode)
				return nil
			})
		},
	}
	mode.Flags().StringVar(&modeTenant, "tenant", "", "tenant ID")
	_ = mode.MarkFlagRequired("tenant")

	cmd.AddCommand(migrate, mode)
	return cmd
}
