package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prohmpiriya/eventdesk/internal/di"
	"github.com/spf13/cobra"
)

func registrationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registrations",
		Short: "Maintain attendee registrations",
	}

	var (
		olderThan time.Duration
		limit     int
	)
	expire := &cobra.Command{
		Use:   "expire",
		Short: "Cancel unpaid pending registrations and free their seats",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, func(ctx context.Context, c *di.Container) error {
				ttl := olderThan
				if ttl == 0 {
					ttl = c.Config.Finance.PendingRegistrationTTL
				}
				if ttl <= 0 {
					return errors.New("set --older-than or FINANCE_PENDING_REGISTRATION_TTL")
				}
				expired, released, err := c.RegistrationService.ExpireStale(ctx, time.Now().Add(-ttl), limit)
				fmt.Fprintf(cmd.OutOrStdout(), "expired %d registration(s), released %d seat(s)\n", expired, released)
				return err
			})
		},
	}
	expire.Flags().DurationVar(&olderThan, "older-than", 0, "pending age to expire (defaults to FINANCE_PENDING_REGISTRATION_TTL)")
	expire.Flags().IntVar(&limit, "limit", 500, "maximum registrations to expire")

	cmd.AddCommand(expire)
	return cmd
}
