package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/prohmpiriya/eventdesk/internal/di"
	"github.com/prohmpiriya/eventdesk/internal/service"
	"github.com/spf13/cobra"
)

func webhooksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webhooks",
		Short: "Operate on the webhook log",
	}

	var (
		logID       string
		unprocessed bool
		limit       int
	)
	replay := &cobra.Command{
		Use:   "replay",
		Short: "Re-run processing from stored webhook payloads",
		Long: `Replays one logged webhook (--id) or the oldest unprocessed ones (--unprocessed).
Signatures are not re-verified: only verified deliveries are ever logged.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (logID == "") == !unprocessed {
				return errors.New("specify exactly one of --id or --unprocessed")
			}
			return withContainer(cmd, func(ctx context.Context, c *di.Container) error {
				out := cmd.OutOrStdout()
				if logID != "" {
					result, err := c.WebhookService.Replay(ctx, logID)
					if result != nil {
						fmt.Fprintf(out, "%s\t%s\t%s\n", logID, result.Outcome, result.Note)
					}
					if err != nil && !service.IsPermanent(err) {
						return err
					}
					return nil
				}

				results, err := c.WebhookService.ReplayUnprocessed(ctx, limit)
				for _, r := range results {
					fmt.Fprintf(out, "%s\t%s\t%s\n", r.LogID, r.Outcome, r.Note)
				}
				fmt.Fprintf(out, "replayed %d webhook(s)\n", len(results))
				return err
			})
		},
	}
	replay.Flags().StringVar(&logID, "id", "", "webhook log ID")
	replay.Flags().BoolVar(&unprocessed, "unprocessed", false, "replay unprocessed logs, oldest first")
	replay.Flags().IntVar(&limit, "limit", 100, "maximum logs to replay with --unprocessed")

	cmd.AddCommand(replay)
	return cmd
}
