package main

import (
	"fmt"

	"github.com/prohmpiriya/eventdesk/migrations"
	"github.com/prohmpiriya/eventdesk/pkg/database"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply embedded SQL migrations not yet recorded in schema_migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := database.NewPostgres(cmd.Context(), database.FromAppConfig(&cfg.Database))
			if err != nil {
				return err
			}
			defer db.Close()

			applied, err := db.Migrate(cmd.Context(), migrations.FS)
			for _, v := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", v)
			}
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the embedded migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := database.PendingMigrations(migrations.FS)
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	})

	return cmd
}
