package main

import (
	"context"
	"fmt"
	"os"

	"github.com/prohmpiriya/eventdesk/internal/di"
	"github.com/prohmpiriya/eventdesk/internal/service"
	"github.com/spf13/cobra"
)

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load reference data from YAML files",
	}

	var file string
	taxes := &cobra.Command{
		Use:   "tax-structures",
		Short: "Create a tenant's tax structures from a YAML seed file",
		Long: `Seed file format:

  tenant: acme-events
  tax_structures:
    - name: GST 18%
      inclusive: false
      is_default: true
      components:
        - {name: CGST, rate_bps: 900}
        - {name: SGST, rate_bps: 900}

Structures whose name already exists for the tenant are skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()

			seed, err := service.LoadTaxSeed(f)
			if err != nil {
				return err
			}
			return withContainer(cmd, func(ctx context.Context, c *di.Container) error {
				n, err := c.TaxService.Seed(ctx, seed)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created %d tax structure(s) for %s\n", n, seed.TenantSlug)
				return nil
			})
		},
	}
	taxes.Flags().StringVarP(&file, "file", "f", "", "YAML seed file")
	_ = taxes.MarkFlagRequired("file")

	cmd.AddCommand(taxes)
	return cmd
}
