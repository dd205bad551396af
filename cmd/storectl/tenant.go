package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmehra2102/tenant-commerce/internal/platform"
	tenantapp "github.com/dmehra2102/tenant-commerce/internal/tenant/application"
)

type tenantView struct {
	Tenant    string    `json:"tenant"`
	CreatedAt time.Time `json:"connected_at"`
}

func viewTenant(h *tenantapp.Handle) tenantView {
	return tenantView{Tenant: string(h.Tenant), CreatedAt: h.CreatedAt}
}

func (c *cli) newTenantCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Provision, inspect and drop tenant databases",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "resolve <tenant>",
			Short: "Provision the tenant database if needed and migrate it",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.run(cmd.Context(), func(ctx context.Context, app *platform.App) error {
					h, err := app.Registry.Resolve(ctx, args[0])
					if err != nil {
						return err
					}
					return c.print(viewTenant(h))
				})
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List provisioned tenants",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return c.run(cmd.Context(), func(ctx context.Context, app *platform.App) error {
					handles, err := app.Registry.Discover(ctx)
					if err != nil {
						return err
					}
					views := make([]tenantView, 0, len(handles))
					for _, h := range handles {
						views = append(views, viewTenant(h))
					}
					return c.print(views)
				})
			},
		},
		&cobra.Command{
			Use:   "drop <tenant>",
			Short: "Close the tenant's connections and destroy its database",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.run(cmd.Context(), func(ctx context.Context, app *platform.App) error {
					app.Registry.Drop(ctx, args[0])
					return nil
				})
			},
		},
	)
	return cmd
}
