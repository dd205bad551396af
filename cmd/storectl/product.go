package main

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	orderapp "github.com/dmehra2102/tenant-commerce/internal/order/application"
	"github.com/dmehra2102/tenant-commerce/internal/platform"
	"github.com/dmehra2102/tenant-commerce/pkg/apperr"
)

type productView struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	IsActive  bool            `json:"is_active"`
	IsDeleted bool            `json:"is_deleted"`
}

func (c *cli) newProductCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "product",
		Short: "Manage the tenant product catalog",
	}

	var (
		name     string
		price    string
		inactive bool
		deleted  bool
	)
	put := &cobra.Command{
		Use:   "put <product-id>",
		Short: "Create or replace a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireTenant(c); err != nil {
				return err
			}
			amount, err := decimal.NewFromString(price)
			if err != nil {
				return apperr.Validation("invalid --price %q", price)
			}
			p := orderapp.Product{ID: args[0], Name: name, Price: amount, IsActive: !inactive, IsDeleted: deleted}
			return c.run(cmd.Context(), func(ctx context.Context, app *platform.App) error {
				if err := app.Catalog.Put(ctx, c.tenant, p); err != nil {
					return err
				}
				if err := app.Cache.Invalidate(ctx, c.tenant, p.ID); err != nil {
					app.Log.WarnContext(ctx, "catalog cache invalidation failed", "product_id", p.ID, "err", err)
				}
				return c.print(productView(p))
			})
		},
	}
	put.Flags().StringVar(&name, "name", "", "Product name.")
	put.Flags().StringVar(&price, "price", "0", "Unit price.")
	put.Flags().BoolVar(&inactive, "inactive", false, "Store the product as inactive.")
	put.Flags().BoolVar(&deleted, "deleted", false, "Store the product as deleted.")

	get := &cobra.Command{
		Use:   "get <product-id>",
		Short: "Show a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireTenant(c); err != nil {
				return err
			}
			return c.run(cmd.Context(), func(ctx context.Context, app *platform.App) error {
				p, err := app.Cache.FindByID(ctx, c.tenant, args[0])
				if err != nil {
					return err
				}
				return c.print(productView(p))
			})
		},
	}

	cmd.AddCommand(put, get)
	return cmd
}
