package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	orderapp "github.com/dmehra2102/tenant-commerce/internal/order/application"
	"github.com/dmehra2102/tenant-commerce/internal/order/domain"
	"github.com/dmehra2102/tenant-commerce/internal/platform"
	"github.com/dmehra2102/tenant-commerce/pkg/apperr"
)

type itemRequest struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type draftRequest struct {
	Code            string          `json:"code"`
	CustomerID      string          `json:"customer_id"`
	Items           []itemRequest   `json:"items"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	ShippingFee     decimal.Decimal `json:"shipping_fee"`
	DeliveryAddress string          `json:"delivery_address"`
	Note            string          `json:"note"`
	PaymentMethod   string          `json:"payment_method"`
}

// patchRequest leaves absent fields untouched; "items" replaces every line.
type patchRequest struct {
	Code            *string          `json:"code"`
	CustomerID      *string          `json:"customer_id"`
	DeliveryAddress *string          `json:"delivery_address"`
	Note            *string          `json:"note"`
	PaymentMethod   *string          `json:"payment_method"`
	DiscountAmount  *decimal.Decimal `json:"discount_amount"`
	ShippingFee     *decimal.Decimal `json:"shipping_fee"`
	Items           []itemRequest    `json:"items"`
}

func itemInputs(items []itemRequest) []domain.ItemInput {
	if items == nil {
		return nil
	}
	out := make([]domain.ItemInput, 0, len(items))
	for _, it := range items {
		out = append(out, domain.ItemInput(it))
	}
	return out
}

func (r draftRequest) draft() domain.Draft {
	return domain.Draft{
		Code:            r.Code,
		CustomerID:      r.CustomerID,
		Items:           itemInputs(r.Items),
		DiscountAmount:  r.DiscountAmount,
		ShippingFee:     r.ShippingFee,
		DeliveryAddress: r.DeliveryAddress,
		Note:            r.Note,
		PaymentMethod:   r.PaymentMethod,
	}
}

func (r patchRequest) patch() domain.Patch {
	return domain.Patch{
		Code:            r.Code,
		CustomerID:      r.CustomerID,
		DeliveryAddress: r.DeliveryAddress,
		Note:            r.Note,
		PaymentMethod:   r.PaymentMethod,
		DiscountAmount:  r.DiscountAmount,
		ShippingFee:     r.ShippingFee,
		Items:           itemInputs(r.Items),
	}
}

type itemView struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

type orderView struct {
	ID               string          `json:"id"`
	Code             string          `json:"code"`
	CustomerID       string          `json:"customer_id"`
	Items            []itemView      `json:"items"`
	DiscountAmount   decimal.Decimal `json:"discount_amount"`
	ShippingFee      decimal.Decimal `json:"shipping_fee"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	TotalPaid        decimal.Decimal `json:"total_paid"`
	Status           domain.Status   `json:"status"`
	IsDeleted        bool            `json:"is_deleted"`
	DeliveryAddress  string          `json:"delivery_address,omitempty"`
	Note             string          `json:"note,omitempty"`
	PaymentMethod    string          `json:"payment_method,omitempty"`
	PaymentReference string          `json:"payment_reference,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	CreatedBy        string          `json:"created_by"`
	UpdatedBy        string          `json:"updated_by"`
	Version          int64           `json:"version"`
}

func viewOrder(o domain.Order) orderView {
	items := make([]itemView, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, itemView(it))
	}
	return orderView{
		ID:               o.ID,
		Code:             o.Code,
		CustomerID:       o.CustomerID,
		Items:            items,
		DiscountAmount:   o.DiscountAmount,
		ShippingFee:      o.ShippingFee,
		TotalAmount:      o.TotalAmount,
		TotalPaid:        o.TotalPaid,
		Status:           o.Status,
		IsDeleted:        o.IsDeleted,
		DeliveryAddress:  o.DeliveryAddress,
		Note:             o.Note,
		PaymentMethod:    o.PaymentMethod,
		PaymentReference: o.PaymentReference,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
		CreatedBy:        o.CreatedBy,
		UpdatedBy:        o.UpdatedBy,
		Version:          o.Version,
	}
}

// readJSON decodes path, or stdin when path is "-", rejecting unknown fields.
func readJSON(path string, stdin io.Reader, v any) error {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.Validation("invalid request body: %v", err)
	}
	return nil
}

func (c *cli) newOrderCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Create and manage tenant orders",
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return requireTenant(c)
		},
	}

	cmd.AddCommand(
		c.createCommand("create", "Create an order through catalog, inventory and payment", func(ctx context.Context, app *platform.App, d domain.Draft) (domain.Order, error) {
			return app.Saga.Create(ctx, c.tenant, d, c.user)
		}),
		c.createCommand("create-direct", "Store a validated order without reserving stock or charging", func(ctx context.Context, app *platform.App, d domain.Draft) (domain.Order, error) {
			return app.Orders.CreateOrder(ctx, c.tenant, d, c.user)
		}),
		c.getCommand(),
		c.listCommand(),
		c.updateCommand(),
		c.actionCommand("confirm", "Move a PENDING order to CONFIRMED", (*orderapp.Service).Confirm),
		c.actionCommand("ship", "Move a CONFIRMED order to SHIPPED", (*orderapp.Service).Ship),
		c.actionCommand("complete", "Move a SHIPPED order to DELIVERED", (*orderapp.Service).Complete),
		c.actionCommand("cancel", "Cancel a PENDING or CONFIRMED order", (*orderapp.Service).Cancel),
		c.actionCommand("delete", "Soft delete an order", (*orderapp.Service).Delete),
		c.actionCommand("restore", "Restore a soft deleted order", (*orderapp.Service).Restore),
	)
	return cmd
}

func (c *cli) createCommand(use, short string, create func(context.Context, *platform.App, domain.Draft) (domain.Order, error)) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var req draftRequest
			if err := readJSON(file, cmd.InOrStdin(), &req); err != nil {
				return err
			}
			return c.run(cmd.Context(), func(ctx context.Context, app *platform.App) error {
				o, err := create(ctx, app, req.draft())
				if err != nil {
					return err
				}
				return c.print(viewOrder(o))
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "JSON order draft, - for stdin.")
	return cmd
}

func (c *cli) getCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <order-id>",
		Short: "Show an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd.Context(), func(ctx context.Context, app *platform.App) error {
				o, err := app.Orders.FindOne(ctx, c.tenant, args[0])
				if err != nil {
					return err
				}
				return c.print(viewOrder(o))
			})
		},
	}
}

func (c *cli) listCommand() *cobra.Command {
	var (
		status string
		f      orderapp.ListFilter
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List orders, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if status != "" {
				s, err := domain.ParseStatus(status)
				if err != nil {
					return err
				}
				f.Status = s
			}
			return c.run(cmd.Context(), func(ctx context.Context, app *platform.App) error {
				orders, err := app.Orders.List(ctx, c.tenant, f)
				if err != nil {
					return err
				}
				views := make([]orderView, 0, len(orders))
				for _, o := range orders {
					views = append(views, viewOrder(o))
				}
				return c.print(views)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Only orders in this status.")
	cmd.Flags().StringVar(&f.CustomerID, "customer", "", "Only orders of this customer.")
	cmd.Flags().BoolVar(&f.IncludeDeleted, "include-deleted", false, "Include soft deleted orders.")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "Page size; 0 uses the service default.")
	cmd.Flags().IntVar(&f.Offset, "offset", 0, "Rows to skip.")
	return cmd
}

func (c *cli) updateCommand() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "update <order-id>",
		Short: "Change fields of a PENDING order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var req patchRequest
			if err := readJSON(file, cmd.InOrStdin(), &req); err != nil {
				return err
			}
			return c.run(cmd.Context(), func(ctx context.Context, app *platform.App) error {
				o, err := app.Orders.Update(ctx, c.tenant, args[0], req.patch(), c.user)
				if err != nil {
					return err
				}
				return c.print(viewOrder(o))
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "JSON patch, - for stdin.")
	return cmd
}

type orderAction func(s *orderapp.Service, ctx context.Context, tenantID, id, userID string) (domain.Order, error)

func (c *cli) actionCommand(use, short string, act orderAction) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <order-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd.Context(), func(ctx context.Context, app *platform.App) error {
				o, err := act(app.Orders, ctx, c.tenant, args[0], c.user)
				if err != nil {
					return err
				}
				return c.print(viewOrder(o))
			})
		},
	}
}
