package postgres

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/dmehra2102/tenant-commerce/internal/order/application"
	tenantapp "github.com/dmehra2102/tenant-commerce/internal/tenant/application"
	"github.com/dmehra2102/tenant-commerce/pkg/apperr"
	"github.com/dmehra2102/tenant-commerce/pkg/dberr"
)

type Resolver interface {
	Resolve(ctx context.Context, tenantID string) (*tenantapp.Handle, error)
}

// Catalog reads products from the tenant's products table.
type Catalog struct {
	log      *slog.Logger
	resolver Resolver
}

var _ application.ProductCatalog = (*Catalog)(nil)

func NewCatalog(log *slog.Logger, resolver Resolver) *Catalog {
	return &Catalog{log: log, resolver: resolver}
}

func (c *Catalog) FindByID(ctx context.Context, tenantID, productID string) (application.Product, error) {
	h, err := c.resolver.Resolve(ctx, tenantID)
	if err != nil {
		return application.Product{}, err
	}

	var (
		p     application.Product
		price string
	)
	err = h.DB.QueryRow(ctx, `SELECT id, name, price::text, is_active, is_deleted FROM products WHERE id = $1`, productID).
		Scan(&p.ID, &p.Name, &price, &p.IsActive, &p.IsDeleted)
	if errors.Is(err, pgx.ErrNoRows) {
		return application.Product{}, apperr.NotFound("product %s not found", productID)
	}
	if err != nil {
		return application.Product{}, dberr.Map("catalog.FindByID", err)
	}
	if p.Price, err = decimal.NewFromString(price); err != nil {
		return application.Product{}, apperr.Infrastructure("catalog.FindByID", err)
	}
	return p, nil
}

// Put creates or replaces a product.
func (c *Catalog) Put(ctx context.Context, tenantID string, p application.Product) error {
	if strings.TrimSpace(p.ID) == "" || strings.TrimSpace(p.Name) == "" {
		return apperr.Validation("product id and name are required")
	}
	if p.Price.IsNegative() {
		return apperr.Validation("product price cannot be negative")
	}
	h, err := c.resolver.Resolve(ctx, tenantID)
	if err != nil {
		return err
	}
	_, err = h.DB.Exec(ctx, `INSERT INTO products (id, name, price, is_active, is_deleted, updated_at)
		VALUES ($1, $2, $3::numeric, $4, $5, now())
		ON CONFLICT (id) DO UPDATE SET name = $2, price = $3::numeric, is_active = $4, is_deleted = $5, updated_at = now()`,
		p.ID, p.Name, p.Price.String(), p.IsActive, p.IsDeleted)
	if err != nil {
		return dberr.Map("catalog.Put", err)
	}
	c.log.InfoContext(ctx, "product stored", "tenant_id", tenantID, "product_id", p.ID)
	return nil
}
