package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/dmehra2102/tenant-commerce/internal/order/application"
	"github.com/dmehra2102/tenant-commerce/internal/order/domain"
	tenantapp "github.com/dmehra2102/tenant-commerce/internal/tenant/application"
	"github.com/dmehra2102/tenant-commerce/pkg/apperr"
	"github.com/dmehra2102/tenant-commerce/pkg/dberr"
	"github.com/dmehra2102/tenant-commerce/pkg/outbox"
)

type Resolver interface {
	Resolve(ctx context.Context, tenantID string) (*tenantapp.Handle, error)
}

// Repositories binds repositories to tenant databases through the registry.
type Repositories struct {
	log      *slog.Logger
	resolver Resolver
}

var _ application.Repositories = (*Repositories)(nil)

func NewRepositories(log *slog.Logger, resolver Resolver) *Repositories {
	return &Repositories{log: log, resolver: resolver}
}

func (r *Repositories) ForTenant(ctx context.Context, tenantID string) (application.Repository, error) {
	h, err := r.resolver.Resolve(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return NewRepository(r.log.With("tenant_id", string(h.Tenant)), h.DB), nil
}

type Repository struct {
	log *slog.Logger
	db  tenantapp.DB
}

var _ application.Repository = (*Repository)(nil)

func NewRepository(log *slog.Logger, db tenantapp.DB) *Repository {
	return &Repository{log: log, db: db}
}

const orderColumns = `id::text, code, customer_id,
	discount_amount::text, shipping_fee::text, total_amount::text, total_paid::text,
	status, is_deleted, delivery_address, note, payment_method, payment_reference,
	created_by, updated_by, created_at, updated_at, version`

func (r *Repository) Create(ctx context.Context, o domain.Order, audit outbox.Message) error {
	id, err := uuid.Parse(o.ID)
	if err != nil {
		return apperr.Validation("order id %q is not a uuid", o.ID)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return dberr.Map("orders.Create", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx, `INSERT INTO orders (id, code, customer_id,
			discount_amount, shipping_fee, total_amount, total_paid,
			status, is_deleted, delivery_address, note, payment_method, payment_reference,
			created_by, updated_by, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric, $7::numeric,
			$8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		id, o.Code, o.CustomerID,
		o.DiscountAmount.String(), o.ShippingFee.String(), o.TotalAmount.String(), o.TotalPaid.String(),
		string(o.Status), o.IsDeleted, o.DeliveryAddress, o.Note, o.PaymentMethod, o.PaymentReference,
		o.CreatedBy, o.UpdatedBy, o.CreatedAt, o.UpdatedAt, o.Version,
	)
	if err != nil {
		return dberr.Map("orders.Create", err)
	}
	if err := insertItems(ctx, tx, id, o.Items); err != nil {
		return dberr.Map("orders.Create", err)
	}
	if err := Stage(ctx, tx, audit); err != nil {
		return dberr.Map("orders.Create", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return dberr.Map("orders.Create", err)
	}
	return nil
}

func insertItems(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, items []domain.Item) error {
	batch := &pgx.Batch{}
	for i, it := range items {
		batch.Queue(`INSERT INTO order_items (order_id, position, product_id, product_name, quantity, unit_price, total_price)
			VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric)`,
			orderID, i, it.ProductID, it.ProductName, it.Quantity, it.UnitPrice.String(), it.TotalPrice.String())
	}
	return tx.SendBatch(ctx, batch).Close()
}

func (r *Repository) FindByID(ctx context.Context, id string, includeDeleted bool) (domain.Order, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return domain.Order{}, apperr.NotFound("order %s not found", id)
	}

	q := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if !includeDeleted {
		q += ` AND NOT is_deleted`
	}
	o, err := scanOrder(r.db.QueryRow(ctx, q, uid))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, apperr.NotFound("order %s not found", id)
	}
	if err != nil {
		return domain.Order{}, dberr.Map("orders.FindByID", err)
	}

	items, err := r.items(ctx, []uuid.UUID{uid})
	if err != nil {
		return domain.Order{}, dberr.Map("orders.FindByID", err)
	}
	o.Items = items[o.ID]
	return o, nil
}

func (r *Repository) List(ctx context.Context, f application.ListFilter) ([]domain.Order, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if !f.IncludeDeleted {
		where = append(where, "NOT is_deleted")
	}
	if f.Status != "" {
		where = append(where, "status = "+arg(string(f.Status)))
	}
	if f.CustomerID != "" {
		where = append(where, "customer_id = "+arg(f.CustomerID))
	}

	q := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY created_at DESC, id`
	if f.Limit > 0 {
		q += ` LIMIT ` + arg(f.Limit)
	}
	if f.Offset > 0 {
		q += ` OFFSET ` + arg(f.Offset)
	}

	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, dberr.Map("orders.List", err)
	}
	orders, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Order, error) {
		return scanOrder(row)
	})
	if err != nil {
		return nil, dberr.Map("orders.List", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]uuid.UUID, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, uuid.MustParse(o.ID))
	}
	items, err := r.items(ctx, ids)
	if err != nil {
		return nil, dberr.Map("orders.List", err)
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, nil
}

func (r *Repository) Update(ctx context.Context, o domain.Order, expected int64, audit outbox.Message) error {
	id, err := uuid.Parse(o.ID)
	if err != nil {
		return apperr.NotFound("order %s not found", o.ID)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return dberr.Map("orders.Update", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	ct, err := tx.Exec(ctx, `UPDATE orders SET
			code = $3, customer_id = $4,
			discount_amount = $5::numeric, shipping_fee = $6::numeric,
			total_amount = $7::numeric, total_paid = $8::numeric,
			status = $9, is_deleted = $10, delivery_address = $11, note = $12,
			payment_method = $13, payment_reference = $14,
			updated_by = $15, updated_at = $16, version = $17
		WHERE id = $1 AND version = $2`,
		id, expected,
		o.Code, o.CustomerID,
		o.DiscountAmount.String(), o.ShippingFee.String(), o.TotalAmount.String(), o.TotalPaid.String(),
		string(o.Status), o.IsDeleted, o.DeliveryAddress, o.Note, o.PaymentMethod, o.PaymentReference,
		o.UpdatedBy, o.UpdatedAt, o.Version,
	)
	if err != nil {
		return dberr.Map("orders.Update", err)
	}
	if ct.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
			return dberr.Map("orders.Update", err)
		}
		if !exists {
			return apperr.NotFound("order %s not found", o.ID)
		}
		return apperr.Conflict("order %s was modified concurrently; reload and retry", o.ID)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, id); err != nil {
		return dberr.Map("orders.Update", err)
	}
	if err := insertItems(ctx, tx, id, o.Items); err != nil {
		return dberr.Map("orders.Update", err)
	}
	if err := Stage(ctx, tx, audit); err != nil {
		return dberr.Map("orders.Update", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return dberr.Map("orders.Update", err)
	}
	return nil
}

func (r *Repository) items(ctx context.Context, ids []uuid.UUID) (map[string][]domain.Item, error) {
	rows, err := r.db.Query(ctx, `SELECT order_id::text, product_id, product_name, quantity, unit_price::text, total_price::text
		FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, position`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]domain.Item, len(ids))
	for rows.Next() {
		var (
			orderID     string
			it          domain.Item
			unit, total string
		)
		if err := rows.Scan(&orderID, &it.ProductID, &it.ProductName, &it.Quantity, &unit, &total); err != nil {
			return nil, err
		}
		if it.UnitPrice, err = decimal.NewFromString(unit); err != nil {
			return nil, err
		}
		if it.TotalPrice, err = decimal.NewFromString(total); err != nil {
			return nil, err
		}
		out[orderID] = append(out[orderID], it)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var (
		o                                domain.Order
		status                           string
		discount, shipping, amount, paid string
	)
	err := row.Scan(&o.ID, &o.Code, &o.CustomerID,
		&discount, &shipping, &amount, &paid,
		&status, &o.IsDeleted, &o.DeliveryAddress, &o.Note, &o.PaymentMethod, &o.PaymentReference,
		&o.CreatedBy, &o.UpdatedBy, &o.CreatedAt, &o.UpdatedAt, &o.Version)
	if err != nil {
		return domain.Order{}, err
	}
	o.Status = domain.Status(status)

	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&o.DiscountAmount, discount},
		{&o.ShippingFee, shipping},
		{&o.TotalAmount, amount},
		{&o.TotalPaid, paid},
	} {
		if *f.dst, err = decimal.NewFromString(f.src); err != nil {
			return domain.Order{}, fmt.Errorf("order %s: %w", o.ID, err)
		}
	}
	return o, nil
}
