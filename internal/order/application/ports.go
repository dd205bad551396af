package application

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/dmehra2102/tenant-commerce/internal/order/domain"
	"github.com/dmehra2102/tenant-commerce/pkg/outbox"
)

type ListFilter struct {
	Status         domain.Status
	CustomerID     string
	IncludeDeleted bool
	Limit          int
	Offset         int
}

// Repository persists one tenant's orders. Every write stages its audit
// message in the same transaction.
type Repository interface {
	Create(ctx context.Context, o domain.Order, audit outbox.Message) error
	// FindByID returns not_found for missing orders and, unless
	// includeDeleted is set, for soft-deleted ones.
	FindByID(ctx context.Context, id string, includeDeleted bool) (domain.Order, error)
	List(ctx context.Context, f ListFilter) ([]domain.Order, error)
	// Update stores o if the stored version still equals expected, and
	// returns conflict otherwise. o.Version must be expected+1.
	Update(ctx context.Context, o domain.Order, expected int64, audit outbox.Message) error
}

// Repositories hands out repositories bound to a tenant's database.
type Repositories interface {
	ForTenant(ctx context.Context, tenantID string) (Repository, error)
}

type Product struct {
	ID        string
	Name      string
	Price     decimal.Decimal
	IsActive  bool
	IsDeleted bool
}

// ProductCatalog returns not_found for unknown products.
type ProductCatalog interface {
	FindByID(ctx context.Context, tenantID, productID string) (Product, error)
}

type TransferRequest struct {
	ProductID string
	Quantity  int
	// Reference ties the transfer to the order it reserves stock for.
	Reference string
}

type TransferRecord struct {
	ID        string
	ProductID string
	Quantity  int
}

// InventoryReservation fails with reservation_failed on insufficient stock.
type InventoryReservation interface {
	CreateTransfer(ctx context.Context, tenantID string, req TransferRequest) (TransferRecord, error)
	ReleaseTransfer(ctx context.Context, tenantID, transferID string) error
	// ReleaseByReference releases any transfer of productID booked under
	// reference. It is safe to call when none exists.
	ReleaseByReference(ctx context.Context, tenantID, productID, reference string) error
}

type PaymentReceipt struct {
	ID     string
	Amount decimal.Decimal
	Method string
	Status string
}

// PaymentCapture fails with payment_declined when the payment is refused.
type PaymentCapture interface {
	Process(ctx context.Context, tenantID string, amount decimal.Decimal, method string) (PaymentReceipt, error)
	Refund(ctx context.Context, tenantID, receiptID string) error
}
