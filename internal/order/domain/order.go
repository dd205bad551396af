package domain

import (
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"github.com/dmehra2102/tenant-commerce/pkg/apperr"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusShipped   Status = "SHIPPED"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

// Statuses lists every status in lifecycle order.
func Statuses() []Status {
	return []Status{StatusPending, StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled}
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// ParseStatus accepts a status name in any case.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", apperr.Validation("unknown order status %q", raw)
	}
	return s, nil
}

// Item is one order line. It belongs to exactly one order.
type Item struct {
	ProductID   string
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
	TotalPrice  decimal.Decimal
}

type Order struct {
	ID               string
	Code             string
	CustomerID       string
	Items            []Item
	DiscountAmount   decimal.Decimal
	ShippingFee      decimal.Decimal
	TotalAmount      decimal.Decimal
	TotalPaid        decimal.Decimal
	Status           Status
	IsDeleted        bool
	DeliveryAddress  string
	Note             string
	PaymentMethod    string
	PaymentReference string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	CreatedBy        string
	UpdatedBy        string
	Version          int64
}

// ItemInput is a line as supplied by a caller. Totals are never taken from input.
type ItemInput struct {
	ProductID   string
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
}

// Draft is everything a caller provides to create an order.
type Draft struct {
	Code            string
	CustomerID      string
	Items           []ItemInput
	DiscountAmount  decimal.Decimal
	ShippingFee     decimal.Decimal
	DeliveryAddress string
	Note            string
	PaymentMethod   string
}

// NewCode returns a fresh human readable order code.
func NewCode() string {
	return "ORD-" + ulid.Make().String()
}

// NewOrder validates d and builds a PENDING order with computed totals.
func NewOrder(id string, d Draft, userID string, now time.Time) (Order, error) {
	if err := ValidateDraft(d); err != nil {
		return Order{}, err
	}
	code := d.Code
	if code == "" {
		code = NewCode()
	}
	o := Order{
		ID:              id,
		Code:            code,
		CustomerID:      d.CustomerID,
		Items:           newItems(d.Items),
		DiscountAmount:  d.DiscountAmount,
		ShippingFee:     d.ShippingFee,
		Status:          StatusPending,
		DeliveryAddress: d.DeliveryAddress,
		Note:            d.Note,
		PaymentMethod:   d.PaymentMethod,
		CreatedAt:       now,
		UpdatedAt:       now,
		CreatedBy:       userID,
		UpdatedBy:       userID,
		Version:         1,
	}
	if err := o.recalculate(); err != nil {
		return Order{}, err
	}
	return o, nil
}

func newItems(in []ItemInput) []Item {
	items := make([]Item, 0, len(in))
	for _, it := range in {
		items = append(items, Item{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			TotalPrice:  it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))),
		})
	}
	return items
}

// Totals returns the gross amount of items and what the customer pays
// after discount and shipping.
func Totals(items []Item, discount, shipping decimal.Decimal) (amount, paid decimal.Decimal) {
	amount = decimal.Zero
	for _, it := range items {
		amount = amount.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return amount, amount.Sub(discount).Add(shipping)
}

func (o *Order) recalculate() error {
	for i := range o.Items {
		o.Items[i].TotalPrice = o.Items[i].UnitPrice.Mul(decimal.NewFromInt(int64(o.Items[i].Quantity)))
	}
	o.TotalAmount, o.TotalPaid = Totals(o.Items, o.DiscountAmount, o.ShippingFee)
	if o.TotalPaid.IsNegative() {
		return apperr.Validation("discount %s exceeds order total %s", o.DiscountAmount, o.TotalAmount.Add(o.ShippingFee))
	}
	return nil
}

// Patch holds field updates. Nil fields are left unchanged.
type Patch struct {
	Code            *string
	CustomerID      *string
	DeliveryAddress *string
	Note            *string
	PaymentMethod   *string
	DiscountAmount  *decimal.Decimal
	ShippingFee     *decimal.Decimal
	Items           []ItemInput
}

func (p Patch) Empty() bool {
	return p.Code == nil && p.CustomerID == nil && p.DeliveryAddress == nil && p.Note == nil &&
		p.PaymentMethod == nil && p.DiscountAmount == nil && p.ShippingFee == nil && p.Items == nil
}

// Update applies p. Only PENDING orders accept field updates.
func (o *Order) Update(p Patch, userID string, now time.Time) error {
	if o.Status != StatusPending {
		return apperr.InvalidState("order %s is %s; only PENDING orders can be updated", o.ID, o.Status)
	}

	next := *o
	if p.Code != nil {
		next.Code = *p.Code
	}
	if p.CustomerID != nil {
		next.CustomerID = *p.CustomerID
	}
	if p.DeliveryAddress != nil {
		next.DeliveryAddress = *p.DeliveryAddress
	}
	if p.Note != nil {
		next.Note = *p.Note
	}
	if p.PaymentMethod != nil {
		next.PaymentMethod = *p.PaymentMethod
	}
	if p.DiscountAmount != nil {
		next.DiscountAmount = *p.DiscountAmount
	}
	if p.ShippingFee != nil {
		next.ShippingFee = *p.ShippingFee
	}

	lines := make([]ItemInput, 0, len(o.Items))
	if p.Items != nil {
		lines = p.Items
	} else {
		for _, it := range o.Items {
			lines = append(lines, ItemInput{ProductID: it.ProductID, ProductName: it.ProductName, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
		}
	}
	if err := ValidateDraft(next.draft(lines)); err != nil {
		return err
	}
	if next.Code == "" {
		return apperr.Validation("order code cannot be blank")
	}
	next.Items = newItems(lines)
	if err := next.recalculate(); err != nil {
		return err
	}

	next.UpdatedAt = now
	next.UpdatedBy = userID
	*o = next
	return nil
}

func (o Order) draft(items []ItemInput) Draft {
	return Draft{
		Code:            o.Code,
		CustomerID:      o.CustomerID,
		Items:           items,
		DiscountAmount:  o.DiscountAmount,
		ShippingFee:     o.ShippingFee,
		DeliveryAddress: o.DeliveryAddress,
		Note:            o.Note,
		PaymentMethod:   o.PaymentMethod,
	}
}

// Delete hides the order. Its status is kept.
func (o *Order) Delete(userID string, now time.Time) error {
	if o.IsDeleted {
		return apperr.InvalidState("order %s is already deleted", o.ID)
	}
	o.IsDeleted = true
	o.UpdatedAt = now
	o.UpdatedBy = userID
	return nil
}

func (o *Order) Restore(userID string, now time.Time) error {
	if !o.IsDeleted {
		return apperr.InvalidState("order %s is not deleted", o.ID)
	}
	o.IsDeleted = false
	o.UpdatedAt = now
	o.UpdatedBy = userID
	return nil
}
