package domain

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrUnknownProduct    = errors.New("unknown product")
	ErrTransferNotFound  = errors.New("transfer not found")
)

// Transfer moves Quantity units of a product out of available stock.
type Transfer struct {
	ID         string
	TenantID   string
	ProductID  string
	Quantity   int
	Reference  string
	CreatedAt  time.Time
	ReleasedAt time.Time
}

func (t Transfer) Released() bool { return !t.ReleasedAt.IsZero() }

// Ledger tracks available stock per tenant and product. It is safe for
// concurrent use.
type Ledger struct {
	mu        sync.Mutex
	stock     map[string]map[string]int
	transfers map[string]*Transfer
	newID     func() string
	now       func() time.Time
}

func NewLedger(newID func() string, now func() time.Time) *Ledger {
	return &Ledger{
		stock:     map[string]map[string]int{},
		transfers: map[string]*Transfer{},
		newID:     newID,
		now:       now,
	}
}

// Seed sets the available quantity of a product.
func (l *Ledger) Seed(tenantID, productID string, qty int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stock[tenantID] == nil {
		l.stock[tenantID] = map[string]int{}
	}
	l.stock[tenantID][productID] = qty
}

func (l *Ledger) Available(tenantID, productID string) (int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	qty, ok := l.stock[tenantID][productID]
	return qty, ok
}

// Products returns the tenant's product ids in order.
func (l *Ledger) Products(tenantID string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := make([]string, 0, len(l.stock[tenantID]))
	for id := range l.stock[tenantID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Reserve takes qty units out of stock and records the transfer.
func (l *Ledger) Reserve(tenantID, productID string, qty int, reference string) (Transfer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	available, ok := l.stock[tenantID][productID]
	if !ok {
		return Transfer{}, fmt.Errorf("%w %s", ErrUnknownProduct, productID)
	}
	if available < qty {
		return Transfer{}, fmt.Errorf("%w for %s: %d available, %d requested", ErrInsufficientStock, productID, available, qty)
	}
	l.stock[tenantID][productID] = available - qty

	t := &Transfer{
		ID:        l.newID(),
		TenantID:  tenantID,
		ProductID: productID,
		Quantity:  qty,
		Reference: reference,
		CreatedAt: l.now(),
	}
	l.transfers[t.ID] = t
	return *t, nil
}

// ReleaseReference releases every open transfer of productID booked under
// reference and returns them. Nothing matching is not an error.
func (l *Ledger) ReleaseReference(tenantID, productID, reference string) []Transfer {
	l.mu.Lock()
	defer l.mu.Unlock()

	var released []Transfer
	for _, t := range l.transfers {
		if t.TenantID != tenantID || t.ProductID != productID || t.Reference != reference || t.Released() {
			continue
		}
		l.stock[tenantID][productID] += t.Quantity
		t.ReleasedAt = l.now()
		released = append(released, *t)
	}
	sort.Slice(released, func(i, j int) bool { return released[i].CreatedAt.Before(released[j].CreatedAt) })
	return released
}

// Release returns a transfer's units to stock. Releasing twice is a no-op.
func (l *Ledger) Release(tenantID, transferID string) (Transfer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.transfers[transferID]
	if !ok || t.TenantID != tenantID {
		return Transfer{}, fmt.Errorf("%w: %s", ErrTransferNotFound, transferID)
	}
	if t.Released() {
		return *t, nil
	}
	l.stock[tenantID][t.ProductID] += t.Quantity
	t.ReleasedAt = l.now()
	return *t, nil
}
