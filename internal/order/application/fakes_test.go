package application

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/dmehra2102/tenant-commerce/internal/order/domain"
	"github.com/dmehra2102/tenant-commerce/pkg/apperr"
	"github.com/dmehra2102/tenant-commerce/pkg/outbox"
)

// memRepo keeps one tenant's orders in memory with the same version
// semantics as the Postgres repository.
type memRepo struct {
	mu        sync.Mutex
	orders    map[string]domain.Order
	seq       map[string]int
	next      int
	outbox    []outbox.Message
	createErr error
}

func newMemRepo() *memRepo {
	return &memRepo{orders: map[string]domain.Order{}, seq: map[string]int{}}
}

func (r *memRepo) Create(_ context.Context, o domain.Order, msg outbox.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	for _, existing := range r.orders {
		if existing.Code == o.Code {
			return &apperr.Error{Kind: apperr.KindConstraint, Msg: "duplicate value on orders_code_key"}
		}
	}
	r.orders[o.ID] = clone(o)
	r.seq[o.ID] = r.next
	r.next++
	r.outbox = append(r.outbox, msg)
	return nil
}

func (r *memRepo) FindByID(_ context.Context, id string, includeDeleted bool) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || (o.IsDeleted && !includeDeleted) {
		return domain.Order{}, apperr.NotFound("order %s not found", id)
	}
	return clone(o), nil
}

func (r *memRepo) List(_ context.Context, f ListFilter) ([]domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Order
	for _, o := range r.orders {
		if o.IsDeleted && !f.IncludeDeleted {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.CustomerID != "" && o.CustomerID != f.CustomerID {
			continue
		}
		out = append(out, clone(o))
	}
	sort.Slice(out, func(i, j int) bool { return r.seq[out[i].ID] > r.seq[out[j].ID] })
	if f.Offset >= len(out) {
		return nil, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *memRepo) Update(_ context.Context, o domain.Order, expected int64, msg outbox.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.orders[o.ID]
	if !ok {
		return apperr.NotFound("order %s not found", o.ID)
	}
	if cur.Version != expected {
		return apperr.Conflict("order %s was modified concurrently", o.ID)
	}
	r.orders[o.ID] = clone(o)
	r.outbox = append(r.outbox, msg)
	return nil
}

func (r *memRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders)
}

func (r *memRepo) messages() []outbox.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]outbox.Message(nil), r.outbox...)
}

func clone(o domain.Order) domain.Order {
	o.Items = append([]domain.Item(nil), o.Items...)
	return o
}

type memRepos struct {
	mu      sync.Mutex
	tenants map[string]*memRepo
	err     error
}

func newMemRepos() *memRepos { return &memRepos{tenants: map[string]*memRepo{}} }

func (m *memRepos) ForTenant(_ context.Context, tenantID string) (Repository, error) {
	return m.repo(tenantID)
}

func (m *memRepos) repo(tenantID string) (*memRepo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if tenantID == "" {
		return nil, apperr.Validation("tenant id is required")
	}
	r, ok := m.tenants[tenantID]
	if !ok {
		r = newMemRepo()
		m.tenants[tenantID] = r
	}
	return r, nil
}

type fakeCatalog struct {
	products map[string]Product
	err      error
	calls    []string
}

func (c *fakeCatalog) FindByID(_ context.Context, _ string, productID string) (Product, error) {
	c.calls = append(c.calls, productID)
	if c.err != nil {
		return Product{}, c.err
	}
	p, ok := c.products[productID]
	if !ok {
		return Product{}, apperr.NotFound("product %s not found", productID)
	}
	return p, nil
}

type fakeInventory struct {
	mu        sync.Mutex
	stock     map[string]int
	failWith  error
	// lostReply books the transfer for this product and then fails as if
	// the reply timed out.
	lostReply string
	next      int
	created   []TransferRecord
	released  []string
	byRef     map[string][]string
	journal   *[]string
}

func (f *fakeInventory) CreateTransfer(_ context.Context, _ string, req TransferRequest) (TransferRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return TransferRecord{}, f.failWith
	}
	if f.stock[req.ProductID] < req.Quantity {
		return TransferRecord{}, apperr.New(apperr.KindReservationFailed, "insufficient stock for %s", req.ProductID)
	}
	f.stock[req.ProductID] -= req.Quantity
	f.next++
	rec := TransferRecord{ID: fmt.Sprintf("tr-%d", f.next), ProductID: req.ProductID, Quantity: req.Quantity}
	f.created = append(f.created, rec)
	if f.byRef == nil {
		f.byRef = map[string][]string{}
	}
	key := req.Reference + "/" + req.ProductID
	f.byRef[key] = append(f.byRef[key], rec.ID)
	f.note("reserve " + rec.ID)
	if f.lostReply == req.ProductID {
		return TransferRecord{}, context.DeadlineExceeded
	}
	return rec, nil
}

func (f *fakeInventory) ReleaseByReference(_ context.Context, _ string, productID, reference string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := reference + "/" + productID
	for _, id := range f.byRef[key] {
		for _, tr := range f.created {
			if tr.ID == id {
				f.stock[tr.ProductID] += tr.Quantity
			}
		}
	}
	delete(f.byRef, key)
	f.note("release-ref " + productID)
	return nil
}

func (f *fakeInventory) ReleaseTransfer(_ context.Context, _ string, transferID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tr := range f.created {
		if tr.ID == transferID {
			f.stock[tr.ProductID] += tr.Quantity
		}
	}
	for key, ids := range f.byRef {
		f.byRef[key] = slices.DeleteFunc(ids, func(id string) bool { return id == transferID })
	}
	f.released = append(f.released, transferID)
	f.note("release " + transferID)
	return nil
}

func (f *fakeInventory) note(s string) {
	if f.journal != nil {
		*f.journal = append(*f.journal, s)
	}
}

type fakePayment struct {
	err       error
	refundErr error
	charged   []decimal.Decimal
	refunded  []string
	journal   *[]string
}

func (p *fakePayment) Process(_ context.Context, _ string, amount decimal.Decimal, method string) (PaymentReceipt, error) {
	if p.err != nil {
		return PaymentReceipt{}, p.err
	}
	p.charged = append(p.charged, amount)
	id := fmt.Sprintf("pi_%d", len(p.charged))
	if p.journal != nil {
		*p.journal = append(*p.journal, "charge "+id)
	}
	return PaymentReceipt{ID: id, Amount: amount, Method: method, Status: "succeeded"}, nil
}

func (p *fakePayment) Refund(_ context.Context, _ string, receiptID string) error {
	p.refunded = append(p.refunded, receiptID)
	if p.journal != nil {
		*p.journal = append(*p.journal, "refund "+receiptID)
	}
	return p.refundErr
}

var errBoom = errors.New("boom")
