package application

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dmehra2102/tenant-commerce/internal/tenant/domain"
	"github.com/dmehra2102/tenant-commerce/pkg/apperr"
)

// Handle is one tenant's live connection.
type Handle struct {
	Tenant    domain.TenantID
	DB        DB
	CreatedAt time.Time

	checkedAt atomic.Int64
}

func (h *Handle) markChecked(t time.Time) { h.checkedAt.Store(t.UnixNano()) }

func (h *Handle) lastChecked() time.Time { return time.Unix(0, h.checkedAt.Load()) }

// Registry maps tenant ids to provisioned connections.
//
// Cached handles are read without locking. Provisioning runs at most once
// per tenant at a time and every caller that arrives meanwhile receives the
// same handle. Insert, evict and drop for a tenant are mutually exclusive.
//
// A Registry is ready after NewRegistry and must be released with Close.
type Registry struct {
	log     *slog.Logger
	prov    Provisioner
	metrics *Metrics
	now     func() time.Time

	provisionTimeout time.Duration
	livenessInterval time.Duration
	pingTimeout      time.Duration

	handles sync.Map // domain.TenantID -> *Handle
	locks   sync.Map // domain.TenantID -> *sync.Mutex
	group   singleflight.Group
	drops   atomic.Uint64
}

type Option func(*Registry)

func WithProvisionTimeout(d time.Duration) Option {
	return func(r *Registry) { r.provisionTimeout = d }
}

// WithLivenessInterval skips the ping for handles checked within d.
// Zero pings on every resolve.
func WithLivenessInterval(d time.Duration) Option {
	return func(r *Registry) { r.livenessInterval = d }
}

func WithPingTimeout(d time.Duration) Option {
	return func(r *Registry) { r.pingTimeout = d }
}

func WithMetrics(m *Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func NewRegistry(log *slog.Logger, prov Provisioner, opts ...Option) *Registry {
	r := &Registry{
		log:              log,
		prov:             prov,
		metrics:          NewMetrics(),
		now:              time.Now,
		provisionTimeout: 30 * time.Second,
		livenessInterval: 5 * time.Second,
		pingTimeout:      2 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) Metrics() *Metrics { return r.metrics }

// Resolve returns the live handle for tenantID, provisioning it on first use.
func (r *Registry) Resolve(ctx context.Context, tenantID string) (*Handle, error) {
	return r.resolve(ctx, tenantID, true)
}

// ResolveExisting is Resolve for tenants that must already have a database.
// It never creates one and reports a missing database as not_found.
func (r *Registry) ResolveExisting(ctx context.Context, tenantID string) (*Handle, error) {
	return r.resolve(ctx, tenantID, false)
}

func (r *Registry) resolve(ctx context.Context, tenantID string, create bool) (*Handle, error) {
	id, err := domain.ParseTenantID(tenantID)
	if err != nil {
		return nil, err
	}
	if h, ok := r.load(id); ok && r.alive(ctx, h) {
		r.metrics.Hits.Inc()
		return h, nil
	}

	key := string(id)
	if !create {
		key = "existing/" + key
	}
	ch := r.group.DoChan(key, func() (any, error) {
		return r.provision(ctx, id, create)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Handle), nil
	case <-ctx.Done():
		return nil, apperr.Infrastructure("tenant.Resolve", ctx.Err())
	}
}

func (r *Registry) provision(ctx context.Context, id domain.TenantID, create bool) (*Handle, error) {
	unlock := r.lock(id)
	defer unlock()

	if h, ok := r.load(id); ok {
		if r.alive(ctx, h) {
			return h, nil
		}
		r.evictLocked(id, h, "stale")
	}

	// Waiters share this flight, so it must outlive the first caller's context.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.provisionTimeout)
	defer cancel()

	start := r.now()
	open := r.prov.Provision
	if !create {
		open = r.prov.Open
	}
	db, err := open(pctx, id)
	if apperr.Is(err, apperr.KindNotFound) {
		return nil, err
	}
	if err != nil {
		r.metrics.Failures.Inc()
		r.log.ErrorContext(ctx, "tenant provisioning failed", "tenant_id", id, "err", err)
		return nil, apperr.Infrastructure("tenant.Resolve", err)
	}

	h := &Handle{Tenant: id, DB: db, CreatedAt: r.now()}
	h.markChecked(h.CreatedAt)
	r.handles.Store(id, h)
	r.metrics.Provisions.Inc()
	r.log.InfoContext(ctx, "tenant provisioned", "tenant_id", id, "took", r.now().Sub(start))
	return h, nil
}

func (r *Registry) alive(ctx context.Context, h *Handle) bool {
	now := r.now()
	if r.livenessInterval > 0 && now.Sub(h.lastChecked()) < r.livenessInterval {
		return true
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.pingTimeout)
	defer cancel()
	if err := h.DB.Ping(pctx); err != nil {
		r.log.WarnContext(ctx, "tenant connection failed liveness check", "tenant_id", h.Tenant, "err", err)
		return false
	}
	h.markChecked(now)
	return true
}

// Evict forgets the cached handle for tenantID and closes it.
func (r *Registry) Evict(tenantID string) {
	id, err := domain.ParseTenantID(tenantID)
	if err != nil {
		return
	}
	unlock := r.lock(id)
	defer unlock()
	if h, ok := r.load(id); ok {
		r.evictLocked(id, h, "manual")
	}
}

// Drop tears down the tenant's connection and backing database. It is best
// effort: failures are logged and never returned.
func (r *Registry) Drop(ctx context.Context, tenantID string) {
	id, err := domain.ParseTenantID(tenantID)
	if err != nil {
		r.log.WarnContext(ctx, "tenant drop skipped", "err", err)
		return
	}
	unlock := r.lock(id)
	defer unlock()

	if h, ok := r.load(id); ok {
		r.evictLocked(id, h, "drop")
	}
	r.drops.Add(1)
	if err := r.prov.Drop(ctx, id); err != nil {
		r.log.WarnContext(ctx, "tenant drop failed", "tenant_id", id, "err", err)
		return
	}
	r.log.InfoContext(ctx, "tenant dropped", "tenant_id", id)
}

// Tenants lists the tenants with a cached handle.
func (r *Registry) Tenants() []domain.TenantID {
	var ids []domain.TenantID
	r.handles.Range(func(k, _ any) bool {
		ids = append(ids, k.(domain.TenantID))
		return true
	})
	return ids
}

// Discover resolves every tenant database the provisioner knows about.
// Tenants that fail to resolve are logged and left out. Discovery never
// creates a database.
func (r *Registry) Discover(ctx context.Context) ([]*Handle, error) {
	ids, err := r.prov.List(ctx)
	if err != nil {
		return nil, apperr.Infrastructure("tenant.Discover", err)
	}
	return r.resolveAll(ctx, ids), nil
}

// Discoverer returns a Discover that lists tenant databases at most once per
// interval and re-resolves the previous listing in between. A Drop on this
// registry forces a fresh listing.
func (r *Registry) Discoverer(interval time.Duration) func(ctx context.Context) ([]*Handle, error) {
	var (
		mu       sync.Mutex
		listed   bool
		listedAt time.Time
		drops    uint64
		ids      []domain.TenantID
	)
	return func(ctx context.Context) ([]*Handle, error) {
		mu.Lock()
		defer mu.Unlock()
		if d := r.drops.Load(); !listed || d != drops || r.now().Sub(listedAt) >= interval {
			fresh, err := r.prov.List(ctx)
			if err != nil {
				return nil, apperr.Infrastructure("tenant.Discover", err)
			}
			ids, listed, listedAt, drops = fresh, true, r.now(), d
		}
		return r.resolveAll(ctx, ids), nil
	}
}

func (r *Registry) resolveAll(ctx context.Context, ids []domain.TenantID) []*Handle {
	handles := make([]*Handle, 0, len(ids))
	for _, id := range ids {
		h, err := r.ResolveExisting(ctx, string(id))
		if apperr.Is(err, apperr.KindNotFound) {
			r.log.DebugContext(ctx, "tenant discovery skipped missing database", "tenant_id", id)
			continue
		}
		if err != nil {
			r.log.WarnContext(ctx, "tenant discovery skipped tenant", "tenant_id", id, "err", err)
			continue
		}
		handles = append(handles, h)
	}
	return handles
}

// Close closes every cached handle.
func (r *Registry) Close() {
	r.handles.Range(func(k, v any) bool {
		id := k.(domain.TenantID)
		unlock := r.lock(id)
		r.evictLocked(id, v.(*Handle), "close")
		unlock()
		return true
	})
}

func (r *Registry) load(id domain.TenantID) (*Handle, bool) {
	v, ok := r.handles.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*Handle), true
}

func (r *Registry) evictLocked(id domain.TenantID, h *Handle, reason string) {
	if r.handles.CompareAndDelete(id, h) {
		h.DB.Close()
		r.metrics.Evictions.WithLabelValues(reason).Inc()
		r.log.Debug("tenant handle evicted", "tenant_id", id, "reason", reason)
	}
}

func (r *Registry) lock(id domain.TenantID) func() {
	v, _ := r.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
