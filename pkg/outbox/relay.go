package outbox

import (
	"context"
	"log/slog"
	"time"
)

type Store interface {
	LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]Event, error)
	MarkSent(ctx context.Context, ids []int64) error
	MarkFailed(ctx context.Context, id int64, errMsg string) error
	ExtendLease(ctx context.Context, relayID string, ids []int64, lease time.Duration) error
}

// Source is one tenant's outbox.
type Source struct {
	TenantID string
	Store    Store
}

// SourceFunc lists the outboxes to drain on a tick.
type SourceFunc func(ctx context.Context) ([]Source, error)

type Relay struct {
	log       *slog.Logger
	sources   SourceFunc
	dispatch  *Dispatcher
	relayID   string
	batchSize int
	interval  time.Duration
	lease     time.Duration
}

func NewRelay(log *slog.Logger, sources SourceFunc, dispatch *Dispatcher, relayID string) *Relay {
	return &Relay{
		log:       log,
		sources:   sources,
		dispatch:  dispatch,
		relayID:   relayID,
		batchSize: 100,
		interval:  500 * time.Millisecond,
		lease:     5 * time.Second,
	}
}

func (r *Relay) Run(ctx context.Context) error {
	t := time.NewTicker(r.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("relay stopping", "relay_id", r.relayID)
			return nil
		case <-t.C:
			r.Tick(ctx)
		}
	}
}

// Tick drains one batch from every source.
func (r *Relay) Tick(ctx context.Context) {
	sources, err := r.sources(ctx)
	if err != nil {
		r.log.Error("relay list sources error", "err", err)
		return
	}
	for _, src := range sources {
		r.drain(ctx, src)
	}
}

func (r *Relay) drain(ctx context.Context, src Source) {
	events, err := src.Store.LockBatch(ctx, r.relayID, r.batchSize, r.lease)
	if err != nil {
		r.log.Error("relay lock batch error", "tenant_id", src.TenantID, "err", err)
		return
	}
	if len(events) == 0 {
		return
	}

	ids := make([]int64, 0, len(events))
	for _, e := range events {
		e.TenantID = src.TenantID
		if err := r.dispatch.Dispatch(ctx, e); err != nil {
			if err := src.Store.MarkFailed(ctx, e.ID, err.Error()); err != nil {
				r.log.Error("relay mark failed error", "tenant_id", src.TenantID, "event_id", e.ID, "err", err)
			}
			continue
		}
		ids = append(ids, e.ID)
	}
	if len(ids) > 0 {
		if err := src.Store.MarkSent(ctx, ids); err != nil {
			r.log.Error("relay mark sent error", "tenant_id", src.TenantID, "err", err)
		}
	}
}
