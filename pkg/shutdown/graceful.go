package shutdown

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"
)

// WithSignals returns a context cancelled on SIGINT or SIGTERM.
func WithSignals(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
}

// Group runs long-lived workers; the first worker to fail cancels the rest.
type Group struct {
	log *slog.Logger
	eg  *errgroup.Group
	ctx context.Context
}

func NewGroup(ctx context.Context, log *slog.Logger) *Group {
	eg, ctx := errgroup.WithContext(ctx)
	return &Group{log: log, eg: eg, ctx: ctx}
}

func (g *Group) Context() context.Context { return g.ctx }

// Go starts fn. A context.Canceled result counts as a clean stop.
func (g *Group) Go(name string, fn func(ctx context.Context) error) {
	g.eg.Go(func() error {
		err := fn(g.ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			g.log.Error("worker stopped", "worker", name, "err", err)
			return err
		}
		g.log.Info("worker stopped", "worker", name)
		return nil
	})
}

func (g *Group) Wait() error { return g.eg.Wait() }
