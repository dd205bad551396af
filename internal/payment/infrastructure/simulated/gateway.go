// Package simulated is an in-process payment gateway for development and
// tests: charges up to a limit are captured, larger ones are declined.
package simulated

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/dmehra2102/tenant-commerce/internal/payment/application"
	"github.com/dmehra2102/tenant-commerce/internal/payment/domain"
)

// DefaultLimit is 10,000.00 in minor units.
const DefaultLimit int64 = 1_000_000

type Gateway struct {
	log   *slog.Logger
	limit int64

	mu       sync.Mutex
	captured map[string]domain.Charge
	byKey    map[string]string
	refunded map[string]bool
}

var _ application.Gateway = (*Gateway)(nil)

func NewGateway(log *slog.Logger, limit int64) *Gateway {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Gateway{
		log:      log,
		limit:    limit,
		captured: make(map[string]domain.Charge),
		byKey:    make(map[string]string),
		refunded: make(map[string]bool),
	}
}

func (g *Gateway) Charge(ctx context.Context, c domain.Charge) (domain.Result, error) {
	if err := ctx.Err(); err != nil {
		return domain.Result{}, err
	}
	if c.AmountMinor > g.limit {
		return domain.Result{Status: domain.StatusDeclined, Reason: "amount too high"}, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if id, ok := g.byKey[c.IdempotencyKey]; ok && c.IdempotencyKey != "" {
		return domain.Result{ID: id, Status: domain.StatusCaptured}, nil
	}
	id := "sim_" + uuid.NewString()
	g.captured[id] = c
	if c.IdempotencyKey != "" {
		g.byKey[c.IdempotencyKey] = id
	}
	g.log.DebugContext(ctx, "simulated charge captured", "payment_id", id, "amount_minor", c.AmountMinor)
	return domain.Result{ID: id, Status: domain.StatusCaptured}, nil
}

// Refund is idempotent per charge.
func (g *Gateway) Refund(ctx context.Context, chargeID, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.captured[chargeID]; !ok {
		return fmt.Errorf("simulated: unknown charge %s", chargeID)
	}
	g.refunded[chargeID] = true
	return nil
}

// Refunded reports whether the charge was refunded.
func (g *Gateway) Refunded(chargeID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.refunded[chargeID]
}
