package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/dmehra2102/tenant-commerce/internal/order/application"
)

type cachedProduct struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	IsActive  bool            `json:"is_active"`
	IsDeleted bool            `json:"is_deleted"`
}

// CachedCatalog keeps catalog lookups in Redis for ttl. Misses and Redis
// failures fall through to next; not-found answers are never cached.
type CachedCatalog struct {
	log  *slog.Logger
	next application.ProductCatalog
	rdb  redis.Cmdable
	ttl  time.Duration
}

var _ application.ProductCatalog = (*CachedCatalog)(nil)

func NewCachedCatalog(log *slog.Logger, next application.ProductCatalog, rdb redis.Cmdable, ttl time.Duration) *CachedCatalog {
	return &CachedCatalog{log: log, next: next, rdb: rdb, ttl: ttl}
}

func (c *CachedCatalog) Key(tenantID, productID string) string {
	return fmt.Sprintf("catalog:%s:product:%s", tenantID, productID)
}

func (c *CachedCatalog) FindByID(ctx context.Context, tenantID, productID string) (application.Product, error) {
	key := c.Key(tenantID, productID)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cp cachedProduct
		if err := json.Unmarshal(raw, &cp); err == nil {
			return application.Product(cp), nil
		}
		c.log.WarnContext(ctx, "catalog cache entry unreadable", "key", key)
	case !errors.Is(err, redis.Nil):
		c.log.WarnContext(ctx, "catalog cache get failed", "key", key, "err", err)
	}

	p, err := c.next.FindByID(ctx, tenantID, productID)
	if err != nil {
		return application.Product{}, err
	}
	if raw, err := json.Marshal(cachedProduct(p)); err == nil {
		if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			c.log.WarnContext(ctx, "catalog cache set failed", "key", key, "err", err)
		}
	}
	return p, nil
}

// Invalidate drops the cached entry for a product.
func (c *CachedCatalog) Invalidate(ctx context.Context, tenantID, productID string) error {
	return c.rdb.Del(ctx, c.Key(tenantID, productID)).Err()
}
