// Package platform assembles the tenant registry, the order services and
// their collaborators from a Config. Both the daemon and the CLI open one.
package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"

	catalogpg "github.com/dmehra2102/tenant-commerce/internal/catalog/infrastructure/postgres"
	catalogcache "github.com/dmehra2102/tenant-commerce/internal/catalog/infrastructure/redis"
	orchestrator "github.com/dmehra2102/tenant-commerce/internal/orchestrator/application"
	orderapp "github.com/dmehra2102/tenant-commerce/internal/order/application"
	ordergrpc "github.com/dmehra2102/tenant-commerce/internal/order/infrastructure/grpc"
	orderpg "github.com/dmehra2102/tenant-commerce/internal/order/infrastructure/postgres"
	paymentapp "github.com/dmehra2102/tenant-commerce/internal/payment/application"
	"github.com/dmehra2102/tenant-commerce/internal/payment/infrastructure/simulated"
	"github.com/dmehra2102/tenant-commerce/internal/payment/infrastructure/stripe"
	tenantapp "github.com/dmehra2102/tenant-commerce/internal/tenant/application"
	tenantpg "github.com/dmehra2102/tenant-commerce/internal/tenant/infrastructure/postgres"
	"github.com/dmehra2102/tenant-commerce/pkg/config"
)

type App struct {
	Log         *slog.Logger
	Config      config.Config
	Admin       *pgxpool.Pool
	Redis       *redis.Client
	Registry    *tenantapp.Registry
	Catalog     *catalogpg.Catalog
	Cache       *catalogcache.CachedCatalog
	Orders      *orderapp.Service
	Saga        *orderapp.Saga
	Coordinator *orchestrator.Coordinator

	inventory *grpc.ClientConn
}

func Open(ctx context.Context, log *slog.Logger, cfg config.Config) (*App, error) {
	admin, err := pgxpool.New(ctx, cfg.Postgres.AdminURL)
	if err != nil {
		return nil, fmt.Errorf("platform: connect admin database: %w", err)
	}
	a := &App{Log: log, Config: cfg, Admin: admin}

	prov := tenantpg.NewProvisioner(log, admin, cfg.Postgres.DatabasePrefix, cfg.Postgres.MaxConns)
	a.Registry = tenantapp.NewRegistry(log, prov,
		tenantapp.WithProvisionTimeout(cfg.Tenant.ProvisionTimeout),
		tenantapp.WithLivenessInterval(cfg.Tenant.LivenessInterval),
		tenantapp.WithPingTimeout(cfg.Tenant.PingTimeout),
	)

	a.Redis = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	a.Catalog = catalogpg.NewCatalog(log, a.Registry)
	a.Cache = catalogcache.NewCachedCatalog(log, a.Catalog, a.Redis, cfg.Redis.CatalogTTL)

	a.inventory, err = ordergrpc.Dial(cfg.Inventory.Addr)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("platform: dial inventory: %w", err)
	}
	inventory := ordergrpc.NewInventoryClient(log, a.inventory)

	gateway, err := paymentGateway(log, cfg.Stripe)
	if err != nil {
		a.Close()
		return nil, err
	}
	payments := paymentapp.NewService(log, gateway, cfg.Stripe.Currency)

	repos := orderpg.NewRepositories(log, a.Registry)
	a.Coordinator = orchestrator.NewCoordinator(log)
	a.Orders = orderapp.NewService(log, repos)
	a.Saga = orderapp.NewSaga(log, repos, a.Cache, inventory, payments,
		orderapp.WithCollaboratorTimeout(cfg.Saga.CollaboratorTimeout),
		orderapp.WithCoordinator(a.Coordinator),
	)
	return a, nil
}

// paymentGateway selects Stripe when an API key is configured.
func paymentGateway(log *slog.Logger, cfg config.StripeConfig) (paymentapp.Gateway, error) {
	if cfg.APIKey == "" {
		log.Warn("stripe.api_key not set, using the simulated payment gateway")
		return simulated.NewGateway(log, simulated.DefaultLimit), nil
	}
	return stripe.NewGateway(log, stripe.Config{APIKey: cfg.APIKey})
}

func (a *App) PrometheusCollectors() []prometheus.Collector {
	return append(a.Registry.Metrics().PrometheusCollectors(), a.Coordinator.PrometheusCollectors()...)
}

// Close releases tenant handles and shared connections.
func (a *App) Close() error {
	var errs []error
	if a.Registry != nil {
		a.Registry.Close()
	}
	if a.inventory != nil {
		errs = append(errs, a.inventory.Close())
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	a.Admin.Close()
	return errors.Join(errs...)
}
