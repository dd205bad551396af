package main

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/dmehra2102/tenant-commerce/internal/inventory/application"
	"github.com/dmehra2102/tenant-commerce/internal/inventory/domain"
	invgrpc "github.com/dmehra2102/tenant-commerce/internal/inventory/infrastructure/grpc"
	"github.com/dmehra2102/tenant-commerce/pkg/config"
	"github.com/dmehra2102/tenant-commerce/pkg/logging"
	"github.com/dmehra2102/tenant-commerce/pkg/shutdown"
	"github.com/dmehra2102/tenant-commerce/pkg/tracing"
)

func main() {
	cfg, err := config.Load(config.New())
	if err != nil {
		logging.New("info").Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	log := logging.New(cfg.Log.Level)

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	tp, err := tracing.Init(ctx, "inventory-service", cfg.Tracing.Endpoint, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ledger := domain.NewLedger(uuid.NewString, func() time.Time { return time.Now().UTC() })
	svc := application.NewService(log, ledger)
	if path := cfg.Inventory.SeedFile; path != "" {
		f, err := os.Open(path)
		if err != nil {
			log.Error("open seed file failed", "path", path, "err", err)
			os.Exit(1)
		}
		err = svc.LoadSeed(f)
		_ = f.Close()
		if err != nil {
			log.Error("load seed file failed", "path", path, "err", err)
			os.Exit(1)
		}
	}

	gs := invgrpc.NewGRPCServer(log, invgrpc.NewServer(log, svc))

	g := shutdown.NewGroup(ctx, log)
	g.Go("grpc", func(ctx context.Context) error {
		log.Info("grpc listening", "addr", cfg.Inventory.ListenAddr)
		return invgrpc.Run(cfg.Inventory.ListenAddr, gs)
	})
	g.Go("grpc-shutdown", func(ctx context.Context) error {
		<-ctx.Done()
		gs.GracefulStop()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("inventory-service stopped with error", "err", err)
	}
	log.Info("inventory-service shutdown complete")
}
