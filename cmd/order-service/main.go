package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	auditkafka "github.com/dmehra2102/tenant-commerce/internal/audit/infrastructure/kafka"
	auditpg "github.com/dmehra2102/tenant-commerce/internal/audit/infrastructure/postgres"
	orderkafka "github.com/dmehra2102/tenant-commerce/internal/order/infrastructure/kafka"
	orderpg "github.com/dmehra2102/tenant-commerce/internal/order/infrastructure/postgres"
	"github.com/dmehra2102/tenant-commerce/internal/platform"
	"github.com/dmehra2102/tenant-commerce/pkg/config"
	"github.com/dmehra2102/tenant-commerce/pkg/idempotency"
	"github.com/dmehra2102/tenant-commerce/pkg/logging"
	"github.com/dmehra2102/tenant-commerce/pkg/outbox"
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

	tp, err := tracing.Init(ctx, "order-service", cfg.Tracing.Endpoint, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	app, err := platform.Open(ctx, log, cfg)
	if err != nil {
		log.Error("platform init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = app.Close() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reg.MustRegister(app.PrometheusCollectors()...)

	// Outbox relay over every tenant database
	writer := orderkafka.NewWriter(cfg.Kafka.Brokers)
	defer writer.Close()
	dispatch := outbox.NewDispatcher(log, writer, cfg.Kafka.Topic)
	sources := orderpg.Sources(log, app.Registry.Discoverer(cfg.Tenant.DiscoveryInterval))
	relay := outbox.NewRelay(log, sources, dispatch, "order-service-relay")

	// Audit consumer
	idem := idempotency.NewStore(app.Redis, cfg.Redis.IdempotencyTTL)
	reader := auditkafka.NewReader(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.AuditGroup)
	consumer := auditkafka.NewConsumer(log, reader, auditpg.NewRecorder(log, app.Registry), idem)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := app.Admin.Ping(r.Context()); err != nil {
			http.Error(w, "postgres unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	g := shutdown.NewGroup(ctx, log)
	g.Go("outbox-relay", relay.Run)
	g.Go("audit-consumer", consumer.Run)
	g.Go("http", func(ctx context.Context) error {
		log.Info("http listening", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go("http-shutdown", func(ctx context.Context) error {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("order-service stopped with error", "err", err)
	}
	log.Info("order-service shutdown complete")
}
