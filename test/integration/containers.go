//go:build integration

// Package integration runs the stores against real Postgres and Kafka
// containers. Run with: go test -tags integration ./test/integration/...
package integration

import (
	"context"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

type Env struct {
	PG    *postgres.PostgresContainer
	Kafka *kafka.KafkaContainer
	PGURL string
	KAddr []string
}

// Setup starts the containers; startup as a whole is bounded by two minutes.
func Setup(ctx context.Context) (*Env, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	pgC, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("postgres"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	if err != nil {
		return nil, err
	}
	env := &Env{PG: pgC}

	if env.PGURL, err = pgC.ConnectionString(ctx, "sslmode=disable"); err != nil {
		env.Teardown(context.Background())
		return nil, err
	}

	env.Kafka, err = kafka.Run(ctx,
		"confluentinc/confluent-local:7.5.0",
		kafka.WithClusterID("tenant-commerce-it"),
	)
	if err != nil {
		env.Teardown(context.Background())
		return nil, err
	}
	if env.KAddr, err = env.Kafka.Brokers(ctx); err != nil {
		env.Teardown(context.Background())
		return nil, err
	}
	return env, nil
}

func (e *Env) Teardown(ctx context.Context) {
	if e.Kafka != nil {
		_ = e.Kafka.Terminate(ctx)
	}
	if e.PG != nil {
		_ = e.PG.Terminate(ctx)
	}
}
