package application

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmehra2102/tenant-commerce/internal/tenant/domain"
)

// DB is the part of *pgxpool.Pool that tenant-scoped repositories use.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// Provisioner owns the backing databases.
type Provisioner interface {
	// Provision creates the tenant database when missing, brings its schema
	// up to date and returns a connection pool for it.
	Provision(ctx context.Context, id domain.TenantID) (DB, error)
	// Open is Provision for an existing database. A missing database is
	// reported with an apperr not_found error.
	Open(ctx context.Context, id domain.TenantID) (DB, error)
	// Drop removes the tenant database.
	Drop(ctx context.Context, id domain.TenantID) error
	// List returns every tenant that currently has a database.
	List(ctx context.Context) ([]domain.TenantID, error)
}
