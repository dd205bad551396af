package postgres

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/tenant-commerce/internal/tenant/application"
	"github.com/dmehra2102/tenant-commerce/internal/tenant/domain"
	"github.com/dmehra2102/tenant-commerce/pkg/apperr"
)

// Provisioner backs each tenant with its own database on one Postgres server.
// Tenant pools inherit the admin connection settings with the database swapped.
type Provisioner struct {
	log        *slog.Logger
	admin      *pgxpool.Pool
	prefix     string
	maxConns   int32
	migrator   *Migrator
	migrations fs.FS
}

var _ application.Provisioner = (*Provisioner)(nil)

func NewProvisioner(log *slog.Logger, admin *pgxpool.Pool, prefix string, maxConns int32) *Provisioner {
	return &Provisioner{
		log:        log,
		admin:      admin,
		prefix:     prefix,
		maxConns:   maxConns,
		migrator:   NewMigrator(log),
		migrations: Migrations,
	}
}

func (p *Provisioner) databaseName(id domain.TenantID) (string, error) {
	name, ok := domain.DatabaseName(p.prefix, id)
	if !ok {
		return "", fmt.Errorf("tenant %q cannot name a database", id)
	}
	return name, nil
}

func (p *Provisioner) Provision(ctx context.Context, id domain.TenantID) (application.DB, error) {
	name, err := p.databaseName(id)
	if err != nil {
		return nil, err
	}
	if err := p.ensureDatabase(ctx, name); err != nil {
		return nil, err
	}
	return p.open(ctx, name)
}

func (p *Provisioner) Open(ctx context.Context, id domain.TenantID) (application.DB, error) {
	name, err := p.databaseName(id)
	if err != nil {
		return nil, err
	}
	exists, err := p.exists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperr.NotFound("tenant %s has no database", id)
	}
	return p.open(ctx, name)
}

func (p *Provisioner) open(ctx context.Context, name string) (application.DB, error) {
	cfg := p.admin.Config().Copy()
	cfg.ConnConfig.Database = name
	if p.maxConns > 0 {
		cfg.MaxConns = p.maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping %s: %w", name, err)
	}
	if err := p.migrator.Up(ctx, pool, p.migrations); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate %s: %w", name, err)
	}
	return pool, nil
}

func (p *Provisioner) exists(ctx context.Context, name string) (bool, error) {
	var exists bool
	if err := p.admin.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)`, name).Scan(&exists); err != nil {
		return false, fmt.Errorf("lookup %s: %w", name, err)
	}
	return exists, nil
}

func (p *Provisioner) ensureDatabase(ctx context.Context, name string) error {
	exists, err := p.exists(ctx, name)
	if err != nil || exists {
		return err
	}

	_, err = p.admin.Exec(ctx, "CREATE DATABASE "+pgx.Identifier{name}.Sanitize())
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.DuplicateDatabase {
		// Another process won the race.
		return nil
	}
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	p.log.InfoContext(ctx, "tenant database created", "database", name)
	return nil
}

func (p *Provisioner) Drop(ctx context.Context, id domain.TenantID) error {
	name, err := p.databaseName(id)
	if err != nil {
		return err
	}
	if _, err := p.admin.Exec(ctx, "DROP DATABASE IF EXISTS "+pgx.Identifier{name}.Sanitize()+" WITH (FORCE)"); err != nil {
		return fmt.Errorf("drop %s: %w", name, err)
	}
	return nil
}

func (p *Provisioner) List(ctx context.Context) ([]domain.TenantID, error) {
	rows, err := p.admin.Query(ctx, `SELECT datname FROM pg_database
		WHERE NOT datistemplate AND starts_with(datname, $1)
		ORDER BY datname`, p.prefix)
	if err != nil {
		return nil, err
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}

	ids := make([]domain.TenantID, 0, len(names))
	for _, name := range names {
		if id, ok := domain.TenantFromDatabase(p.prefix, name); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
