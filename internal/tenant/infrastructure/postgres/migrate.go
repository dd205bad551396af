package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/dmehra2102/tenant-commerce/internal/tenant/application"
)

//go:embed migrations/*.sql
var embedded embed.FS

// Migrations is the tenant schema, one script per version.
var Migrations, _ = fs.Sub(embedded, "migrations")

// advisoryLockKey serialises migrators racing on the same tenant database.
const advisoryLockKey int64 = 0x7465_6e61_6e74

type Migrator struct {
	log *slog.Logger
}

func NewMigrator(log *slog.Logger) *Migrator {
	return &Migrator{log: log}
}

// Up applies every script in source newer than the database's recorded version.
// All scripts run in one transaction.
func (m *Migrator) Up(ctx context.Context, db application.DB, source fs.FS) error {
	list, err := fs.ReadDir(source, ".")
	if err != nil {
		return err
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Name() < list[j].Name()
	})
	if len(list) == 0 {
		return nil
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, advisoryLockKey); err != nil {
		return fmt.Errorf("lock migrations: %w", err)
	}
	if _, err := tx.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INT PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	current, err := userVersion(ctx, tx)
	if err != nil {
		return err
	}
	final, err := scriptVersion(list[len(list)-1].Name())
	if err != nil {
		return err
	}
	if final <= current {
		return tx.Commit(ctx)
	}
	m.log.InfoContext(ctx, "applying tenant migrations", "from", current, "to", final)

	for _, f := range list {
		name := f.Name()
		v, err := scriptVersion(name)
		if err != nil {
			return err
		}
		if v <= current {
			continue
		}
		script, err := fs.ReadFile(source, name)
		if err != nil {
			return err
		}
		m.log.DebugContext(ctx, "executing tenant migration", "migration_name", name)
		// No arguments, so pgx sends the script over the simple protocol and
		// multiple statements are allowed.
		if _, err := tx.Exec(ctx, string(script)); err != nil {
			return fmt.Errorf("migration %s: %w", name, err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, v, name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
		current = v
	}
	return tx.Commit(ctx)
}

func userVersion(ctx context.Context, tx pgx.Tx) (int, error) {
	var v int
	if err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

// scriptVersion extracts the version from a file named like "0002_outbox.sql".
func scriptVersion(filename string) (int, error) {
	vString, _, ok := strings.Cut(filename, "_")
	if !ok {
		return 0, fmt.Errorf("migration %q: missing version prefix", filename)
	}
	v, err := strconv.Atoi(vString)
	if err != nil {
		return 0, fmt.Errorf("migration %q: %w", filename, err)
	}
	return v, nil
}
