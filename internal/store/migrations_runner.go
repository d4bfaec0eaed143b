package store

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/jw6ventures/crmcal/internal/migrations"
)

// PgxPool is the subset of pgxpool.Pool the store uses. Tests supply a
// scripted implementation.
type PgxPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// ApplyMigrations brings the schema up to date with the embedded SQL files.
// A database that already has tables but no schema_migrations table is
// assumed to carry the first migration; only later ones are applied.
func ApplyMigrations(ctx context.Context, pool PgxPool, logger *zap.Logger) error {
	return applyMigrations(ctx, pool, migrations.Files, logger)
}

func applyMigrations(ctx context.Context, pool PgxPool, files fs.FS, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	names, err := listMigrationFiles(files)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return nil
	}

	tracked, err := queryBool(ctx, pool, "check migration table", `SELECT EXISTS (
        SELECT 1 FROM information_schema.tables
        WHERE table_schema='public' AND table_name='schema_migrations'
)`)
	if err != nil {
		return err
	}

	if !tracked {
		var tables int
		if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM information_schema.tables
WHERE table_schema NOT IN ('pg_catalog', 'information_schema')`).Scan(&tables); err != nil {
			return fmt.Errorf("count tables: %w", err)
		}
		if _, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
        version TEXT PRIMARY KEY,
        applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`); err != nil {
			return fmt.Errorf("create schema_migrations: %w", err)
		}
		if tables > 0 {
			logger.Info("existing schema without migration tracking, baselining", zap.String("version", names[0]))
			if err := recordMigration(ctx, pool, names[0]); err != nil {
				return err
			}
		}
	}

	applied := 0
	for _, name := range names {
		done, err := queryBool(ctx, pool, "check migration "+name,
			`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version=$1)`, name)
		if err != nil {
			return err
		}
		if done {
			continue
		}
		if err := applyMigration(ctx, pool, files, name); err != nil {
			return err
		}
		logger.Info("applied migration", zap.String("version", name))
		applied++
	}
	logger.Debug("migrations up to date", zap.Int("applied", applied), zap.Int("total", len(names)))
	return nil
}

func listMigrationFiles(files fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(files, ".")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

func queryBool(ctx context.Context, pool PgxPool, what, q string, args ...any) (bool, error) {
	var v bool
	if err := pool.QueryRow(ctx, q, args...).Scan(&v); err != nil {
		return false, fmt.Errorf("%s: %w", what, err)
	}
	return v, nil
}

func applyMigration(ctx context.Context, pool PgxPool, files fs.FS, name string) error {
	contents, err := fs.ReadFile(files, name)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", name, err)
	}

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", name, err)
	}
	if _, err := tx.Exec(ctx, string(contents)); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("apply migration %s: %w", name, err)
	}
	if err := recordMigration(ctx, tx, name); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit migration %s: %w", name, err)
	}
	return nil
}

func recordMigration(ctx context.Context, db execer, name string) error {
	const q = `INSERT INTO schema_migrations (version) VALUES ($1) ON CONFLICT (version) DO NOTHING`
	if _, err := db.Exec(ctx, q, name); err != nil {
		return fmt.Errorf("record migration %s: %w", name, err)
	}
	return nil
}
