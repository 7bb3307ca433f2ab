package database

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

const createMigrationsTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version    TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)
`

// PendingMigrations returns the *.sql files in fsys, in lexical order
func PendingMigrations(fsys fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Migrate applies every migration in fsys not yet recorded in schema_migrations.
// Each file runs in its own transaction.
func (db *PostgresDB) Migrate(ctx context.Context, fsys fs.FS) ([]string, error) {
	if err := db.Exec(ctx, createMigrationsTable); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}

	names, err := PendingMigrations(fsys)
	if err != nil {
		return nil, err
	}

	var applied []string
	for _, name := range names {
		version := strings.TrimSuffix(name, ".sql")

		var exists bool
		if err := db.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", version,
		).Scan(&exists); err != nil {
			return applied, fmt.Errorf("check migration %s: %w", version, err)
		}
		if exists {
			continue
		}

		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			return applied, fmt.Errorf("read migration %s: %w", name, err)
		}

		err = db.WithinTx(ctx, func(ctx context.Context) error {
			if err := db.Exec(ctx, string(body)); err != nil {
				return err
			}
			return db.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", version)
		})
		if err != nil {
			return applied, fmt.Errorf("apply migration %s: %w", version, err)
		}
		applied = append(applied, version)
	}

	return applied, nil
}
