package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
)

// Migrate applies every pending .sql file from dir against the repository's
// pool, in lexical order. Applied file names are tracked in schema_migrations
// so reruns are no-ops; each file runs inside its own transaction.
func (r *PostgresRepository) Migrate(ctx context.Context, dir string) error {
	if _, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := r.appliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return fmt.Errorf("failed to list migrations in %s: %w", dir, err)
	}
	sort.Strings(files)

	for _, file := range files {
		name := filepath.Base(file)
		if applied[name] {
			slog.Debug("migration already applied", "migration", name)
			continue
		}

		if err := r.applyMigration(ctx, file, name); err != nil {
			return err
		}
		slog.Info("migration applied", "migration", name)
	}

	return nil
}

func (r *PostgresRepository) applyMigration(ctx context.Context, file, name string) error {
	content, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("failed to read migration %s: %w", name, err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for %s: %w", name, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, string(content)); err != nil {
		return fmt.Errorf("failed to execute migration %s: %w", name, err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, name); err != nil {
		return fmt.Errorf("failed to record migration %s: %w", name, err)
	}

	return tx.Commit(ctx)
}

func (r *PostgresRepository) appliedMigrations(ctx context.Context) (map[string]bool, error) {
	rows, err := r.pool.Query(ctx, `SELECT name FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		applied[name] = true
	}

	return applied, rows.Err()
}
