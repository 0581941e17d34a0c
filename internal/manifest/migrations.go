package manifest

import (
	"context"
	"database/sql"
	"fmt"
)

type migration struct {
	version int
	name    string
	up      string
}

// migrations must stay append-only; applied versions are never re-run.
var migrations = []migration{
	{
		version: 1,
		name:    "create_sources_table",
		up: `
			CREATE TABLE IF NOT EXISTS sources (
				path TEXT PRIMARY KEY,
				hash TEXT NOT NULL,
				run_id TEXT NOT NULL,
				variant_count INTEGER NOT NULL,
				processed_at TIMESTAMP NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_sources_run_id
			ON sources(run_id);
		`,
	},
	{
		version: 2,
		name:    "create_variants_table",
		up: `
			CREATE TABLE IF NOT EXISTS variants (
				source_path TEXT NOT NULL REFERENCES sources(path) ON DELETE CASCADE,
				idx INTEGER NOT NULL,
				output_path TEXT NOT NULL,
				PRIMARY KEY (source_path, idx)
			);
		`,
	},
	{
		version: 3,
		name:    "add_sources_fingerprint",
		up: `
			ALTER TABLE sources ADD COLUMN fingerprint TEXT NOT NULL DEFAULT '';
		`,
	},
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	current := 0
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", m.version, err)
		}
		if _, err := tx.ExecContext(ctx, m.up); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d (%s): %w", m.version, m.name, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, name) VALUES (?, ?)", m.version, m.name); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.version, err)
		}
	}

	return nil
}
