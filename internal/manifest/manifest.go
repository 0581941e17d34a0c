// Package manifest records which source images have been augmented, with
// their content hash, so unchanged sources can be skipped on later runs.
package manifest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("manifest: source not recorded")

// Entry is one augmented source and the files written for it.
type Entry struct {
	SourcePath  string
	Hash        string
	// Fingerprint identifies the settings the outputs were produced with.
	Fingerprint string
	RunID       string
	ProcessedAt time.Time
	Outputs     []string
}

const connectionPragmas = "_pragma=busy_timeout(5000)" +
	"&_pragma=foreign_keys(1)" +
	"&_pragma=journal_mode(WAL)" +
	"&_pragma=synchronous(NORMAL)"

type Store struct {
	db *sql.DB
}

// Open creates the database file and its parent directory when missing and
// applies pending migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("manifest path cannot be empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create manifest directory: %w", err)
		}
	}

	// Pragmas are per connection; the _pragma DSN parameters make the driver
	// apply them to every connection the pool opens, not just the first.
	db, err := sql.Open("sqlite", path+"?"+connectionPragmas)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping manifest: %w", err)
	}

	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

const upsertSourceQuery = `
	INSERT INTO sources (path, hash, fingerprint, run_id, variant_count, processed_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(path) DO UPDATE SET
		hash = excluded.hash,
		fingerprint = excluded.fingerprint,
		run_id = excluded.run_id,
		variant_count = excluded.variant_count,
		processed_at = excluded.processed_at
`

// Record upserts e and replaces its variant rows in one transaction.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.SourcePath == "" {
		return fmt.Errorf("source path cannot be empty")
	}
	if e.Hash == "" {
		return fmt.Errorf("hash cannot be empty for %s", e.SourcePath)
	}
	processedAt := e.ProcessedAt
	if processedAt.IsZero() {
		processedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, upsertSourceQuery,
		e.SourcePath, e.Hash, e.Fingerprint, e.RunID, len(e.Outputs), processedAt.UTC()); err != nil {
		return fmt.Errorf("failed to upsert source %s: %w", e.SourcePath, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM variants WHERE source_path = ?", e.SourcePath); err != nil {
		return fmt.Errorf("failed to clear variants of %s: %w", e.SourcePath, err)
	}
	for i, out := range e.Outputs {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO variants (source_path, idx, output_path) VALUES (?, ?, ?)",
			e.SourcePath, i, out); err != nil {
			return fmt.Errorf("failed to insert variant %d of %s: %w", i, e.SourcePath, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s: %w", e.SourcePath, err)
	}
	return nil
}

func (s *Store) Lookup(ctx context.Context, sourcePath string) (*Entry, error) {
	e := &Entry{SourcePath: sourcePath}
	err := s.db.QueryRowContext(ctx,
		"SELECT hash, fingerprint, run_id, processed_at FROM sources WHERE path = ?", sourcePath,
	).Scan(&e.Hash, &e.Fingerprint, &e.RunID, &e.ProcessedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up %s: %w", sourcePath, err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT output_path FROM variants WHERE source_path = ? ORDER BY idx", sourcePath)
	if err != nil {
		return nil, fmt.Errorf("failed to list variants of %s: %w", sourcePath, err)
	}
	defer rows.Close()

	for rows.Next() {
		var out string
		if err := rows.Scan(&out); err != nil {
			return nil, fmt.Errorf("failed to scan variant of %s: %w", sourcePath, err)
		}
		e.Outputs = append(e.Outputs, out)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return e, nil
}

// Count returns the number of recorded sources.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sources").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count sources: %w", err)
	}
	return n, nil
}
