// Package store is the agent's embedded SQLite database. It holds local
// journals only; control-plane state such as segment assignments is never
// written here.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

// FileName is the database file created inside the agent's data directory.
const FileName = "lanwatch-agent.db"

// Migration is one forward-only schema step owned by a component.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// SQLiteStore wraps a SQLite database opened via modernc.org/sqlite.
type SQLiteStore struct {
	db   *sql.DB
	path string

	mu              sync.Mutex
	migrationsReady bool
}

// Open opens the agent database inside dataDir, creating the directory if needed.
func Open(dataDir string) (*SQLiteStore, error) {
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("create data dir %q: %w", dataDir, err)
	}
	return New(filepath.Join(dataDir, FileName))
}

// New opens (or creates) a SQLite database at path. Use ":memory:" for tests.
func New(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}

	// One writer; WAL lets the status endpoint read while a scan is journaled.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %q: %w", path, err)
	}

	// modernc.org/sqlite takes pragmas as statements, not DSN params.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// Path returns the database file path, or ":memory:".
func (s *SQLiteStore) Path() string {
	return s.path
}

// DB returns the underlying *sql.DB.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Tx runs fn in a transaction, committing on nil and rolling back otherwise.
func (s *SQLiteStore) Tx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original: %w)", rbErr, err)
		}
		return err
	}

	return tx.Commit()
}

// Migrate applies the component's pending migrations in order. Applied
// versions are recorded in schema_migrations and skipped on later calls.
func (s *SQLiteStore) Migrate(ctx context.Context, component string, migrations []Migration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureMigrationsTable(ctx); err != nil {
		return err
	}

	for _, m := range migrations {
		applied, err := s.applied(ctx, component, m.Version)
		if err != nil {
			return err
		}
		if applied {
			continue
		}
		if err := s.apply(ctx, component, m); err != nil {
			return fmt.Errorf("migration %s/%d (%s): %w", component, m.Version, m.Description, err)
		}
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ensureMigrationsTable creates schema_migrations on first use. A failed
// attempt is retried by the next Migrate. Callers must hold s.mu.
func (s *SQLiteStore) ensureMigrationsTable(ctx context.Context) error {
	if s.migrationsReady {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			component   TEXT     NOT NULL,
			version     INTEGER  NOT NULL,
			description TEXT     NOT NULL,
			applied_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (component, version)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	s.migrationsReady = true
	return nil
}

func (s *SQLiteStore) applied(ctx context.Context, component string, version int) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM schema_migrations WHERE component = ? AND version = ?",
		component, version,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check migration %s/%d: %w", component, version, err)
	}
	return count > 0, nil
}

func (s *SQLiteStore) apply(ctx context.Context, component string, m Migration) error {
	return s.Tx(ctx, func(tx *sql.Tx) error {
		if err := m.Up(tx); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (component, version, description) VALUES (?, ?, ?)",
			component, m.Version, m.Description,
		)
		return err
	})
}
