package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newMemStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_CreatesDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(filepath.Join(dir, FileName)); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestMigrate_AppliesOnce(t *testing.T) {
	s := newMemStore(t)
	ctx := context.Background()

	calls := 0
	migrations := []Migration{{
		Version:     1,
		Description: "create widgets",
		Up: func(tx *sql.Tx) error {
			calls++
			_, err := tx.Exec("CREATE TABLE widgets (id INTEGER PRIMARY KEY)")
			return err
		},
	}}

	for i := 0; i < 2; i++ {
		if err := s.Migrate(ctx, "widgets", migrations); err != nil {
			t.Fatalf("Migrate #%d: %v", i+1, err)
		}
	}
	if calls != 1 {
		t.Errorf("Up called %d times, want 1", calls)
	}

	if _, err := s.DB().ExecContext(ctx, "INSERT INTO widgets (id) VALUES (1)"); err != nil {
		t.Errorf("insert after migration: %v", err)
	}
}

func TestMigrate_FailureRollsBack(t *testing.T) {
	s := newMemStore(t)
	ctx := context.Background()

	err := s.Migrate(ctx, "broken", []Migration{{
		Version:     1,
		Description: "half applied",
		Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec("CREATE TABLE half (id INTEGER)"); err != nil {
				return err
			}
			return errors.New("boom")
		},
	}})
	if err == nil {
		t.Fatal("Migrate() expected error")
	}

	var n int
	if err := s.DB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'half'").Scan(&n); err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	if n != 0 {
		t.Error("table from failed migration should have been rolled back")
	}
}

func TestMigrate_RetriesAfterFailedSetup(t *testing.T) {
	s := newMemStore(t)

	migrations := []Migration{{
		Version:     1,
		Description: "create widgets",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec("CREATE TABLE widgets (id INTEGER PRIMARY KEY)")
			return err
		},
	}}

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Migrate(cancelled, "widgets", migrations); err == nil {
		t.Fatal("Migrate() with cancelled context expected error")
	}

	if err := s.Migrate(context.Background(), "widgets", migrations); err != nil {
		t.Fatalf("Migrate() after failed setup: %v", err)
	}
	var n int
	if err := s.DB().QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE component = 'widgets'").Scan(&n); err != nil {
		t.Fatalf("query schema_migrations: %v", err)
	}
	if n != 1 {
		t.Errorf("schema_migrations rows = %d, want 1", n)
	}
}

func TestTx_Commit(t *testing.T) {
	s := newMemStore(t)
	ctx := context.Background()

	if _, err := s.DB().ExecContext(ctx, "CREATE TABLE kv (k TEXT PRIMARY KEY, v TEXT)"); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := s.Tx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "INSERT INTO kv (k, v) VALUES ('a', '1')")
		return err
	})
	if err != nil {
		t.Fatalf("Tx: %v", err)
	}

	var v string
	if err := s.DB().QueryRowContext(ctx, "SELECT v FROM kv WHERE k = 'a'").Scan(&v); err != nil {
		t.Fatalf("select: %v", err)
	}
	if v != "1" {
		t.Errorf("v = %q, want 1", v)
	}
}
