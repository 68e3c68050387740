// Package history journals the agent's subnet scans to the local store so
// operators can see what ran, when, and with what outcome.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/HerbHall/lanwatch/internal/store"
	"github.com/HerbHall/lanwatch/pkg/models"
)

// Scan statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// DefaultRetention is the number of scan records kept by Prune.
const DefaultRetention = 500

// ErrNotFound is returned when a scan record does not exist.
var ErrNotFound = errors.New("scan not found")

// ScanRepository records scan runs.
type ScanRepository interface {
	// Create inserts a running scan. ID and StartedAt are filled when empty.
	Create(ctx context.Context, rec *models.ScanRecord) error
	// Finish marks a scan as ended with the given outcome.
	Finish(ctx context.Context, id, status string, devices int, errMsg string) error
	Get(ctx context.Context, id string) (*models.ScanRecord, error)
	// List returns up to limit scans, newest first.
	List(ctx context.Context, limit int) ([]models.ScanRecord, error)
	// Prune deletes all but the newest keep scans and reports how many went.
	Prune(ctx context.Context, keep int) (int64, error)
}

// Compile-time interface guard.
var _ ScanRepository = (*SQLiteScanRepository)(nil)

var migrations = []store.Migration{
	{
		Version:     1,
		Description: "create scan_history table",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE scan_history (
					seq        INTEGER PRIMARY KEY AUTOINCREMENT,
					id         TEXT    NOT NULL UNIQUE,
					segment_id TEXT    NOT NULL,
					cidr       TEXT    NOT NULL,
					started_at TEXT    NOT NULL,
					ended_at   TEXT,
					status     TEXT    NOT NULL,
					devices    INTEGER NOT NULL DEFAULT 0,
					error_msg  TEXT    NOT NULL DEFAULT ''
				)
			`)
			return err
		},
	},
	{
		Version:     2,
		Description: "index scan_history by segment",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`CREATE INDEX idx_scan_history_segment ON scan_history(segment_id)`)
			return err
		},
	},
}

// SQLiteScanRepository implements ScanRepository on the agent store.
type SQLiteScanRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteScanRepository migrates the scan_history schema and returns a repository.
func NewSQLiteScanRepository(ctx context.Context, st *store.SQLiteStore) (*SQLiteScanRepository, error) {
	if err := st.Migrate(ctx, "history", migrations); err != nil {
		return nil, fmt.Errorf("history migrations: %w", err)
	}
	return &SQLiteScanRepository{db: st.DB(), now: time.Now}, nil
}

func (r *SQLiteScanRepository) Create(ctx context.Context, rec *models.ScanRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.StartedAt == "" {
		rec.StartedAt = r.now().UTC().Format(time.RFC3339)
	}
	if rec.Status == "" {
		rec.Status = StatusRunning
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO scan_history (id, segment_id, cidr, started_at, status)
		VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.SegmentID, rec.CIDR, rec.StartedAt, rec.Status,
	)
	if err != nil {
		return fmt.Errorf("create scan: %w", err)
	}
	return nil
}

func (r *SQLiteScanRepository) Finish(ctx context.Context, id, status string, devices int, errMsg string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE scan_history SET status = ?, devices = ?, error_msg = ?, ended_at = ?
		WHERE id = ?`,
		status, devices, errMsg, r.now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("finish scan %q: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteScanRepository) Get(ctx context.Context, id string) (*models.ScanRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, segment_id, cidr, started_at, ended_at, status, devices, error_msg
		FROM scan_history WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get scan %q: %w", id, err)
	}
	return rec, nil
}

func (r *SQLiteScanRepository) List(ctx context.Context, limit int) ([]models.ScanRecord, error) {
	if limit <= 0 || limit > DefaultRetention {
		limit = DefaultRetention
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, segment_id, cidr, started_at, ended_at, status, devices, error_msg
		FROM scan_history ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	defer rows.Close()

	scans := []models.ScanRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		scans = append(scans, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scans: %w", err)
	}
	return scans, nil
}

func (r *SQLiteScanRepository) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM scan_history WHERE seq NOT IN (
			SELECT seq FROM scan_history ORDER BY seq DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune scans: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.ScanRecord, error) {
	var (
		rec     models.ScanRecord
		endedAt sql.NullString
	)
	if err := row.Scan(&rec.ID, &rec.SegmentID, &rec.CIDR, &rec.StartedAt, &endedAt,
		&rec.Status, &rec.Devices, &rec.Error); err != nil {
		return nil, err
	}
	if endedAt.Valid {
		rec.EndedAt = endedAt.String
	}
	return &rec, nil
}
