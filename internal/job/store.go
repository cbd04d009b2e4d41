package job

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nguyentantai21042004/transflow/internal/domain"
)

// Store records finished job snapshots, keyed by job id. Jobs are never
// resumed from it.
type Store interface {
	Save(ctx context.Context, s Snapshot) error
	List(ctx context.Context, limit int) ([]Snapshot, error)
	Close() error
}

// NopStore discards everything.
type NopStore struct{}

func (NopStore) Save(context.Context, Snapshot) error          { return nil }
func (NopStore) List(context.Context, int) ([]Snapshot, error) { return nil, nil }
func (NopStore) Close() error                                  { return nil }

// SQLiteStore keeps job history in a sqlite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and migrates) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history db: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		source TEXT NOT NULL,
		output TEXT,
		status TEXT NOT NULL,
		counts TEXT NOT NULL,
		total INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		created_at DATETIME NOT NULL,
		finished_at DATETIME,
		duration_ms INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_jobs_created ON jobs(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Save upserts the snapshot.
func (s *SQLiteStore) Save(ctx context.Context, snap Snapshot) error {
	counts, err := json.Marshal(snap.Counts)
	if err != nil {
		return fmt.Errorf("encode counts: %w", err)
	}
	var finished interface{}
	if snap.FinishedAt != nil {
		finished = snap.FinishedAt.UTC()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, kind, source, output, status, counts, total, error, created_at, finished_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			output = excluded.output,
			status = excluded.status,
			counts = excluded.counts,
			total = excluded.total,
			error = excluded.error,
			finished_at = excluded.finished_at,
			duration_ms = excluded.duration_ms`,
		snap.ID, string(snap.Kind), snap.Source, snap.Output, string(snap.Status), string(counts),
		snap.Total, snap.Error, snap.CreatedAt.UTC(), finished, snap.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("save job %s: %w", snap.ID, err)
	}
	return nil
}

// List returns the most recent snapshots first. limit <= 0 means no limit.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, source, output, status, counts, total, error, created_at, finished_at, duration_ms
		FROM jobs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var (
			snap            Snapshot
			kind, status    string
			output, errText sql.NullString
			counts          string
			finished        sql.NullTime
			durationMs      int64
		)
		if err := rows.Scan(&snap.ID, &kind, &snap.Source, &output, &status, &counts, &snap.Total,
			&errText, &snap.CreatedAt, &finished, &durationMs); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		snap.Kind = domain.Kind(kind)
		snap.Status = Status(status)
		snap.Output = output.String
		snap.Error = errText.String
		snap.Duration = time.Duration(durationMs) * time.Millisecond
		if finished.Valid {
			t := finished.Time
			snap.FinishedAt = &t
		}
		if err := json.Unmarshal([]byte(counts), &snap.Counts); err != nil {
			return nil, fmt.Errorf("decode counts for %s: %w", snap.ID, err)
		}
		if snap.Total > 0 {
			snap.Progress = float64(snap.Counts[domain.UnitDone]+snap.Counts[domain.UnitFailed]) / float64(snap.Total)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
