package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"rsextract/internal/take"
)

// Store records runs and take outcomes.
type Store struct {
	db   *sql.DB
	path string
}

// Run summarizes one `rsextract run` invocation.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt *time.Time
	Workers    int
	Takes      int
	Completed  int
	Skipped    int
	Failed     int
}

// Record is one stored take outcome.
type Record struct {
	RunID      string
	Action     string
	Take       int
	Status     take.Kind
	Frames     int
	Detail     string
	Duration   time.Duration
	RecordedAt time.Time
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open initializes or connects to the ledger database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure ledger directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// BeginRun registers a run before any take is processed.
func (s *Store) BeginRun(ctx context.Context, runID string, workers, takes int) error {
	if strings.TrimSpace(runID) == "" {
		return errors.New("run id is required")
	}
	return s.exec(ctx,
		`INSERT INTO runs (id, started_at, workers, takes) VALUES (?, ?, ?, ?)`,
		runID, formatTime(time.Now()), workers, takes,
	)
}

// FinishRun stamps the run's completion time.
func (s *Store) FinishRun(ctx context.Context, runID string) error {
	return s.exec(ctx, `UPDATE runs SET finished_at = ? WHERE id = ?`, formatTime(time.Now()), runID)
}

// Record stores one take outcome for runID.
func (s *Store) Record(ctx context.Context, runID string, status take.Status) error {
	if !status.Kind.Valid() {
		return fmt.Errorf("record take %02d: invalid status %q", status.Take, status.Kind)
	}
	var detail any
	if status.Err != nil {
		detail = status.Err.Error()
	}
	return s.exec(ctx,
		`INSERT INTO take_results (run_id, action, take, status, frames, detail, duration_ms, recorded_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, status.Action, status.Take, string(status.Kind), status.Frames, detail,
		status.Duration.Milliseconds(), formatTime(time.Now()),
	)
}

// Latest returns the most recent outcome of every take ever recorded,
// ordered by action and take.
func (s *Store) Latest(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT r.run_id, r.action, r.take, r.status, r.frames, r.detail, r.duration_ms, r.recorded_at
         FROM take_results r
         JOIN (SELECT MAX(id) AS id FROM take_results GROUP BY action, take) latest ON latest.id = r.id
         ORDER BY r.action, r.take`)
	if err != nil {
		return nil, fmt.Errorf("query latest results: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec      Record
			status   string
			detail   sql.NullString
			duration int64
			recorded string
		)
		if err := rows.Scan(&rec.RunID, &rec.Action, &rec.Take, &status, &rec.Frames, &detail, &duration, &recorded); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		rec.Status = take.Kind(status)
		rec.Detail = detail.String
		rec.Duration = time.Duration(duration) * time.Millisecond
		if rec.RecordedAt, err = parseTimeString(recorded); err != nil {
			return nil, fmt.Errorf("parse recorded_at: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Runs returns up to limit runs, newest first, with per-status counts.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT runs.id, runs.started_at, runs.finished_at, runs.workers, runs.takes,
                COALESCE(SUM(tr.status = 'completed'), 0),
                COALESCE(SUM(tr.status = 'skipped'), 0),
                COALESCE(SUM(tr.status = 'error'), 0)
         FROM runs
         LEFT JOIN take_results tr ON tr.run_id = runs.id
         GROUP BY runs.id
         ORDER BY runs.started_at DESC, runs.rowid DESC
         LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run      Run
			started  string
			finished sql.NullString
		)
		if err := rows.Scan(&run.ID, &started, &finished, &run.Workers, &run.Takes, &run.Completed, &run.Skipped, &run.Failed); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if run.StartedAt, err = parseTimeString(started); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		if finished.Valid {
			ts, err := parseTimeString(finished.String)
			if err != nil {
				return nil, fmt.Errorf("parse finished_at: %w", err)
			}
			run.FinishedAt = &ts
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *Store) exec(ctx context.Context, query string, args ...any) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
