package engine

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store persists runs and their log lines to SQLite so status and history
// survive page reloads and service restarts.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the run database at the given path.
func NewStore(dbPath string) (*Store, error) {
	// Pragmas via DSN so every pooled connection gets them.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening run database: %w", err)
	}
	db.SetMaxOpenConns(4)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating run database: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id           TEXT PRIMARY KEY,
			kind         TEXT NOT NULL,
			status       TEXT NOT NULL,
			progress     INTEGER NOT NULL DEFAULT 0,
			current_step TEXT NOT NULL DEFAULT '',
			reason       TEXT NOT NULL DEFAULT '',
			error        TEXT NOT NULL DEFAULT '',
			started_at   TEXT NOT NULL,
			updated_at   TEXT NOT NULL,
			completed_at TEXT NOT NULL DEFAULT ''
		);
		CREATE TABLE IF NOT EXISTS run_logs (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id    TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			line      TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_run_logs_run ON run_logs(run_id, id);
	`)
	return err
}

// SaveRun inserts or replaces the run record.
func (s *Store) SaveRun(r Run) error {
	completed := ""
	if r.CompletedAt != nil {
		completed = r.CompletedAt.Format(time.RFC3339)
	}
	_, err := s.db.Exec(`
		INSERT INTO runs (id, kind, status, progress, current_step, reason, error, started_at, updated_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status=excluded.status, progress=excluded.progress,
			current_step=excluded.current_step, reason=excluded.reason,
			error=excluded.error, updated_at=excluded.updated_at,
			completed_at=excluded.completed_at`,
		r.ID, r.Kind, r.Status, r.Progress, r.CurrentStep, r.Reason, r.Error,
		r.StartedAt.Format(time.RFC3339), r.UpdatedAt.Format(time.RFC3339), completed,
	)
	return err
}

// LatestRun returns the most recently started run of the given kind, or nil
// when none has ever run.
func (s *Store) LatestRun(kind string) (*Run, error) {
	row := s.db.QueryRow(`
		SELECT id, kind, status, progress, current_step, reason, error, started_at, updated_at, completed_at
		FROM runs WHERE kind=? ORDER BY started_at DESC, id DESC LIMIT 1`, kind)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var r Run
	var started, updated, completed string
	err := row.Scan(&r.ID, &r.Kind, &r.Status, &r.Progress, &r.CurrentStep,
		&r.Reason, &r.Error, &started, &updated, &completed)
	if err != nil {
		return nil, err
	}
	r.StartedAt, _ = time.Parse(time.RFC3339, started)
	r.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
	if completed != "" {
		t, err := time.Parse(time.RFC3339, completed)
		if err == nil {
			r.CompletedAt = &t
		}
	}
	return &r, nil
}

// AppendLog stores one output line for a run.
func (s *Store) AppendLog(runID, line string) error {
	_, err := s.db.Exec(`INSERT INTO run_logs (run_id, timestamp, line) VALUES (?, ?, ?)`,
		runID, time.Now().Format(time.RFC3339), line)
	return err
}

// LogsSince returns log lines for a run with id greater than afterID, oldest
// first, capped at limit. Clients poll with the last id they saw.
func (s *Store) LogsSince(runID string, afterID, limit int) ([]LogLine, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.db.Query(`
		SELECT id, run_id, timestamp, line FROM run_logs
		WHERE run_id=? AND id>? ORDER BY id ASC LIMIT ?`, runID, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []LogLine
	for rows.Next() {
		var l LogLine
		var ts string
		if err := rows.Scan(&l.ID, &l.RunID, &ts, &l.Line); err != nil {
			return nil, err
		}
		l.Timestamp, _ = time.Parse(time.RFC3339, ts)
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// RecoverOrphans marks runs left in a non-terminal state by a previous
// process as failed. Called once at startup, before any new run can begin.
func (s *Store) RecoverOrphans() (int, error) {
	now := time.Now().Format(time.RFC3339)
	res, err := s.db.Exec(`
		UPDATE runs SET status=?, reason=?, error=?, updated_at=?, completed_at=?
		WHERE status NOT IN (?, ?)`,
		StatusFailed, ReasonStepFailed, "interrupted by service restart", now, now,
		StatusSuccess, StatusFailed,
	)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
