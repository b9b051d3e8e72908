// Package store persists ChimeraScript run results to SQLite, grounded
// on the teacher's internal/store (schema-on-open via database/sql over
// modernc.org/sqlite, RFC3339Nano timestamps stored as TEXT).
package store

import (
	"database/sql"
	"time"

	_ "modernc.org/sqlite"
)

// Run is one `chimerascript run` invocation.
type Run struct {
	ID         string
	ScriptName string
	StartedAt  time.Time
	FinishedAt *time.Time
	Status     string // "running", "passed", "failed"
	Summary    string
}

// CaseRecord is one case's outcome within a Run, including nested cases
// (ParentID is invalid for a top-level case).
type CaseRecord struct {
	ID           int64
	RunID        string
	ParentID     sql.NullInt64
	Name         string
	Status       string // "PASSED", "FAILED", "EXPECTED FAILURE", "UNEXPECTED SUCCESS"
	ErrorMessage string
	DurationMs   int64
}

// Store wraps a SQLite connection holding ChimeraScript run history.
type Store struct {
	db *sql.DB
}

// New opens (creating if necessary) the SQLite database at dbPath and
// ensures its schema exists.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	schema := `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    script_name TEXT NOT NULL,
    started_at TEXT NOT NULL,
    finished_at TEXT,
    status TEXT NOT NULL,
    summary TEXT DEFAULT ''
);

CREATE TABLE IF NOT EXISTS case_results (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL REFERENCES runs(id),
    parent_id INTEGER REFERENCES case_results(id),
    name TEXT NOT NULL,
    status TEXT NOT NULL,
    error_message TEXT DEFAULT '',
    duration_ms INTEGER NOT NULL
);`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateRun records the start of a new run.
func (s *Store) CreateRun(id, scriptName string) error {
	_, err := s.db.Exec(
		`INSERT INTO runs (id, script_name, started_at, status, summary) VALUES (?, ?, ?, ?, ?)`,
		id, scriptName, time.Now().UTC().Format(time.RFC3339Nano), "running", "",
	)
	return err
}

// FinishRun records a run's final status and summary line.
func (s *Store) FinishRun(id, status, summary string) error {
	_, err := s.db.Exec(
		`UPDATE runs SET finished_at = ?, status = ?, summary = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), status, summary, id,
	)
	return err
}

// RecordCase inserts one case's outcome, returning its row id so nested
// cases can reference it as their parent.
func (s *Store) RecordCase(runID string, parentID *int64, name, status, errorMessage string, durationMs int64) (int64, error) {
	var parent sql.NullInt64
	if parentID != nil {
		parent = sql.NullInt64{Int64: *parentID, Valid: true}
	}
	res, err := s.db.Exec(
		`INSERT INTO case_results (run_id, parent_id, name, status, error_message, duration_ms) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, parent, name, status, errorMessage, durationMs,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// QueryRuns returns every recorded run, most recent first.
func (s *Store) QueryRuns() ([]Run, error) {
	rows, err := s.db.Query(`SELECT id, script_name, started_at, finished_at, status, summary FROM runs ORDER BY started_at DESC, _rowid_ DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun fetches a single run by id, returning nil if it doesn't exist.
func (s *Store) GetRun(id string) (*Run, error) {
	row := s.db.QueryRow(`SELECT id, script_name, started_at, finished_at, status, summary FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// QueryCases returns every case recorded for a run, in insertion order
// (execution order, since a parent's row is always written before any
// of its children's).
func (s *Store) QueryCases(runID string) ([]CaseRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, parent_id, name, status, error_message, duration_ms FROM case_results WHERE run_id = ? ORDER BY id ASC`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cases := []CaseRecord{}
	for rows.Next() {
		var c CaseRecord
		if err := rows.Scan(&c.ID, &c.RunID, &c.ParentID, &c.Name, &c.Status, &c.ErrorMessage, &c.DurationMs); err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	return cases, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var r Run
	var startedAt string
	var finishedAt sql.NullString
	if err := row.Scan(&r.ID, &r.ScriptName, &startedAt, &finishedAt, &r.Status, &r.Summary); err != nil {
		return Run{}, err
	}
	started, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return Run{}, err
	}
	r.StartedAt = started
	if finishedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, finishedAt.String)
		if err != nil {
			return Run{}, err
		}
		r.FinishedAt = &t
	}
	return r, nil
}
