package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run statuses.
const (
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// Run records one ingestion run.
type Run struct {
	ID         string
	Table      string
	Source     string
	Comment    string
	Input      string
	Documents  int
	Rows       int
	Status     string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// RunStore keeps the ingestion history.
type RunStore struct {
	db *DB
}

// NewRunStore creates a new run store
func NewRunStore(db *DB) *RunStore {
	return &RunStore{db: db}
}

// Start records a running run and returns its id.
func (s *RunStore) Start(ctx context.Context, run Run) (string, error) {
	id := uuid.NewString()
	_, err := s.db.sqlDB.ExecContext(ctx, `
		INSERT INTO runs (id, table_name, source, comment, input, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, run.Table, run.Source, run.Comment, run.Input, RunRunning, time.Now().UTC().Format(timeFormat),
	)
	if err != nil {
		return "", storageErr("start run", err)
	}
	return id, nil
}

// Finish marks a run as done. A non-nil runErr marks it failed.
func (s *RunStore) Finish(ctx context.Context, id string, documents, rows int, runErr error) error {
	status := RunSucceeded
	msg := ""
	if runErr != nil {
		status = RunFailed
		msg = runErr.Error()
	}
	res, err := s.db.sqlDB.ExecContext(ctx, `
		UPDATE runs SET documents = ?, row_count = ?, status = ?, error = ?, finished_at = ?
		WHERE id = ?`,
		documents, rows, status, msg, time.Now().UTC().Format(timeFormat), id,
	)
	if err != nil {
		return storageErr("finish run", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: run %s not found", ErrStorage, id)
	}
	return nil
}

// List returns the most recent runs first.
func (s *RunStore) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.sqlDB.QueryContext(ctx, `
		SELECT id, table_name, source, comment, input, documents, row_count, status, error, started_at, finished_at
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, storageErr("list runs", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate runs", err)
	}
	return runs, nil
}

func scanRun(r rowScanner) (Run, error) {
	var (
		run      Run
		started  any
		finished sql.NullString
	)
	if err := r.Scan(&run.ID, &run.Table, &run.Source, &run.Comment, &run.Input,
		&run.Documents, &run.Rows, &run.Status, &run.Error, &started, &finished); err != nil {
		return Run{}, storageErr("scan run", err)
	}
	var err error
	if run.StartedAt, err = parseTimeValue(started); err != nil {
		return Run{}, storageErr("run started_at", err)
	}
	if finished.Valid {
		if run.FinishedAt, err = parseTimeString(finished.String); err != nil {
			return Run{}, storageErr("run finished_at", err)
		}
	}
	return run, nil
}
