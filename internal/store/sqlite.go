package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/me/gocondor/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLiteJournal implements Journal using SQLite.
type SQLiteJournal struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteJournal opens (or creates) a SQLite database at dbPath.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteJournal(dbPath string, logger *slog.Logger) (*SQLiteJournal, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	// A single connection keeps ":memory:" databases shared across queries.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}

	return &SQLiteJournal{
		db:     db,
		logger: logger.With("component", "journal"),
	}, nil
}

// Close closes the underlying database connection.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

// Migrate creates all required tables and indexes.
func (j *SQLiteJournal) Migrate(ctx context.Context) error {
	j.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, j.db)
}

// RecordSubmission inserts e. An empty ID is filled in.
func (j *SQLiteJournal) RecordSubmission(ctx context.Context, e *JournalEntry) error {
	if e.ID == "" {
		e.ID = "sub_" + uuid.New().String()
	}
	if e.State == "" {
		e.State = model.PsQueuedActive.String()
	}
	if e.SubmittedAt.IsZero() {
		e.SubmittedAt = time.Now().UTC()
	}
	j.logger.Debug("sql", "op", "insert", "table", "submissions", "id", e.ID, "job_id", e.JobID)

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO submissions (id, contact, template_id, job_id, job_name, command, state, submitted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Contact, e.TemplateID, e.JobID, e.JobName, e.Command, e.State,
		e.SubmittedAt.Format(time.RFC3339Nano),
	)
	return err
}

// RecordCompletion stores the final state of jobID.
func (j *SQLiteJournal) RecordCompletion(ctx context.Context, jobID string, status *model.JobStatus, at time.Time) error {
	j.logger.Debug("sql", "op", "update", "table", "submissions", "job_id", jobID, "state", status.State)

	_, err := j.db.ExecContext(ctx,
		`UPDATE submissions SET state = ?, exit_status = ?, finished_at = ?
		 WHERE id = (SELECT id FROM submissions WHERE job_id = ? ORDER BY submitted_at DESC LIMIT 1)`,
		status.State.String(), status.ExitStatus, at.UTC().Format(time.RFC3339Nano), jobID,
	)
	return err
}

// ListEntries returns the most recent entries first.
func (j *SQLiteJournal) ListEntries(ctx context.Context, limit int) ([]*JournalEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	j.logger.Debug("sql", "op", "list", "table", "submissions", "limit", limit)

	rows, err := j.db.QueryContext(ctx,
		`SELECT id, contact, template_id, job_id, job_name, command, state, exit_status, submitted_at, finished_at
		 FROM submissions ORDER BY submitted_at DESC, job_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*JournalEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// GetEntry returns the latest entry for jobID, or nil if there is none.
func (j *SQLiteJournal) GetEntry(ctx context.Context, jobID string) (*JournalEntry, error) {
	j.logger.Debug("sql", "op", "select", "table", "submissions", "job_id", jobID)

	row := j.db.QueryRowContext(ctx,
		`SELECT id, contact, template_id, job_id, job_name, command, state, exit_status, submitted_at, finished_at
		 FROM submissions WHERE job_id = ? ORDER BY submitted_at DESC LIMIT 1`, jobID)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return e, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*JournalEntry, error) {
	var e JournalEntry
	var exitStatus sql.NullInt64
	var submittedAt string
	var finishedAt sql.NullString

	if err := row.Scan(&e.ID, &e.Contact, &e.TemplateID, &e.JobID, &e.JobName, &e.Command,
		&e.State, &exitStatus, &submittedAt, &finishedAt); err != nil {
		return nil, err
	}
	if exitStatus.Valid {
		v := int(exitStatus.Int64)
		e.ExitStatus = &v
	}
	e.SubmittedAt, _ = time.Parse(time.RFC3339Nano, submittedAt)
	if finishedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, finishedAt.String)
		if err == nil {
			e.FinishedAt = &t
		}
	}
	return &e, nil
}
