package store

import (
	"context"
	"time"

	"github.com/me/gocondor/pkg/model"
)

// Records is the job-record view of a session directory that the
// synchronization engine depends on.
type Records interface {
	// AllJobIDs returns every valid job ID recorded in the session.
	AllJobIDs() ([]string, error)
	// AnyJobID returns one recorded job ID, or "" if none is recorded.
	AnyJobID() (string, error)
	// ClearJobID forgets jobID, leaving its template record in place.
	ClearJobID(jobID string) error
}

// Journal keeps a history of submissions that outlives session directories.
type Journal interface {
	RecordSubmission(ctx context.Context, e *JournalEntry) error
	RecordCompletion(ctx context.Context, jobID string, status *model.JobStatus, at time.Time) error
	ListEntries(ctx context.Context, limit int) ([]*JournalEntry, error)
	GetEntry(ctx context.Context, jobID string) (*JournalEntry, error)

	Close() error
	Migrate(ctx context.Context) error
}

// JournalEntry is one submitted job as recorded in the journal.
type JournalEntry struct {
	ID          string
	Contact     string
	TemplateID  int
	JobID       string
	JobName     string
	Command     string
	State       string
	ExitStatus  *int
	SubmittedAt time.Time
	FinishedAt  *time.Time
}
