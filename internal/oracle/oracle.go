// Package oracle reports the status of submitted HTCondor jobs.
package oracle

import (
	"context"

	"github.com/me/gocondor/pkg/model"
)

// Oracle reports a job's current status. Implementations are cheap and
// idempotent so they can be polled on a schedule.
type Oracle interface {
	Status(ctx context.Context, jobID string) (*model.JobStatus, error)
}

// Names accepted by the oracle configuration setting.
const (
	KindUserLog = "userlog"
	KindQueue   = "queue"
)

// Func adapts an ordinary function to the Oracle interface.
type Func func(ctx context.Context, jobID string) (*model.JobStatus, error)

// Status calls f.
func (f Func) Status(ctx context.Context, jobID string) (*model.JobStatus, error) {
	return f(ctx, jobID)
}
