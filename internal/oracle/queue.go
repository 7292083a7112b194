package oracle

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/me/gocondor/internal/executor"
	"github.com/me/gocondor/pkg/model"
)

// Queue reads job status from condor_q. A job that is no longer in the
// queue is reported as done.
type Queue struct {
	binary string
	logger *slog.Logger
	runner executor.CommandRunner
}

// NewQueue creates a Queue oracle running binary (condor_q by default).
func NewQueue(binary string, logger *slog.Logger) *Queue {
	return newQueueWithRunner(binary, logger, executor.NewCommandRunner())
}

func newQueueWithRunner(binary string, logger *slog.Logger, runner executor.CommandRunner) *Queue {
	if binary == "" {
		binary = "condor_q"
	}
	return &Queue{
		binary: binary,
		logger: logger.With("component", "queue-oracle"),
		runner: runner,
	}
}

// Status runs condor_q <jobID> -af JobStatus.
func (q *Queue) Status(ctx context.Context, jobID string) (*model.JobStatus, error) {
	if !model.ValidJobID(jobID) {
		return nil, model.NewError(model.ErrCodeInvalidJob, "malformed job id %q", jobID)
	}
	stdout, stderr, exitCode, err := q.runner.Run(ctx, q.binary, jobID, "-af", "JobStatus")
	if err != nil {
		return nil, model.WrapError(model.ErrCodeInternal, err, "run "+q.binary)
	}
	if exitCode != 0 {
		return nil, model.NewError(model.ErrCodeInternal, "%s %s exited with code %d: %s",
			q.binary, jobID, exitCode, strings.TrimSpace(stderr))
	}

	status := &model.JobStatus{JobID: jobID, UpdatedAt: time.Now().UTC()}
	out := strings.TrimSpace(stdout)
	if out == "" {
		status.State = model.PsDone
		q.logger.Debug("job left the queue", "job_id", jobID)
		return status, nil
	}
	code, err := strconv.Atoi(strings.Fields(out)[0])
	if err != nil {
		return nil, model.NewError(model.ErrCodeInternal, "unexpected %s output %q", q.binary, out)
	}
	applyQueueStatus(status, code)
	q.logger.Debug("status", "job_id", jobID, "job_status", code, "state", status.State)
	return status, nil
}

// applyQueueStatus maps a JobStatus class-ad value onto s.
func applyQueueStatus(s *model.JobStatus, code int) {
	switch code {
	case 1:
		s.State = model.PsQueuedActive
	case 2, 6:
		s.State = model.PsRunning
	case 3:
		s.State = model.PsFailed
		s.Aborted = true
	case 4:
		s.State = model.PsDone
	case 5:
		s.State = model.PsUserOnHold
	case 7:
		s.State = model.PsUserSuspended
	default:
		s.State = model.PsUndetermined
	}
}
