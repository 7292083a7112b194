package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/hashicorp/go-multierror"

	"github.com/me/gocondor/internal/oracle"
	"github.com/me/gocondor/internal/store"
	"github.com/me/gocondor/pkg/model"
)

// Config holds engine configuration.
type Config struct {
	PollInterval time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{PollInterval: 5 * time.Second}
}

// Engine turns job status polls into bounded waits and multi-job barriers.
type Engine struct {
	oracle  oracle.Oracle
	records store.Records
	config  Config
	clock   clock.Clock
	logger  *slog.Logger

	// sleep pauses between polls; it returns early with an error when ctx ends.
	sleep  func(ctx context.Context, d time.Duration) error
	onExit func(ctx context.Context, status *model.JobStatus)
}

// NewEngine creates an Engine polling o for jobs recorded in rec.
func NewEngine(o oracle.Oracle, rec store.Records, cfg Config, logger *slog.Logger) *Engine {
	return newEngineWithClock(o, rec, cfg, logger, clock.New())
}

// newEngineWithClock is used by tests to inject a mock clock.
func newEngineWithClock(o oracle.Oracle, rec store.Records, cfg Config, logger *slog.Logger, clk clock.Clock) *Engine {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	e := &Engine{
		oracle:  o,
		records: rec,
		config:  cfg,
		clock:   clk,
		logger:  logger.With("component", "engine"),
	}
	e.sleep = e.pause
	return e
}

// OnExit registers fn to be called each time a wait observes a job as exited.
func (e *Engine) OnExit(fn func(ctx context.Context, status *model.JobStatus)) {
	e.onExit = fn
}

// Wait blocks until jobID exits or timeout elapses and returns the last
// observed status. jobID may be model.JobIDSessionAny.
func (e *Engine) Wait(ctx context.Context, jobID string, timeout time.Duration) (*model.JobStatus, error) {
	if !model.ValidTimeout(timeout) {
		return nil, model.NewError(model.ErrCodeInvalidArgument, "invalid timeout %v", timeout)
	}
	if jobID == model.JobIDSessionAny {
		id, err := e.records.AnyJobID()
		if err != nil {
			return nil, err
		}
		if id == "" {
			return nil, model.NewError(model.ErrCodeInvalidJob, "no job pending in session")
		}
		e.logger.Debug("resolved any-job sentinel", "job_id", id)
		jobID = id
	} else if !model.ValidJobID(jobID) {
		return nil, model.NewError(model.ErrCodeInvalidJob, "malformed job id %q", jobID)
	}
	return e.wait(ctx, jobID, timeout)
}

func (e *Engine) wait(ctx context.Context, jobID string, timeout time.Duration) (*model.JobStatus, error) {
	start := e.clock.Now()

	status, err := e.oracle.Status(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", jobID, err)
	}
	if timeout == model.TimeoutNoWait {
		e.observe(ctx, status)
		return status, nil
	}

	for {
		status, err = e.oracle.Status(ctx, jobID)
		if err != nil {
			return nil, fmt.Errorf("job %s: %w", jobID, err)
		}
		if status.HasExited() {
			e.logger.Debug("job exited", "job_id", jobID, "state", status.State, "exit_status", status.ExitStatus)
			break
		}
		if timeout != model.TimeoutWaitForever && e.clock.Since(start) >= timeout {
			e.logger.Debug("wait timed out", "job_id", jobID, "state", status.State, "timeout", timeout)
			break
		}
		if err := e.sleep(ctx, e.config.PollInterval); err != nil {
			e.logger.Info("wait interrupted", "job_id", jobID, "error", err)
			break
		}
	}

	e.observe(ctx, status)
	return status, nil
}

func (e *Engine) observe(ctx context.Context, status *model.JobStatus) {
	if e.onExit != nil && status.HasExited() {
		e.onExit(ctx, status)
	}
}

// Synchronize waits for every job in jobIDs under one shared deadline. Any
// occurrence of model.JobIDSessionAll selects every job in the session. Jobs
// still pending when the deadline passes are left unresolved. With dispose
// set, exited jobs are cleared from the session records.
func (e *Engine) Synchronize(ctx context.Context, jobIDs []string, timeout time.Duration, dispose bool) error {
	if len(jobIDs) == 0 {
		return model.NewError(model.ErrCodeInvalidArgument, "no job ids given")
	}
	if !model.ValidTimeout(timeout) {
		return model.NewError(model.ErrCodeInvalidArgument, "invalid timeout %v", timeout)
	}

	working, err := e.workingSet(jobIDs)
	if err != nil {
		return err
	}

	deadline := e.clock.Now().Add(timeout)
	e.logger.Debug("synchronize", "jobs", len(working), "timeout", timeout, "dispose", dispose)

	var result *multierror.Error
	for i, id := range working {
		remaining := timeout
		if timeout > 0 {
			// A non-positive remainder must not reach wait: -1ns is TimeoutWaitForever.
			remaining = deadline.Sub(e.clock.Now())
			if remaining <= 0 {
				e.logger.Info("synchronize deadline passed", "unresolved", len(working)-i)
				break
			}
		}
		if i > 0 && ctx.Err() != nil {
			e.logger.Info("synchronize interrupted", "unresolved", len(working)-i)
			break
		}

		status, err := e.wait(ctx, id, remaining)
		if err != nil {
			if result == nil {
				return err
			}
			return model.WrapError(model.ErrCodeInternal, multierror.Append(result, err), "synchronize jobs")
		}
		if dispose && status.HasExited() {
			if err := e.records.ClearJobID(id); err != nil {
				result = multierror.Append(result, err)
			}
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return model.WrapError(model.ErrCodeInternal, err, "dispose jobs")
	}
	return nil
}

func (e *Engine) workingSet(jobIDs []string) ([]string, error) {
	for _, id := range jobIDs {
		if id == model.JobIDSessionAll {
			return e.records.AllJobIDs()
		}
	}
	seen := make(map[string]bool, len(jobIDs))
	working := make([]string, 0, len(jobIDs))
	for _, id := range jobIDs {
		if !model.ValidJobID(id) {
			return nil, model.NewError(model.ErrCodeInvalidJob, "malformed job id %q", id)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		working = append(working, id)
	}
	return working, nil
}

func (e *Engine) pause(ctx context.Context, d time.Duration) error {
	t := e.clock.Timer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
