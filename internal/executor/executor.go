// Package executor drives the HTCondor command line tools.
package executor

import (
	"bytes"
	"context"
	"os/exec"

	"github.com/me/gocondor/pkg/model"
)

// Submitter hands submit documents to the scheduler.
type Submitter interface {
	// Submit submits the document at path and returns the job ID assigned
	// to its first job.
	Submit(ctx context.Context, path string) (jobID string, err error)

	// SubmitReplicated submits a document queued n times and returns the
	// IDs of all n jobs.
	SubmitReplicated(ctx context.Context, path string, n int) ([]string, error)
}

// Controller applies control actions to submitted jobs.
type Controller interface {
	Control(ctx context.Context, jobID string, action model.ControlAction) error

	// Remove removes a job from the queue, ignoring failures.
	Remove(ctx context.Context, jobID string)
}

// CommandRunner abstracts command execution for testing.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr string, exitCode int, err error)
}

// NewCommandRunner returns a CommandRunner backed by os/exec.
func NewCommandRunner() CommandRunner {
	return &osCommandRunner{}
}

// osCommandRunner is the real implementation using os/exec.
type osCommandRunner struct{}

func (r *osCommandRunner) Run(ctx context.Context, name string, args ...string) (string, string, int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	runErr := cmd.Run()

	stdout := stdoutBuf.String()
	stderr := stderrBuf.String()

	switch e := runErr.(type) {
	case nil:
		return stdout, stderr, 0, nil
	case *exec.ExitError:
		return stdout, stderr, e.ExitCode(), nil
	default:
		return stdout, stderr, -1, runErr
	}
}
