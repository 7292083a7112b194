package executor

import (
	"context"
	"log/slog"
	"strings"

	"github.com/me/gocondor/pkg/model"
)

// DefaultControlCommands maps each control action to its HTCondor tool.
func DefaultControlCommands() map[model.ControlAction]string {
	return map[model.ControlAction]string{
		model.Suspend:   "condor_suspend",
		model.Resume:    "condor_continue",
		model.Hold:      "condor_hold",
		model.Release:   "condor_release",
		model.Terminate: "condor_rm",
	}
}

// CondorController controls jobs with the condor_hold family of tools.
type CondorController struct {
	commands map[model.ControlAction]string
	logger   *slog.Logger
	runner   CommandRunner
}

// NewCondorController creates a CondorController. Actions missing from
// commands fall back to DefaultControlCommands.
func NewCondorController(commands map[model.ControlAction]string, logger *slog.Logger) *CondorController {
	return newCondorControllerWithRunner(commands, logger, &osCommandRunner{})
}

// newCondorControllerWithRunner is used by tests to inject a mock CommandRunner.
func newCondorControllerWithRunner(commands map[model.ControlAction]string, logger *slog.Logger, runner CommandRunner) *CondorController {
	merged := DefaultControlCommands()
	for action, bin := range commands {
		if bin != "" {
			merged[action] = bin
		}
	}
	return &CondorController{
		commands: merged,
		logger:   logger.With("component", "condor-controller"),
		runner:   runner,
	}
}

// Control applies action to jobID.
func (c *CondorController) Control(ctx context.Context, jobID string, action model.ControlAction) error {
	if !model.ValidJobID(jobID) {
		return model.NewError(model.ErrCodeInvalidJob, "malformed job id %q", jobID)
	}
	bin, ok := c.commands[action]
	if !ok {
		return model.NewError(model.ErrCodeInvalidArgument, "unsupported control action %d", int(action))
	}

	c.logger.Debug("control", "action", action, "job_id", jobID, "binary", bin)
	_, stderr, exitCode, err := c.runner.Run(ctx, bin, jobID)
	if err != nil {
		return model.WrapError(model.ErrCodeInternal, err, "run "+bin)
	}
	if exitCode != 0 {
		return model.NewError(model.ErrCodeInternal, "%s %s exited with code %d: %s",
			bin, jobID, exitCode, strings.TrimSpace(stderr))
	}
	c.logger.Info("job controlled", "action", action, "job_id", jobID)
	return nil
}

// Remove runs condor_rm on jobID. Failures are logged and otherwise ignored.
func (c *CondorController) Remove(ctx context.Context, jobID string) {
	bin := c.commands[model.Terminate]
	_, stderr, exitCode, err := c.runner.Run(ctx, bin, jobID)
	if err != nil || exitCode != 0 {
		c.logger.Debug("remove failed", "job_id", jobID, "exit_code", exitCode, "stderr", strings.TrimSpace(stderr), "error", err)
	}
}
