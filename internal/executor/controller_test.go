package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/me/gocondor/pkg/model"
)

func TestControl_CommandMapping(t *testing.T) {
	tests := []struct {
		action model.ControlAction
		binary string
	}{
		{model.Suspend, "condor_suspend"},
		{model.Resume, "condor_continue"},
		{model.Hold, "condor_hold"},
		{model.Release, "condor_release"},
		{model.Terminate, "condor_rm"},
	}
	for _, tt := range tests {
		t.Run(tt.action.String(), func(t *testing.T) {
			runner := &mockRunner{results: []mockResult{{}}}
			c := newCondorControllerWithRunner(nil, newTestLogger(), runner)
			if err := c.Control(context.Background(), "12.3", tt.action); err != nil {
				t.Fatalf("Control: %v", err)
			}
			if len(runner.calls) != 1 {
				t.Fatalf("expected 1 call, got %d", len(runner.calls))
			}
			call := runner.calls[0]
			if call.name != tt.binary || len(call.args) != 1 || call.args[0] != "12.3" {
				t.Errorf("call = %s %v, want %s 12.3", call.name, call.args, tt.binary)
			}
		})
	}
}

func TestControl_Override(t *testing.T) {
	runner := &mockRunner{results: []mockResult{{}}}
	c := newCondorControllerWithRunner(map[model.ControlAction]string{model.Hold: "/opt/condor/bin/condor_hold"}, newTestLogger(), runner)
	if err := c.Control(context.Background(), "1.0", model.Hold); err != nil {
		t.Fatal(err)
	}
	if runner.calls[0].name != "/opt/condor/bin/condor_hold" {
		t.Errorf("binary = %q", runner.calls[0].name)
	}
}

func TestControl_InvalidJob(t *testing.T) {
	runner := &mockRunner{}
	c := newCondorControllerWithRunner(nil, newTestLogger(), runner)
	err := c.Control(context.Background(), "not-a-job", model.Hold)
	if !errors.Is(err, model.ErrInvalidJob) {
		t.Errorf("error = %v, want invalid job", err)
	}
	if len(runner.calls) != 0 {
		t.Error("command ran for an invalid job id")
	}
}

func TestControl_UnknownAction(t *testing.T) {
	c := newCondorControllerWithRunner(nil, newTestLogger(), &mockRunner{})
	err := c.Control(context.Background(), "1.0", model.ControlAction(42))
	if !errors.Is(err, model.ErrInvalidArgument) {
		t.Errorf("error = %v, want invalid argument", err)
	}
}

func TestControl_Failure(t *testing.T) {
	runner := &mockRunner{results: []mockResult{{stderr: "Couldn't find job 1.0\n", exitCode: 1}}}
	c := newCondorControllerWithRunner(nil, newTestLogger(), runner)
	err := c.Control(context.Background(), "1.0", model.Release)
	if !errors.Is(err, model.ErrInternal) {
		t.Errorf("error = %v, want internal", err)
	}
}

func TestRemove_IgnoresFailure(t *testing.T) {
	runner := &mockRunner{results: []mockResult{{stderr: "no such job", exitCode: 1}}}
	c := newCondorControllerWithRunner(nil, newTestLogger(), runner)
	c.Remove(context.Background(), "5.0")
	if len(runner.calls) != 1 || runner.calls[0].name != "condor_rm" {
		t.Errorf("calls = %+v", runner.calls)
	}
}
