package model

import (
	"errors"
	"testing"
)

func TestPsType_IsTerminal(t *testing.T) {
	terminal := map[PsType]bool{PsDone: true, PsFailed: true}
	for p := PsUndetermined; p <= PsFailed; p++ {
		if got := p.IsTerminal(); got != terminal[p] {
			t.Errorf("%s.IsTerminal() = %v, want %v", p, got, terminal[p])
		}
	}
}

func TestPsType_String(t *testing.T) {
	if got := PsUserOnHold.String(); got != "UserOnHold" {
		t.Errorf("String() = %q", got)
	}
	if got := PsType(99).String(); got != "UnknownDRMAAState" {
		t.Errorf("String() = %q", got)
	}
}

func TestPsType_HeldSuspended(t *testing.T) {
	if !PsSystemOnHold.IsHeld() || PsRunning.IsHeld() {
		t.Error("IsHeld mismatch")
	}
	if !PsUserSuspended.IsSuspended() || PsUserOnHold.IsSuspended() {
		t.Error("IsSuspended mismatch")
	}
}

func TestParseControlAction(t *testing.T) {
	for _, a := range []ControlAction{Suspend, Resume, Hold, Release, Terminate} {
		got, err := ParseControlAction(a.String())
		if err != nil || got != a {
			t.Errorf("ParseControlAction(%q) = %v, %v", a.String(), got, err)
		}
	}
	if _, err := ParseControlAction("pause"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("ParseControlAction(pause) error = %v, want invalid argument", err)
	}
}

func TestJobStatus_HasExited(t *testing.T) {
	var nilStatus *JobStatus
	if nilStatus.HasExited() {
		t.Error("nil status reports exited")
	}
	if (&JobStatus{State: PsRunning}).HasExited() {
		t.Error("running status reports exited")
	}
	if !(&JobStatus{State: PsFailed}).HasExited() {
		t.Error("failed status does not report exited")
	}
}
