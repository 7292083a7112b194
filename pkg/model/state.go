package model

// PsType is the program status of a job as reported by the scheduler.
type PsType int

const (
	PsUndetermined PsType = iota
	PsQueuedActive
	PsSystemOnHold
	PsUserOnHold
	PsUserSystemOnHold
	PsRunning
	PsSystemSuspended
	PsUserSuspended
	PsUserSystemSuspended
	PsDone
	PsFailed
)

var psNames = map[PsType]string{
	PsUndetermined:        "Undetermined",
	PsQueuedActive:        "QueuedActive",
	PsSystemOnHold:        "SystemOnHold",
	PsUserOnHold:          "UserOnHold",
	PsUserSystemOnHold:    "UserSystemOnHold",
	PsRunning:             "Running",
	PsSystemSuspended:     "SystemSuspended",
	PsUserSuspended:       "UserSuspended",
	PsUserSystemSuspended: "UserSystemSuspended",
	PsDone:                "Done",
	PsFailed:              "Failed",
}

// String returns the DRMAA name of the state.
func (p PsType) String() string {
	if s, ok := psNames[p]; ok {
		return s
	}
	return "UnknownDRMAAState"
}

// IsTerminal returns true once the job has left the scheduler.
func (p PsType) IsTerminal() bool {
	return p == PsDone || p == PsFailed
}

// IsHeld returns true for any of the hold states.
func (p PsType) IsHeld() bool {
	switch p {
	case PsSystemOnHold, PsUserOnHold, PsUserSystemOnHold:
		return true
	}
	return false
}

// IsSuspended returns true for any of the suspended states.
func (p PsType) IsSuspended() bool {
	switch p {
	case PsSystemSuspended, PsUserSuspended, PsUserSystemSuspended:
		return true
	}
	return false
}

// SubmissionState is the state a job enters the queue in.
type SubmissionState int

const (
	ActiveState SubmissionState = iota
	HoldState
)

// ControlAction is an operation applied to a job through Session.Control.
type ControlAction int

const (
	Suspend ControlAction = iota
	Resume
	Hold
	Release
	Terminate
)

// String returns the lower-case action name used by the CLI.
func (a ControlAction) String() string {
	switch a {
	case Suspend:
		return "suspend"
	case Resume:
		return "resume"
	case Hold:
		return "hold"
	case Release:
		return "release"
	case Terminate:
		return "terminate"
	}
	return "unknown"
}

// ParseControlAction converts a CLI action name to a ControlAction.
func ParseControlAction(s string) (ControlAction, error) {
	for _, a := range []ControlAction{Suspend, Resume, Hold, Release, Terminate} {
		if a.String() == s {
			return a, nil
		}
	}
	return 0, NewError(ErrCodeInvalidArgument, "unknown control action %q", s)
}
