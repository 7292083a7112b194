package model

import "time"

// JobStatus is a snapshot of a job's progress as seen by a status oracle.
type JobStatus struct {
	JobID             string
	State             PsType
	ExitStatus        int
	Signaled          bool
	TerminationSignal string
	Aborted           bool
	CoreDump          bool
	ResourceUsage     map[string]string
	UpdatedAt         time.Time
}

// HasExited reports whether the job has left the system.
func (s *JobStatus) HasExited() bool {
	return s != nil && s.State.IsTerminal()
}

// HasSignaled reports whether the job was terminated by a signal.
func (s *JobStatus) HasSignaled() bool { return s != nil && s.Signaled }

// HasAborted reports whether the job was removed before it could finish.
func (s *JobStatus) HasAborted() bool { return s != nil && s.Aborted }

// HasCoreDump reports whether the job left a core file.
func (s *JobStatus) HasCoreDump() bool { return s != nil && s.CoreDump }
