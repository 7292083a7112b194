package drmaa

import "github.com/me/gocondor/pkg/model"

// JobTemplate is a job description allocated by a Session. Only templates
// returned by AllocateJobTemplate are accepted by RunJob and RunBulkJobs.
type JobTemplate struct {
	model.JobDescription

	handle *templateHandle
}

type templateHandle struct {
	id    int
	owner *Session
}

// ID returns the template's ID within its session, or 0 once it has been
// deleted.
func (jt *JobTemplate) ID() int {
	if jt == nil || jt.handle == nil {
		return 0
	}
	return jt.handle.id
}
