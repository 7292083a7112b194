package model

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Reserved job identifiers. Neither is a valid job ID.
const (
	// JobIDSessionAny makes Wait pick any job recorded in the session.
	JobIDSessionAny = "DRMAA_JOB_IDS_SESSION_ANY"
	// JobIDSessionAll makes Synchronize wait for every job in the session.
	JobIDSessionAll = "DRMAA_JOB_IDS_SESSION_ALL"
)

// Timeout sentinels accepted by Wait and Synchronize.
const (
	TimeoutWaitForever time.Duration = -1
	TimeoutNoWait      time.Duration = 0
)

var jobIDPattern = regexp.MustCompile(`^\d+\.\d+$`)

// ValidJobID reports whether id has the form <cluster>.<proc>.
func ValidJobID(id string) bool {
	return jobIDPattern.MatchString(id)
}

// ValidTimeout reports whether d is positive or one of the timeout sentinels.
func ValidTimeout(d time.Duration) bool {
	return d > 0 || d == TimeoutWaitForever || d == TimeoutNoWait
}

// SplitJobID returns the cluster and proc numbers of a job ID.
func SplitJobID(id string) (cluster, proc int, err error) {
	if !ValidJobID(id) {
		return 0, 0, NewError(ErrCodeInvalidJob, "malformed job id %q", id)
	}
	c, p, _ := strings.Cut(id, ".")
	cluster, _ = strconv.Atoi(c)
	proc, _ = strconv.Atoi(p)
	return cluster, proc, nil
}

// ClusterOf strips the replica suffix from a job ID ("482.0" -> "482").
func ClusterOf(id string) string {
	c, _, _ := strings.Cut(id, ".")
	return c
}

// ReplicaID builds the ID of replica offset within cluster.
func ReplicaID(cluster string, offset int) string {
	return fmt.Sprintf("%s.%d", cluster, offset)
}
