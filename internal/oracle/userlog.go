package oracle

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/me/gocondor/pkg/model"
)

// User log event codes.
const (
	eventSubmit      = 0
	eventExecute     = 1
	eventEvicted     = 4
	eventTerminated  = 5
	eventAborted     = 9
	eventSuspended   = 10
	eventUnsuspended = 11
	eventHeld        = 12
	eventReleased    = 13
)

var (
	// 005 (482.000.000) 10/19 12:01:00 Job terminated.
	eventHeader  = regexp.MustCompile(`^(\d{3}) \((\d+)\.(\d+)\.\d+\)`)
	returnValue  = regexp.MustCompile(`\(return value (-?\d+)\)`)
	signalNumber = regexp.MustCompile(`\(signal (\d+)\)`)
)

// UserLog reads job status from the per-job event logs named by the Log
// directive of the submit document.
type UserLog struct {
	fs     afero.Fs
	dir    string
	logger *slog.Logger
}

// NewUserLog creates a UserLog reading <dir>/<cluster>.<proc>.log files.
func NewUserLog(fs afero.Fs, dir string, logger *slog.Logger) *UserLog {
	return &UserLog{
		fs:     fs,
		dir:    dir,
		logger: logger.With("component", "userlog-oracle"),
	}
}

// LogTemplate is the Log directive value matching the files UserLog reads.
func LogTemplate(dir string) string {
	return filepath.Join(dir, "$(Cluster).$(Process).log")
}

// Path returns the event log of jobID.
func (u *UserLog) Path(jobID string) (string, error) {
	cluster, proc, err := model.SplitJobID(jobID)
	if err != nil {
		return "", err
	}
	return filepath.Join(u.dir, fmt.Sprintf("%d.%d.log", cluster, proc)), nil
}

// Status replays the event log of jobID. A job without a log yet is
// reported as undetermined.
func (u *UserLog) Status(_ context.Context, jobID string) (*model.JobStatus, error) {
	path, err := u.Path(jobID)
	if err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(u.fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			u.logger.Debug("no event log yet", "job_id", jobID, "path", path)
			return &model.JobStatus{JobID: jobID, State: model.PsUndetermined, UpdatedAt: time.Now().UTC()}, nil
		}
		return nil, model.WrapError(model.ErrCodeInternal, err, "read event log "+path)
	}

	cluster, proc, _ := model.SplitJobID(jobID)
	status := parseUserLog(data, cluster, proc)
	status.JobID = jobID
	status.UpdatedAt = time.Now().UTC()
	u.logger.Debug("status", "job_id", jobID, "state", status.State)
	return status, nil
}

// parseUserLog folds the events of one job into a status.
func parseUserLog(data []byte, cluster, proc int) *model.JobStatus {
	status := &model.JobStatus{State: model.PsUndetermined}
	current := -1

	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := sc.Text()
		if line == "..." {
			current = -1
			continue
		}
		if m := eventHeader.FindStringSubmatch(line); m != nil {
			c, _ := strconv.Atoi(m[2])
			p, _ := strconv.Atoi(m[3])
			if c != cluster || p != proc {
				current = -1
				continue
			}
			current, _ = strconv.Atoi(m[1])
			applyEvent(status, current)
			continue
		}
		if current == eventTerminated {
			applyTermination(status, strings.TrimSpace(line))
		}
	}
	return status
}

func applyEvent(s *model.JobStatus, code int) {
	switch code {
	case eventSubmit, eventEvicted, eventReleased:
		s.State = model.PsQueuedActive
	case eventExecute, eventUnsuspended:
		s.State = model.PsRunning
	case eventTerminated:
		s.State = model.PsDone
	case eventAborted:
		s.State = model.PsFailed
		s.Aborted = true
	case eventSuspended:
		s.State = model.PsUserSuspended
	case eventHeld:
		s.State = model.PsUserOnHold
	}
}

// applyTermination reads one body line of a terminated event.
func applyTermination(s *model.JobStatus, line string) {
	if m := returnValue.FindStringSubmatch(line); m != nil {
		s.ExitStatus, _ = strconv.Atoi(m[1])
		return
	}
	if m := signalNumber.FindStringSubmatch(line); m != nil {
		s.Signaled = true
		s.TerminationSignal = m[1]
		s.State = model.PsFailed
		return
	}
	if strings.Contains(line, "Corefile in:") {
		s.CoreDump = true
		return
	}
	// Usr 0 00:00:00, Sys 0 00:00:00  -  Run Remote Usage
	if usage, label, ok := strings.Cut(line, "  -  "); ok {
		if s.ResourceUsage == nil {
			s.ResourceUsage = make(map[string]string)
		}
		s.ResourceUsage[strings.TrimSpace(label)] = strings.TrimSpace(usage)
	}
}
