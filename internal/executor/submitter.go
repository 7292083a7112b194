package executor

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/afero"

	"github.com/me/gocondor/pkg/model"
)

// submittedMarker identifies the line of condor_submit output that carries
// the cluster number, e.g. "1 job(s) submitted to cluster 482.".
const submittedMarker = "submitted to cluster"

var clusterPattern = regexp.MustCompile(`(\d+)\.\s*$`)

// CondorSubmitter submits documents with condor_submit. Submit documents
// are checked and removed through fs.
type CondorSubmitter struct {
	fs     afero.Fs
	binary string
	// KeepSubmitFiles leaves submit documents on disk after submission.
	KeepSubmitFiles bool
	logger          *slog.Logger
	runner          CommandRunner
}

// NewCondorSubmitter creates a CondorSubmitter that runs binary on
// documents stored in fs.
func NewCondorSubmitter(fs afero.Fs, binary string, keepSubmitFiles bool, logger *slog.Logger) *CondorSubmitter {
	return newCondorSubmitterWithRunner(fs, binary, keepSubmitFiles, logger, &osCommandRunner{})
}

// newCondorSubmitterWithRunner is used by tests to inject a mock CommandRunner.
func newCondorSubmitterWithRunner(fs afero.Fs, binary string, keepSubmitFiles bool, logger *slog.Logger, runner CommandRunner) *CondorSubmitter {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if binary == "" {
		binary = "condor_submit"
	}
	return &CondorSubmitter{
		fs:              fs,
		binary:          binary,
		KeepSubmitFiles: keepSubmitFiles,
		logger:          logger.With("component", "condor-submitter"),
		runner:          runner,
	}
}

// Submit runs condor_submit on the document at path and returns the ID of
// the first job in the resulting cluster.
func (s *CondorSubmitter) Submit(ctx context.Context, path string) (string, error) {
	if err := checkReadable(s.fs, path); err != nil {
		return "", err
	}
	defer s.cleanup(path)

	s.logger.Debug("submitting", "binary", s.binary, "path", path)
	stdout, stderr, exitCode, err := s.runner.Run(ctx, s.binary, path)
	if err != nil {
		return "", model.WrapError(model.ErrCodeInternal, err, "run "+s.binary)
	}
	if exitCode != 0 {
		return "", model.NewError(model.ErrCodeInternal, "%s exited with code %d: %s",
			s.binary, exitCode, strings.TrimSpace(stderr))
	}

	cluster, ok := parseCluster(stdout)
	if !ok {
		return "", model.NewError(model.ErrCodeInternal, "no job id in %s output: %s",
			s.binary, strings.TrimSpace(stdout+stderr))
	}
	jobID := model.ReplicaID(cluster, 0)
	s.logger.Info("job submitted", "job_id", jobID)
	return jobID, nil
}

// SubmitReplicated submits a document that queues n jobs and derives the
// IDs base.0 through base.(n-1).
func (s *CondorSubmitter) SubmitReplicated(ctx context.Context, path string, n int) ([]string, error) {
	if n <= 0 {
		return nil, model.NewError(model.ErrCodeInvalidArgument, "replica count must be positive, got %d", n)
	}
	first, err := s.Submit(ctx, path)
	if err != nil {
		return nil, err
	}
	cluster := model.ClusterOf(first)
	ids := make([]string, n)
	for i := range ids {
		ids[i] = model.ReplicaID(cluster, i)
	}
	return ids, nil
}

func (s *CondorSubmitter) cleanup(path string) {
	if s.KeepSubmitFiles {
		s.logger.Info("keeping submit file", "path", path)
		return
	}
	if err := s.fs.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("remove submit file", "path", path, "error", err)
	}
}

func checkReadable(fs afero.Fs, path string) error {
	fi, err := fs.Stat(path)
	if err != nil {
		return model.WrapError(model.ErrCodeInvalidArgument, err, "submit file")
	}
	if !fi.Mode().IsRegular() {
		return model.NewError(model.ErrCodeInvalidArgument, "submit file %s is not a regular file", path)
	}
	f, err := fs.Open(path)
	if err != nil {
		return model.WrapError(model.ErrCodeInvalidArgument, err, fmt.Sprintf("submit file %s is not readable", path))
	}
	return f.Close()
}

// parseCluster finds the cluster number in condor_submit output.
func parseCluster(stdout string) (string, bool) {
	sc := bufio.NewScanner(strings.NewReader(stdout))
	for sc.Scan() {
		line := sc.Text()
		if !strings.Contains(line, submittedMarker) {
			continue
		}
		if m := clusterPattern.FindStringSubmatch(line); m != nil {
			return m[1], true
		}
	}
	return "", false
}
