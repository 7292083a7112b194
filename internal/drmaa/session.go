// Package drmaa implements a DRMAA 1.0 style session on top of HTCondor.
package drmaa

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/user"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"

	"github.com/me/gocondor/internal/config"
	"github.com/me/gocondor/internal/executor"
	"github.com/me/gocondor/internal/logging"
	"github.com/me/gocondor/internal/oracle"
	"github.com/me/gocondor/internal/scheduler"
	"github.com/me/gocondor/internal/store"
	"github.com/me/gocondor/internal/submitfile"
	"github.com/me/gocondor/pkg/model"
)

const (
	drmSystem      = "Condor"
	implementation = "gocondor"
)

// Version is the DRMAA version implemented.
type Version struct {
	Major int
	Minor int
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Session is a DRMAA session bound to one contact string. A Session is
// inactive until Init succeeds and after Exit.
type Session struct {
	cfg    config.Config
	logger *slog.Logger

	fs         afero.Fs
	user       string
	lookPath   func(string) (string, error)
	submitter  executor.Submitter
	controller executor.Controller
	oracle     oracle.Oracle
	journal    store.Journal
	submitDir  string

	mu      sync.Mutex
	active  bool
	contact string
	records *store.DirStore
	engine  *scheduler.Engine
	render  *submitfile.Renderer
}

// Option configures a Session.
type Option func(*Session)

// WithFs sets the filesystem holding session directories, event logs and
// submit files. The default submitter checks and removes submit files
// through the same filesystem.
func WithFs(fs afero.Fs) Option { return func(s *Session) { s.fs = fs } }

// WithUser overrides the user name used in session directory paths.
func WithUser(name string) Option { return func(s *Session) { s.user = name } }

// WithLookPath replaces exec.LookPath for the scheduler availability check.
func WithLookPath(fn func(string) (string, error)) Option {
	return func(s *Session) { s.lookPath = fn }
}

// WithSubmitter replaces the condor_submit based submitter.
func WithSubmitter(sub executor.Submitter) Option { return func(s *Session) { s.submitter = sub } }

// WithController replaces the condor_hold family based controller.
func WithController(c executor.Controller) Option { return func(s *Session) { s.controller = c } }

// WithOracle replaces the status oracle selected by configuration.
func WithOracle(o oracle.Oracle) Option { return func(s *Session) { s.oracle = o } }

// WithJournal records submissions and completions in j.
func WithJournal(j store.Journal) Option { return func(s *Session) { s.journal = j } }

// WithSubmitDir sets where submit files are written (default os.TempDir()).
func WithSubmitDir(dir string) Option { return func(s *Session) { s.submitDir = dir } }

// New creates an inactive Session. A nil logger discards output.
func New(cfg config.Config, logger *slog.Logger, opts ...Option) *Session {
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Session{
		cfg:      cfg,
		logger:   logger.With("component", "session"),
		fs:       afero.NewOsFs(),
		lookPath: exec.LookPath,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.user == "" {
		s.user = CurrentUser()
	}
	if s.submitDir == "" {
		s.submitDir = os.TempDir()
	}
	if s.submitter == nil {
		s.submitter = executor.NewCondorSubmitter(s.fs, cfg.Binaries.Submit, cfg.Debug, logger)
	}
	if s.controller == nil {
		s.controller = executor.NewCondorController(cfg.ControlCommands(), logger)
	}
	if s.oracle == nil {
		switch cfg.Oracle {
		case oracle.KindQueue:
			s.oracle = oracle.NewQueue(cfg.Binaries.Query, logger)
		default:
			s.oracle = oracle.NewUserLog(s.fs, cfg.UserLogDir(s.user), logger)
		}
	}
	return s
}

// CurrentUser returns the login name used in session and event log paths.
func CurrentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return filepath.Base(u.Username)
	}
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return "nobody"
}

// Init activates the session for contact. The session directory is wiped
// and recreated.
func (s *Session) Init(contact string) error {
	if err := checkContact(contact); err != nil {
		return err
	}
	if _, err := s.lookPath(s.cfg.Binaries.Submit); err != nil {
		return model.WrapError(model.ErrCodeDrmsInitFailed, err, "scheduler unavailable")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return model.NewError(model.ErrCodeAlreadyActiveSession, "session %q is already active", s.contact)
	}

	records := store.NewDirStore(s.fs, store.SessionDir(s.cfg.TempRoot, s.user, contact), s.logger)
	if err := records.Reset(); err != nil {
		return err
	}
	logDir := s.cfg.UserLogDir(s.user)
	if err := s.fs.MkdirAll(logDir, 0o700); err != nil {
		return model.WrapError(model.ErrCodeInternal, err, "create event log directory")
	}

	engine := scheduler.NewEngine(s.oracle, records, scheduler.Config{PollInterval: s.cfg.PollInterval}, s.logger)
	if s.journal != nil {
		engine.OnExit(s.recordCompletion)
	}

	s.records = records
	s.engine = engine
	s.render = submitfile.NewRenderer(oracle.LogTemplate(logDir), s.logger)
	s.contact = contact
	s.active = true
	s.logger.Info("session started", "contact", contact, "dir", records.Dir())
	return nil
}

func checkContact(contact string) error {
	switch {
	case contact == "":
		return model.NewError(model.ErrCodeInvalidContactString, "contact string must not be empty")
	case contact == "." || contact == "..":
		return model.NewError(model.ErrCodeInvalidContactString, "contact string %q is reserved", contact)
	case strings.ContainsAny(contact, `/\`) || strings.ContainsRune(contact, filepath.Separator):
		return model.NewError(model.ErrCodeInvalidContactString, "contact string %q contains a path separator", contact)
	}
	return nil
}

// Exit removes the session directory and deactivates the session. Jobs
// already submitted keep running.
func (s *Session) Exit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return model.ErrNoActiveSession
	}
	if err := s.records.Destroy(); err != nil {
		return err
	}
	s.active = false
	s.records = nil
	s.engine = nil
	s.logger.Info("session finished", "contact", s.contact)
	return nil
}

// Contact returns the contact string of the current or most recent session.
func (s *Session) Contact() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contact
}

// DrmSystem returns the name of the resource manager.
func (s *Session) DrmSystem() string { return drmSystem }

// DrmaaImplementation returns the name of this implementation.
func (s *Session) DrmaaImplementation() string { return implementation }

// Version returns the DRMAA version implemented.
func (s *Session) Version() Version { return Version{Major: 1, Minor: 0} }

// state returns the active session's parts or ErrNoActiveSession.
func (s *Session) state() (*store.DirStore, *scheduler.Engine, *submitfile.Renderer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return nil, nil, nil, model.ErrNoActiveSession
	}
	return s.records, s.engine, s.render, nil
}

// AllocateJobTemplate creates an empty job template.
func (s *Session) AllocateJobTemplate() (*JobTemplate, error) {
	records, _, _, err := s.state()
	if err != nil {
		return nil, err
	}
	id, err := records.NewRecord()
	if err != nil {
		return nil, err
	}
	return &JobTemplate{handle: &templateHandle{id: id, owner: s}}, nil
}

// DeleteJobTemplate releases jt. Jobs submitted from it are unaffected.
func (s *Session) DeleteJobTemplate(jt *JobTemplate) error {
	records, _, _, err := s.state()
	if err != nil {
		return err
	}
	if err := s.checkTemplate(records, jt); err != nil {
		return err
	}
	if err := records.DeleteRecord(jt.handle.id); err != nil {
		return err
	}
	jt.handle = nil
	return nil
}

func (s *Session) checkTemplate(records *store.DirStore, jt *JobTemplate) error {
	if jt == nil || jt.handle == nil || jt.handle.owner != s {
		return model.NewError(model.ErrCodeInvalidJobTemplate, "job template was not allocated by this session")
	}
	if !records.HasRecord(jt.handle.id) {
		return model.NewError(model.ErrCodeInvalidJobTemplate, "job template %d is not part of the active session", jt.handle.id)
	}
	return nil
}

// RunJob submits jt and returns the ID of the new job.
func (s *Session) RunJob(ctx context.Context, jt *JobTemplate) (string, error) {
	ids, err := s.submit(ctx, jt, 1)
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// RunBulkJobs submits end-start+1 replicas of jt. Only an increment of 1
// is supported.
func (s *Session) RunBulkJobs(ctx context.Context, jt *JobTemplate, start, end, incr int) ([]string, error) {
	if _, _, _, err := s.state(); err != nil {
		return nil, err
	}
	if incr != 1 {
		return nil, model.NewError(model.ErrCodeInvalidArgument, "increment must be 1, got %d", incr)
	}
	if start > end {
		return nil, model.NewError(model.ErrCodeInvalidArgument, "start %d is after end %d", start, end)
	}
	return s.submit(ctx, jt, end-start+1)
}

func (s *Session) submit(ctx context.Context, jt *JobTemplate, count int) ([]string, error) {
	records, _, render, err := s.state()
	if err != nil {
		return nil, err
	}
	if err := s.checkTemplate(records, jt); err != nil {
		return nil, err
	}
	if jt.RemoteCommand == "" {
		return nil, model.NewError(model.ErrCodeInvalidJobTemplate, "job template %d has no remote command", jt.handle.id)
	}

	doc, err := render.Render(&jt.JobDescription, count)
	if err != nil {
		return nil, err
	}
	path, err := s.writeSubmitFile(doc)
	if err != nil {
		return nil, err
	}

	var ids []string
	if count == 1 {
		id, err := s.submitter.Submit(ctx, path)
		if err != nil {
			return nil, err
		}
		ids = []string{id}
	} else {
		ids, err = s.submitter.SubmitReplicated(ctx, path, count)
		if err != nil {
			return nil, err
		}
	}

	if err := records.WriteJobIDs(jt.handle.id, ids...); err != nil {
		return nil, err
	}
	s.recordSubmissions(ctx, jt, ids)
	return ids, nil
}

func (s *Session) writeSubmitFile(doc string) (string, error) {
	if err := s.fs.MkdirAll(s.submitDir, 0o700); err != nil {
		return "", model.WrapError(model.ErrCodeInternal, err, "create submit file directory")
	}
	f, err := afero.TempFile(s.fs, s.submitDir, "condor_drmaa_*")
	if err != nil {
		return "", model.WrapError(model.ErrCodeInternal, err, "create submit file")
	}
	if _, err := f.WriteString(doc); err != nil {
		f.Close()
		s.fs.Remove(f.Name())
		return "", model.WrapError(model.ErrCodeInternal, err, "write submit file")
	}
	if err := f.Close(); err != nil {
		s.fs.Remove(f.Name())
		return "", model.WrapError(model.ErrCodeInternal, err, "write submit file")
	}
	s.logger.Debug("submit file written", "path", f.Name())
	return f.Name(), nil
}

func (s *Session) recordSubmissions(ctx context.Context, jt *JobTemplate, ids []string) {
	if s.journal == nil {
		return
	}
	now := time.Now().UTC()
	for _, id := range ids {
		e := &store.JournalEntry{
			Contact:     s.Contact(),
			TemplateID:  jt.handle.id,
			JobID:       id,
			JobName:     jt.JobName,
			Command:     jt.RemoteCommand,
			SubmittedAt: now,
		}
		if err := s.journal.RecordSubmission(ctx, e); err != nil {
			s.logger.Warn("journal submission", "job_id", id, "error", err)
		}
	}
}

func (s *Session) recordCompletion(ctx context.Context, status *model.JobStatus) {
	if err := s.journal.RecordCompletion(ctx, status.JobID, status, time.Now()); err != nil {
		s.logger.Warn("journal completion", "job_id", status.JobID, "error", err)
	}
}

// Control applies action to jobID, or to every job in the session when
// jobID is model.JobIDSessionAll.
func (s *Session) Control(ctx context.Context, jobID string, action model.ControlAction) error {
	records, _, _, err := s.state()
	if err != nil {
		return err
	}
	if jobID != model.JobIDSessionAll {
		if !model.ValidJobID(jobID) {
			return model.NewError(model.ErrCodeInvalidJob, "malformed job id %q", jobID)
		}
		return s.controller.Control(ctx, jobID, action)
	}

	ids, err := records.AllJobIDs()
	if err != nil {
		return err
	}
	var result *multierror.Error
	for _, id := range ids {
		if err := s.controller.Control(ctx, id, action); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return model.WrapError(model.ErrCodeInternal, err, action.String()+" session jobs")
	}
	return nil
}

// JobPs returns the current program status of jobID.
func (s *Session) JobPs(ctx context.Context, jobID string) (model.PsType, error) {
	if _, _, _, err := s.state(); err != nil {
		return model.PsUndetermined, err
	}
	if !model.ValidJobID(jobID) {
		return model.PsUndetermined, model.NewError(model.ErrCodeInvalidJob, "malformed job id %q", jobID)
	}
	status, err := s.oracle.Status(ctx, jobID)
	if err != nil {
		return model.PsUndetermined, err
	}
	return status.State, nil
}

// Wait blocks until jobID exits or timeout elapses. See scheduler.Engine.Wait.
func (s *Session) Wait(ctx context.Context, jobID string, timeout time.Duration) (*model.JobStatus, error) {
	_, engine, _, err := s.state()
	if err != nil {
		return nil, err
	}
	return engine.Wait(ctx, jobID, timeout)
}

// Synchronize waits for all of jobIDs under one deadline. See
// scheduler.Engine.Synchronize.
func (s *Session) Synchronize(ctx context.Context, jobIDs []string, timeout time.Duration, dispose bool) error {
	_, engine, _, err := s.state()
	if err != nil {
		return err
	}
	return engine.Synchronize(ctx, jobIDs, timeout, dispose)
}

// Cancel removes jobID from the queue on a best-effort basis.
func (s *Session) Cancel(ctx context.Context, jobID string) error {
	if _, _, _, err := s.state(); err != nil {
		return err
	}
	if !model.ValidJobID(jobID) {
		return model.NewError(model.ErrCodeInvalidJob, "malformed job id %q", jobID)
	}
	s.controller.Remove(ctx, jobID)
	return nil
}
