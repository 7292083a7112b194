package store

import (
	"bufio"
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/me/gocondor/pkg/model"
)

// DirStore keeps one record file per job template inside a session
// directory. The file is named after the template ID and holds the job IDs
// assigned at submission, one per line.
type DirStore struct {
	fs     afero.Fs
	dir    string
	logger *slog.Logger

	mu   sync.Mutex
	next int
}

// SessionDir returns the directory used for a session of user with contact.
func SessionDir(root, user, contact string) string {
	return filepath.Join(root, "condor-drmaa-"+user, contact)
}

// NewDirStore creates a DirStore rooted at dir. Nothing touches the
// filesystem until Reset is called.
func NewDirStore(fs afero.Fs, dir string, logger *slog.Logger) *DirStore {
	return &DirStore{
		fs:     fs,
		dir:    dir,
		logger: logger.With("component", "dirstore"),
		next:   1,
	}
}

// Dir returns the session directory.
func (s *DirStore) Dir() string {
	return s.dir
}

// Reset removes anything left at the session directory and recreates it empty.
func (s *DirStore) Reset() error {
	if _, err := s.fs.Stat(s.dir); err == nil {
		if err := s.fs.RemoveAll(s.dir); err != nil {
			return model.WrapError(model.ErrCodeInternal, err, fmt.Sprintf("unable to delete %s and it is in the way", s.dir))
		}
		if _, err := s.fs.Stat(s.dir); err == nil {
			return model.NewError(model.ErrCodeInternal, "unable to delete %s and it is in the way", s.dir)
		}
	}
	if err := s.fs.MkdirAll(s.dir, 0o700); err != nil {
		return model.WrapError(model.ErrCodeInternal, err, "create session directory")
	}
	s.logger.Debug("session directory ready", "dir", s.dir)
	return nil
}

// Destroy removes the session directory and everything in it.
func (s *DirStore) Destroy() error {
	if err := s.fs.RemoveAll(s.dir); err != nil {
		return model.WrapError(model.ErrCodeInternal, err, "remove session directory")
	}
	s.logger.Debug("session directory removed", "dir", s.dir)
	return nil
}

func (s *DirStore) recordPath(id int) string {
	return filepath.Join(s.dir, strconv.Itoa(id))
}

// NewRecord allocates the next template ID and creates its empty record.
func (s *DirStore) NewRecord() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.next
	f, err := s.fs.OpenFile(s.recordPath(id), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return 0, model.WrapError(model.ErrCodeInternal, err, "unable to create job template")
	}
	if err := f.Close(); err != nil {
		return 0, model.WrapError(model.ErrCodeInternal, err, "unable to create job template")
	}
	s.next++
	s.logger.Debug("record created", "template_id", id)
	return id, nil
}

// HasRecord reports whether a record exists for template id.
func (s *DirStore) HasRecord(id int) bool {
	fi, err := s.fs.Stat(s.recordPath(id))
	return err == nil && fi.Mode().IsRegular()
}

// DeleteRecord removes the record of template id. A missing record is not an error.
func (s *DirStore) DeleteRecord(id int) error {
	err := s.fs.Remove(s.recordPath(id))
	if err != nil && !os.IsNotExist(err) {
		return model.WrapError(model.ErrCodeInternal, err, "delete job template record")
	}
	s.logger.Debug("record deleted", "template_id", id)
	return nil
}

// WriteJobIDs overwrites the record of template id with ids.
func (s *DirStore) WriteJobIDs(id int, ids ...string) error {
	var buf bytes.Buffer
	for _, jobID := range ids {
		buf.WriteString(jobID)
		buf.WriteByte('\n')
	}
	if err := afero.WriteFile(s.fs, s.recordPath(id), buf.Bytes(), 0o600); err != nil {
		return model.WrapError(model.ErrCodeInternal, err, "save job id in session")
	}
	s.logger.Debug("record written", "template_id", id, "job_ids", len(ids))
	return nil
}

// ReadJobIDs returns the valid job IDs held by the record of template id.
func (s *DirStore) ReadJobIDs(id int) ([]string, error) {
	return s.readFile(s.recordPath(id))
}

func (s *DirStore) readFile(path string) ([]string, error) {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return nil, model.WrapError(model.ErrCodeInternal, err, "unable to read file "+path)
	}
	var ids []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		if id := strings.TrimSpace(sc.Text()); model.ValidJobID(id) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// recordFiles lists record files ordered by template ID; names that are not
// template IDs sort after them by name.
func (s *DirStore) recordFiles() ([]string, error) {
	infos, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return nil, model.WrapError(model.ErrCodeInternal, err, "scan session directory")
	}
	var names []string
	for _, fi := range infos {
		if fi.Mode().IsRegular() {
			names = append(names, fi.Name())
		}
	}
	sort.SliceStable(names, func(i, j int) bool {
		a, errA := strconv.Atoi(names[i])
		b, errB := strconv.Atoi(names[j])
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		}
		return names[i] < names[j]
	})
	return names, nil
}

// AllJobIDs scans every record and returns the distinct job IDs, sorted.
func (s *DirStore) AllJobIDs() ([]string, error) {
	names, err := s.recordFiles()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var all []string
	for _, name := range names {
		ids, err := s.readFile(filepath.Join(s.dir, name))
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				all = append(all, id)
			}
		}
	}
	sort.Strings(all)
	return all, nil
}

// AnyJobID returns the first job ID of the lowest numbered non-empty record.
func (s *DirStore) AnyJobID() (string, error) {
	names, err := s.recordFiles()
	if err != nil {
		return "", err
	}
	for _, name := range names {
		ids, err := s.readFile(filepath.Join(s.dir, name))
		if err != nil {
			return "", err
		}
		if len(ids) > 0 {
			return ids[0], nil
		}
	}
	return "", nil
}

// ClearJobID removes jobID from whichever record holds it.
func (s *DirStore) ClearJobID(jobID string) error {
	names, err := s.recordFiles()
	if err != nil {
		return err
	}
	for _, name := range names {
		path := filepath.Join(s.dir, name)
		ids, err := s.readFile(path)
		if err != nil {
			return err
		}
		kept := ids[:0]
		found := false
		for _, id := range ids {
			if id == jobID {
				found = true
				continue
			}
			kept = append(kept, id)
		}
		if !found {
			continue
		}
		var buf bytes.Buffer
		for _, id := range kept {
			buf.WriteString(id)
			buf.WriteByte('\n')
		}
		if err := afero.WriteFile(s.fs, path, buf.Bytes(), 0o600); err != nil {
			return model.WrapError(model.ErrCodeInternal, err, "dispose job "+jobID)
		}
		s.logger.Debug("job disposed", "job_id", jobID, "record", name)
	}
	return nil
}
