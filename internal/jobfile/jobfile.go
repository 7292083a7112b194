// Package jobfile reads job descriptions from YAML files.
//
// A job file holds the fields of a model.JobDescription plus two extras:
//
//	name: blast
//	command: /usr/bin/blastp -db nr -query "my query.fa"
//	output: ":$drmaa_hd_ph$/blast.$drmaa_incr_ph$.out"
//	join_files: true
//	hold: true
//	count: 4
//
// When args is absent the command line is split with shell quoting rules.
package jobfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-shellwords"
	"gopkg.in/yaml.v3"

	"github.com/me/gocondor/pkg/model"
)

// File is a parsed job file.
type File struct {
	model.JobDescription `yaml:",inline"`

	// Hold submits the job in the held state.
	Hold bool `yaml:"hold"`
	// Count is the number of replicas to submit; 0 means 1.
	Count int `yaml:"count"`
}

// Load reads and parses the job file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read job file: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("job file %s: %w", path, err)
	}
	return f, nil
}

// Parse decodes a job file. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty job file")
		}
		return nil, fmt.Errorf("parse: %w", err)
	}

	if len(f.Args) == 0 && f.RemoteCommand != "" {
		words, err := shellwords.Parse(f.RemoteCommand)
		if err != nil {
			return nil, fmt.Errorf("command: %w", err)
		}
		if len(words) > 0 {
			f.RemoteCommand = words[0]
			f.Args = words[1:]
		}
	}
	if f.RemoteCommand == "" {
		return nil, errors.New("command is required")
	}
	if f.Count < 0 {
		return nil, fmt.Errorf("count must not be negative, got %d", f.Count)
	}
	if f.Count == 0 {
		f.Count = 1
	}
	if f.Hold {
		f.SubmissionState = model.HoldState
	}
	return &f, nil
}

// Apply copies the job description into dst, keeping dst's identity.
func (f *File) Apply(dst *model.JobDescription) {
	*dst = f.JobDescription
}
