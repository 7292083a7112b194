package model

import "time"

// Placeholders recognised in input, output and error paths.
const (
	// PlaceholderTaskID expands to the index of a replica in a bulk submission.
	PlaceholderTaskID = "$drmaa_incr_ph$"
	// PlaceholderHomeDirectory expands to the home directory of the job owner.
	PlaceholderHomeDirectory = "$drmaa_hd_ph$"
)

// FileTransferMode selects which streams are staged by the scheduler.
type FileTransferMode struct {
	Input  bool `yaml:"input"`
	Output bool `yaml:"output"`
	Error  bool `yaml:"error"`
}

// JobDescription is what to run. It is owned by the caller until it is
// submitted and is only read by the submit file renderer.
type JobDescription struct {
	RemoteCommand       string            `yaml:"command"`
	Args                []string          `yaml:"args"`
	JobName             string            `yaml:"name"`
	WorkingDirectory    string            `yaml:"working_directory"`
	Env                 map[string]string `yaml:"env"`
	InputPath           string            `yaml:"input"`
	OutputPath          string            `yaml:"output"`
	ErrorPath           string            `yaml:"error"`
	TransferFiles       FileTransferMode  `yaml:"transfer"`
	JoinFiles           bool              `yaml:"join_files"`
	Email               []string          `yaml:"email"`
	BlockEmail          bool              `yaml:"block_email"`
	SubmissionState     SubmissionState   `yaml:"-"`
	StartTime           *time.Time        `yaml:"start_time"`
	NativeSpecification string            `yaml:"native"`
	JobCategory         string            `yaml:"category"`
}
