// Package config loads gocondor settings from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/me/gocondor/internal/oracle"
	"github.com/me/gocondor/pkg/model"
)

// Environment variables that override file settings.
const (
	EnvDebug   = "GOCONDOR_DEBUG"
	EnvTempDir = "GOCONDOR_TMPDIR"
)

// Binaries names the HTCondor tools. Bare names are looked up on PATH.
type Binaries struct {
	Submit   string `yaml:"submit"`
	Query    string `yaml:"query"`
	Remove   string `yaml:"remove"`
	Hold     string `yaml:"hold"`
	Release  string `yaml:"release"`
	Suspend  string `yaml:"suspend"`
	Continue string `yaml:"continue"`
}

// Config holds client configuration.
type Config struct {
	TempRoot     string        `yaml:"temp_root"`     // Parent of session directories (default os.TempDir())
	LogDir       string        `yaml:"log_dir"`       // Job event logs; empty means <TempRoot>/condor-drmaa-<user>.logs
	Debug        bool          `yaml:"debug"`         // Keep submit files after submission
	PollInterval time.Duration `yaml:"poll_interval"` // Pause between status polls
	Oracle       string        `yaml:"oracle"`        // userlog or queue
	Binaries     Binaries      `yaml:"binaries"`
	JournalPath  string        `yaml:"journal_path"` // SQLite journal; empty disables it
	LogLevel     string        `yaml:"log_level"`    // debug, info, warn, error
	LogFormat    string        `yaml:"log_format"`   // text, json
}

// Default returns sensible defaults.
func Default() Config {
	cfg := Config{
		TempRoot:     os.TempDir(),
		PollInterval: 5 * time.Second,
		Oracle:       oracle.KindUserLog,
		Binaries: Binaries{
			Submit:   "condor_submit",
			Query:    "condor_q",
			Remove:   "condor_rm",
			Hold:     "condor_hold",
			Release:  "condor_release",
			Suspend:  "condor_suspend",
			Continue: "condor_continue",
		},
		LogLevel:  "info",
		LogFormat: "text",
	}
	if dir, err := homeDir(); err == nil {
		cfg.JournalPath = filepath.Join(dir, "journal.db")
	}
	return cfg
}

// DefaultPath returns ~/.gocondor/config.yaml.
func DefaultPath() (string, error) {
	dir, err := homeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func homeDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home directory: %w", err)
	}
	return filepath.Join(home, ".gocondor"), nil
}

// Load reads path over the defaults. A missing file is not an error unless
// required is set.
func Load(path string, required bool) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides settings from the environment as read by getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv(EnvDebug); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvDebug, err)
		}
		c.Debug = b
	}
	if v := getenv(EnvTempDir); v != "" {
		c.TempRoot = v
	}
	return nil
}

// Validate checks the settings that cannot be defaulted.
func (c *Config) Validate() error {
	if c.TempRoot == "" {
		return errors.New("temp_root must not be empty")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %v", c.PollInterval)
	}
	switch c.Oracle {
	case oracle.KindUserLog, oracle.KindQueue:
	default:
		return fmt.Errorf("oracle must be %q or %q, got %q", oracle.KindUserLog, oracle.KindQueue, c.Oracle)
	}
	if c.Binaries.Submit == "" {
		return errors.New("binaries.submit must not be empty")
	}
	return nil
}

// UserLogDir returns the directory job event logs are written to.
func (c *Config) UserLogDir(user string) string {
	if c.LogDir != "" {
		return c.LogDir
	}
	return filepath.Join(c.TempRoot, "condor-drmaa-"+user+".logs")
}

// ControlCommands maps control actions to the configured tools.
func (c *Config) ControlCommands() map[model.ControlAction]string {
	return map[model.ControlAction]string{
		model.Suspend:   c.Binaries.Suspend,
		model.Resume:    c.Binaries.Continue,
		model.Hold:      c.Binaries.Hold,
		model.Release:   c.Binaries.Release,
		model.Terminate: c.Binaries.Remove,
	}
}
