package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/me/gocondor/internal/config"
	"github.com/me/gocondor/internal/drmaa"
	"github.com/me/gocondor/internal/logging"
	"github.com/me/gocondor/internal/store"
)

var (
	flagConfig    string
	flagContact   string
	flagDebug     bool
	flagKeep      bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
	cfg    config.Config

	// sessionOptions are applied to every session the CLI opens.
	sessionOptions []drmaa.Option
)

// NewRootCmd creates the root cobra command for the gocondor CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gocondor",
		Short: "gocondor: DRMAA-style job control for HTCondor",
		Long:  "gocondor submits, waits for and controls HTCondor jobs through a DRMAA session.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cmd)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default ~/.gocondor/config.yaml)")
	root.PersistentFlags().StringVar(&flagContact, "contact", "", "Session contact string (default cli-<uuid>)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().BoolVar(&flagKeep, "keep-submit-files", false, "Keep generated submit files (or GOCONDOR_DEBUG env)")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "Log format (text, json)")

	root.AddCommand(
		newRunCmd(),
		newRenderCmd(),
		newWaitCmd(),
		newSyncCmd(),
		newControlCmd(),
		newCancelCmd(),
		newStatusCmd(),
		newLogsCmd(),
		newHistoryCmd(),
	)

	return root
}

func setup(cmd *cobra.Command) error {
	path, required := flagConfig, true
	if path == "" {
		required = false
		if p, err := config.DefaultPath(); err == nil {
			path = p
		}
	}
	c, err := config.Load(path, required)
	if err != nil {
		return err
	}
	if err := c.ApplyEnv(os.Getenv); err != nil {
		return err
	}
	if flagKeep {
		c.Debug = true
	}
	if flagLogLevel != "" {
		c.LogLevel = flagLogLevel
	}
	if flagDebug {
		c.LogLevel = "debug"
	}
	if flagLogFormat != "" {
		c.LogFormat = flagLogFormat
	}
	if !logging.ValidFormat(c.LogFormat) {
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	cfg = c
	logger = logging.NewLoggerWithWriter(logging.ParseLevel(c.LogLevel), c.LogFormat, cmd.ErrOrStderr())
	return nil
}

// openJournal opens the configured journal, or returns nil when none is set.
func openJournal(ctx context.Context) (*store.SQLiteJournal, error) {
	if cfg.JournalPath == "" {
		return nil, nil
	}
	j, err := store.NewSQLiteJournal(cfg.JournalPath, logger)
	if err != nil {
		return nil, err
	}
	if err := j.Migrate(ctx); err != nil {
		j.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return j, nil
}

// withSession runs fn inside a session that is exited afterwards.
func withSession(cmd *cobra.Command, fn func(ctx context.Context, s *drmaa.Session) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	opts := append([]drmaa.Option{}, sessionOptions...)
	j, err := openJournal(ctx)
	if err != nil {
		logger.Warn("journal unavailable", "path", cfg.JournalPath, "error", err)
	} else if j != nil {
		defer j.Close()
		opts = append(opts, drmaa.WithJournal(j))
	}

	contact := flagContact
	if contact == "" {
		contact = "cli-" + uuid.New().String()
	}

	s := drmaa.New(cfg, logger, opts...)
	if err := s.Init(contact); err != nil {
		return err
	}
	defer func() {
		if err := s.Exit(); err != nil {
			logger.Warn("exit session", "contact", contact, "error", err)
		}
	}()
	return fn(ctx, s)
}
