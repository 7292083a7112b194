package cli

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/me/gocondor/internal/drmaa"
	"github.com/me/gocondor/internal/oracle"
)

// logsFs is the filesystem event logs are read from.
var logsFs = afero.NewOsFs()

func newLogsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logs <job_id>",
		Short: "Print the event log of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ul := oracle.NewUserLog(logsFs, cfg.UserLogDir(drmaa.CurrentUser()), logger)
			path, err := ul.Path(args[0])
			if err != nil {
				return err
			}
			data, err := afero.ReadFile(logsFs, path)
			if err != nil {
				return fmt.Errorf("read event log: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
