package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/me/gocondor/internal/drmaa"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <job_id>",
		Short: "Print the program status of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *drmaa.Session) error {
				ps, err := s.JobPs(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", args[0], ps)
				return nil
			})
		},
	}
}
