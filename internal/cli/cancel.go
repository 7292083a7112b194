package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/me/gocondor/internal/drmaa"
)

func newCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job_id>",
		Short: "Remove a job from the queue, ignoring failures",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *drmaa.Session) error {
				if err := s.Cancel(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cancel requested for %s\n", args[0])
				return nil
			})
		},
	}
}
