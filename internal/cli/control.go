package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/me/gocondor/internal/drmaa"
	"github.com/me/gocondor/pkg/model"
)

func newControlCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "control <suspend|resume|hold|release|terminate> <job_id>",
		Short:     "Suspend, resume, hold, release or terminate a job",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"suspend", "resume", "hold", "release", "terminate"},
		RunE: func(cmd *cobra.Command, args []string) error {
			action, err := model.ParseControlAction(args[0])
			if err != nil {
				return err
			}
			return withSession(cmd, func(ctx context.Context, s *drmaa.Session) error {
				if err := s.Control(ctx, args[1], action); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[1], action)
				return nil
			})
		},
	}
}
