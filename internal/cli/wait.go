package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/me/gocondor/internal/drmaa"
	"github.com/me/gocondor/pkg/model"
)

func newWaitCmd() *cobra.Command {
	var timeout string

	cmd := &cobra.Command{
		Use:   "wait <job_id>",
		Short: "Wait for a job to finish and print its status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := parseTimeout(timeout)
			if err != nil {
				return err
			}
			return withSession(cmd, func(ctx context.Context, s *drmaa.Session) error {
				st, err := s.Wait(ctx, args[0], d)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), formatStatus(st))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&timeout, "timeout", "forever", "Wait timeout (duration, forever or nowait)")
	return cmd
}

func newSyncCmd() *cobra.Command {
	var (
		timeout string
		dispose bool
	)

	cmd := &cobra.Command{
		Use:   "sync <job_id>...",
		Short: "Wait for several jobs under one deadline",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := parseTimeout(timeout)
			if err != nil {
				return err
			}
			return withSession(cmd, func(ctx context.Context, s *drmaa.Session) error {
				if err := s.Synchronize(ctx, args, d, dispose); err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, id := range args {
					st, err := s.Wait(ctx, id, model.TimeoutNoWait)
					if err != nil {
						return err
					}
					fmt.Fprintln(out, formatStatus(st))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&timeout, "timeout", "forever", "Shared timeout (duration, forever or nowait)")
	cmd.Flags().BoolVar(&dispose, "dispose", false, "Forget finished jobs")
	return cmd
}

// formatStatus renders a status as a single line.
func formatStatus(st *model.JobStatus) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-12s  %s", st.JobID, st.State)
	switch {
	case st.HasAborted():
		b.WriteString("  aborted")
	case st.HasSignaled():
		fmt.Fprintf(&b, "  signal=%s", st.TerminationSignal)
	case st.HasExited():
		fmt.Fprintf(&b, "  exit=%d", st.ExitStatus)
	}
	if st.HasCoreDump() {
		b.WriteString("  core")
	}
	return b.String()
}
