package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent submissions from the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			j, err := openJournal(cmd.Context())
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			if j == nil {
				fmt.Fprintln(out, "Journal is disabled.")
				return nil
			}
			defer j.Close()

			entries, err := j.ListEntries(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list journal: %w", err)
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "No submissions found.")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "JOB\tNAME\tSTATE\tEXIT\tCONTACT\tSUBMITTED\tFINISHED")
			for _, e := range entries {
				exit := "-"
				if e.ExitStatus != nil {
					exit = fmt.Sprint(*e.ExitStatus)
				}
				finished := "-"
				if e.FinishedAt != nil {
					finished = humanize.Time(*e.FinishedAt)
				}
				name := e.JobName
				if name == "" {
					name = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					e.JobID, name, e.State, exit, e.Contact, humanize.Time(e.SubmittedAt), finished)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of entries")
	return cmd
}
