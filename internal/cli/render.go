package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/me/gocondor/internal/drmaa"
	"github.com/me/gocondor/internal/oracle"
	"github.com/me/gocondor/internal/submitfile"
	"github.com/me/gocondor/pkg/model"
)

func newRenderCmd() *cobra.Command {
	var jf jobFlags

	cmd := &cobra.Command{
		Use:   "render [flags] [-- command [args...]]",
		Short: "Print the submit file for a job without submitting it",
		RunE: func(cmd *cobra.Command, args []string) error {
			var desc model.JobDescription
			count, err := jf.build(cmd, args, &desc)
			if err != nil {
				return err
			}
			logDir := cfg.UserLogDir(drmaa.CurrentUser())
			doc, err := submitfile.NewRenderer(oracle.LogTemplate(logDir), logger).Render(&desc, count)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), doc)
			return nil
		},
	}
	jf.register(cmd)
	return cmd
}
