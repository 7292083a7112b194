package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/me/gocondor/internal/drmaa"
	"github.com/me/gocondor/internal/jobfile"
	"github.com/me/gocondor/pkg/model"
)

// jobFlags describe a job on the command line.
type jobFlags struct {
	file     string
	name     string
	wd       string
	input    string
	output   string
	errPath  string
	join     bool
	env      []string
	email    []string
	native   string
	category string
	hold     bool
	count    int
}

func (f *jobFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVarP(&f.file, "file", "f", "", "Job file (YAML)")
	fl.StringVar(&f.name, "name", "", "Job name")
	fl.StringVar(&f.wd, "wd", "", "Working directory")
	fl.StringVar(&f.input, "input", "", "Standard input path")
	fl.StringVar(&f.output, "output", "", "Standard output path")
	fl.StringVar(&f.errPath, "error", "", "Standard error path")
	fl.BoolVar(&f.join, "join", false, "Write standard error to the output path")
	fl.StringArrayVar(&f.env, "env", nil, "Environment variable NAME=VALUE (repeatable)")
	fl.StringArrayVar(&f.email, "email", nil, "Notification address (repeatable)")
	fl.StringVar(&f.native, "native", "", "Native submit file line")
	fl.StringVar(&f.category, "category", "", "Job category submit file line")
	fl.BoolVar(&f.hold, "hold", false, "Submit in the held state")
	fl.IntVar(&f.count, "count", 1, "Number of replicas")
}

// build fills desc from the job file and flags and returns the replica count.
// Flags given explicitly override the job file; positional args replace its command.
func (f *jobFlags) build(cmd *cobra.Command, args []string, desc *model.JobDescription) (int, error) {
	count := 1
	if f.file != "" {
		jf, err := jobfile.Load(f.file)
		if err != nil {
			return 0, err
		}
		jf.Apply(desc)
		count = jf.Count
	}

	if len(args) > 0 {
		desc.RemoteCommand = args[0]
		desc.Args = args[1:]
	}
	if desc.RemoteCommand == "" {
		return 0, fmt.Errorf("a command or --file is required")
	}

	changed := cmd.Flags().Changed
	if changed("name") {
		desc.JobName = f.name
	}
	if changed("wd") {
		desc.WorkingDirectory = f.wd
	}
	if changed("input") {
		desc.InputPath = f.input
	}
	if changed("output") {
		desc.OutputPath = f.output
	}
	if changed("error") {
		desc.ErrorPath = f.errPath
	}
	if changed("join") {
		desc.JoinFiles = f.join
	}
	if changed("email") {
		desc.Email = f.email
	}
	if changed("native") {
		desc.NativeSpecification = f.native
	}
	if changed("category") {
		desc.JobCategory = f.category
	}
	if changed("hold") {
		desc.SubmissionState = model.ActiveState
		if f.hold {
			desc.SubmissionState = model.HoldState
		}
	}
	if len(f.env) > 0 {
		if desc.Env == nil {
			desc.Env = make(map[string]string)
		}
		for _, kv := range f.env {
			k, v, ok := strings.Cut(kv, "=")
			if !ok || k == "" {
				return 0, fmt.Errorf("invalid --env %q, want NAME=VALUE", kv)
			}
			desc.Env[k] = v
		}
	}
	if changed("count") {
		count = f.count
	}
	if count < 1 {
		return 0, fmt.Errorf("count must be at least 1, got %d", count)
	}
	return count, nil
}

func newRunCmd() *cobra.Command {
	var (
		jf      jobFlags
		wait    bool
		timeout string
	)

	cmd := &cobra.Command{
		Use:   "run [flags] [-- command [args...]]",
		Short: "Submit a job and print its ID",
		Example: `  gocondor run -- /bin/sleep 60
  gocondor run --count 10 --output 'out.$drmaa_incr_ph$' -- ./simulate
  gocondor run -f job.yaml --wait --timeout 1h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := parseTimeout(timeout)
			if err != nil {
				return err
			}
			return withSession(cmd, func(ctx context.Context, s *drmaa.Session) error {
				jt, err := s.AllocateJobTemplate()
				if err != nil {
					return err
				}
				count, err := jf.build(cmd, args, &jt.JobDescription)
				if err != nil {
					return err
				}

				ids, err := submit(ctx, s, jt, count)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, id := range ids {
					fmt.Fprintln(out, id)
				}
				if !wait {
					return nil
				}

				if err := s.Synchronize(ctx, ids, d, false); err != nil {
					return err
				}
				for _, id := range ids {
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

	jf.register(cmd)
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait for the submitted jobs to finish")
	cmd.Flags().StringVar(&timeout, "timeout", "forever", "Wait timeout (duration, forever or nowait)")
	return cmd
}

func submit(ctx context.Context, s *drmaa.Session, jt *drmaa.JobTemplate, count int) ([]string, error) {
	if count == 1 {
		id, err := s.RunJob(ctx, jt)
		if err != nil {
			return nil, err
		}
		return []string{id}, nil
	}
	return s.RunBulkJobs(ctx, jt, 1, count, 1)
}

// parseTimeout accepts a positive duration, "forever" or "nowait".
func parseTimeout(s string) (time.Duration, error) {
	switch strings.ToLower(s) {
	case "forever", "":
		return model.TimeoutWaitForever, nil
	case "nowait", "0":
		return model.TimeoutNoWait, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid timeout %q: must be positive", s)
	}
	return d, nil
}
