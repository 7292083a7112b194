// Package submitfile renders job descriptions as HTCondor submit documents.
package submitfile

import (
	"bufio"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode"

	"github.com/me/gocondor/pkg/model"
)

// Condor substitutions for the DRMAA path placeholders.
const (
	processMacro = "$(Process)"
	homeMacro    = "$ENV(HOME)"
)

// Renderer turns a JobDescription into submit file text.
type Renderer struct {
	// LogTemplate is the value of the Log directive; it may use $(Cluster)
	// and $(Process) so that each job gets its own event log.
	LogTemplate string
	logger      *slog.Logger
}

// NewRenderer creates a Renderer. A nil logger discards warnings.
func NewRenderer(logTemplate string, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Renderer{
		LogTemplate: logTemplate,
		logger:      logger.With("component", "submitfile"),
	}
}

// Render produces the submit document for desc queued count times.
func (r *Renderer) Render(desc *model.JobDescription, count int) (string, error) {
	if count <= 0 {
		return "", model.NewError(model.ErrCodeInvalidArgument, "job count must be a positive integer, got %d", count)
	}
	if desc == nil {
		return "", model.NewError(model.ErrCodeInvalidJobTemplate, "job description is nil")
	}

	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	line("# Condor Submit file")
	line("# Generated by gocondor")
	line("#")
	line("Log=%s", r.LogTemplate)
	line("Universe=vanilla")
	line("Executable=%s", desc.RemoteCommand)

	if desc.SubmissionState == model.HoldState {
		line("Hold=true")
	}
	if len(desc.Args) > 0 {
		line("Arguments=%s", QuoteArguments(desc.Args))
	}
	if desc.WorkingDirectory != "" {
		line("InitialDir=%s", desc.WorkingDirectory)
	}
	if desc.NativeSpecification != "" {
		line("%s", desc.NativeSpecification)
	}
	if desc.JobCategory != "" {
		line("%s", desc.JobCategory)
	}
	if desc.BlockEmail {
		line("Notification=Never")
	}

	// A delayed start is a hold that releases itself once the wall clock
	// passes the requested time.
	if desc.StartTime != nil {
		line("PeriodicRelease=(CurrentTime > %d)", desc.StartTime.Unix())
		line("Hold=True")
	}
	if desc.JobName != "" {
		line("+JobName=%s", desc.JobName)
	}

	if desc.InputPath != "" {
		input := ExpandPath(desc.InputPath)
		line("Input=%s", input)
		if desc.TransferFiles.Input {
			line("transfer_input_files=%s", input)
		}
	}

	if desc.OutputPath != "" {
		output := ExpandPath(desc.OutputPath)
		line("Output=%s", output)
		if desc.JoinFiles {
			line("# Joining Output and Error")
			line("Error=%s", output)
		}
	}
	if desc.ErrorPath != "" && !desc.JoinFiles {
		line("Error=%s", ExpandPath(desc.ErrorPath))
	}

	if desc.TransferFiles.Output {
		line("should_transfer_files=IF_NEEDED")
		line("when_to_transfer_output=ON_EXIT")
	}

	if len(desc.Env) > 0 {
		line("Environment=%s", QuoteEnvironment(desc.Env))
	}

	if len(desc.Email) > 0 {
		if len(desc.Email) > 1 {
			r.logger.Warn("only one notification address is supported, ignoring the rest",
				"using", desc.Email[0], "ignored", len(desc.Email)-1)
		}
		line("Notify_user=%s", desc.Email[0])
	}

	line("Queue %d", count)
	return b.String(), nil
}

// ExpandPath strips a leading ':' host separator and replaces the DRMAA
// placeholders with their Condor macros.
func ExpandPath(p string) string {
	p = strings.TrimPrefix(p, ":")
	p = strings.ReplaceAll(p, model.PlaceholderTaskID, processMacro)
	return strings.ReplaceAll(p, model.PlaceholderHomeDirectory, homeMacro)
}

// QuoteArguments renders args in the "new" Arguments syntax: the whole list
// is double quoted, embedded quotes are doubled and arguments containing
// whitespace are wrapped in single quotes.
func QuoteArguments(args []string) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		arg = strings.ReplaceAll(arg, `"`, `""`)
		arg = strings.ReplaceAll(arg, `'`, `''`)
		if strings.IndexFunc(arg, unicode.IsSpace) >= 0 {
			arg = "'" + arg + "'"
		}
		parts[i] = arg
	}
	return `"` + strings.Join(parts, " ") + `"`
}

// QuoteEnvironment renders env as a single quoted name=value list. Names are
// sorted so the output is stable.
func QuoteEnvironment(env map[string]string) string {
	names := make([]string, 0, len(env))
	for name := range env {
		names = append(names, name)
	}
	sort.Strings(names)

	pairs := make([]string, len(names))
	for i, name := range names {
		pairs[i] = name + "=" + strings.ReplaceAll(env[name], `"`, `""`)
	}
	return `"` + strings.Join(pairs, " ") + `"`
}

// Directive is one key=value line of a submit document.
type Directive struct {
	Key   string
	Value string
}

// ParseDirectives reads the key=value lines of a submit document in order.
// Comments, blank lines and the Queue statement are skipped.
func ParseDirectives(doc string) []Directive {
	var out []Directive
	sc := bufio.NewScanner(strings.NewReader(doc))
	for sc.Scan() {
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		key, value, ok := strings.Cut(text, "=")
		if !ok {
			continue
		}
		out = append(out, Directive{Key: strings.TrimSpace(key), Value: strings.TrimSpace(value)})
	}
	return out
}

// Lookup returns the value of the first directive named key.
func Lookup(directives []Directive, key string) (string, bool) {
	for _, d := range directives {
		if strings.EqualFold(d.Key, key) {
			return d.Value, true
		}
	}
	return "", false
}
