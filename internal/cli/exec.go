package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/syssam/xframe"
)

// ExecOptions holds flags for the exec command.
type ExecOptions struct {
	*RootOptions
	DryRun bool
}

// ExecResult is the outcome of an exec command.
type ExecResult struct {
	Statements int   `json:"statements"`
	Affected   int64 `json:"affected"`
}

func (r ExecResult) String() string {
	return fmt.Sprintf("%d statements, %d rows affected", r.Statements, r.Affected)
}

// NewExecCommand creates the exec command.
func NewExecCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExecOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "exec <file>...",
		Short: "Execute SQL scripts in one transaction",
		Long: `Execute the statements of one or more SQL scripts.

Statements are queued on a session and submitted together inside one
transaction, in batches of the configured batch size. Any failure rolls
the whole submission back.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "print the statements without executing them")

	return cmd
}

func runExec(opts *ExecOptions, files []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	var stmts []string
	for _, name := range files {
		data, err := os.ReadFile(name)
		if err != nil {
			return WrapExitError(ExitCommandError, "read script", err)
		}
		split := SplitStatements(string(data))
		f.VerboseLog("%s: %d statements", name, len(split))
		stmts = append(stmts, split...)
	}
	if opts.DryRun {
		return f.Success(strings.Join(stmts, ";\n"))
	}

	e, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer e.Close()
	for _, s := range stmts {
		e.session.AddSQL(s)
	}
	n, err := e.session.SubmitChanges(cmd.Context())
	e.report(f)
	if err != nil {
		if xframe.IsConstraintError(err) {
			return WrapExitError(ExitFailure, "constraint violated", err)
		}
		return WrapExitError(ExitFailure, "submit", err)
	}
	return f.Success(ExecResult{Statements: len(stmts), Affected: n})
}

// SplitStatements splits a SQL script at the semicolons ending its
// statements. Semicolons inside quoted text, quoted identifiers and
// comments do not split. Empty statements are dropped.
func SplitStatements(src string) []string {
	var (
		out   []string
		start int
	)
	emit := func(end int) {
		if s := strings.TrimSpace(src[start:end]); s != "" && !onlyComments(s) {
			out = append(out, s)
		}
	}
	for i := 0; i < len(src); i++ {
		switch c := src[i]; c {
		case '\'', '"', '`', '[':
			closer := c
			if c == '[' {
				closer = ']'
			}
			for i++; i < len(src); i++ {
				if src[i] != closer {
					continue
				}
				// A doubled quote is an escaped quote.
				if i+1 < len(src) && src[i+1] == closer && closer != ']' {
					i++
					continue
				}
				break
			}
		case '-':
			if i+1 < len(src) && src[i+1] == '-' {
				for i < len(src) && src[i] != '\n' {
					i++
				}
			}
		case '/':
			if i+1 < len(src) && src[i+1] == '*' {
				end := strings.Index(src[i+2:], "*/")
				if end < 0 {
					i = len(src)
				} else {
					i += end + 3
				}
			}
		case ';':
			emit(i)
			start = i + 1
		}
	}
	if start < len(src) {
		emit(len(src))
	}
	return out
}

func onlyComments(s string) bool {
	for {
		s = strings.TrimSpace(s)
		switch {
		case s == "":
			return true
		case strings.HasPrefix(s, "--"):
			i := strings.IndexByte(s, '\n')
			if i < 0 {
				return true
			}
			s = s[i+1:]
		case strings.HasPrefix(s, "/*"):
			i := strings.Index(s[2:], "*/")
			if i < 0 {
				return true
			}
			s = s[i+4:]
		default:
			return false
		}
	}
}
