package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/syssam/xframe/internal/config"
)

// ShellOptions holds flags for the shell command.
type ShellOptions struct {
	*RootOptions
	Watch bool
}

// NewShellCommand creates the shell command.
func NewShellCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShellOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Read statements from standard input and run them one by one",
		Long: `Read statements from standard input, each ending with a semicolon, and run
them as they complete. Queries print their rows; other statements print the
number of affected rows. A failing statement is reported and the shell
continues.

With --watch, changes to the configuration file retune the slow statement
threshold of the running shell.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(opts, cmd)
		},
	}

	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "reload the configuration file when it changes")

	return cmd
}

func runShell(opts *ShellOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	e, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	if opts.Watch {
		if opts.Config == "" {
			return WrapExitError(ExitCommandError, "watch", errors.New("--watch needs --config"))
		}
		go func() {
			err := config.Watch(ctx, opts.Config, func(c *config.Config) {
				e.stats.SetSlowThreshold(c.SlowThreshold)
				e.log.Info("config reloaded", "slow_threshold", c.SlowThreshold)
			}, func(err error) {
				e.log.Warn("config reload failed", "error", err)
			})
			if err != nil {
				e.log.Error("config watch stopped", "error", err)
			}
		}()
	}

	var (
		buf    strings.Builder
		failed int
	)
	run := func() {
		for _, stmt := range SplitStatements(buf.String()) {
			if err := runStatement(ctx, e, f, stmt); err != nil {
				failed++
				f.Error(err)
			}
		}
		buf.Reset()
	}
	sc := bufio.NewScanner(cmd.InOrStdin())
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		buf.WriteString(line)
		buf.WriteByte('\n')
		if strings.HasSuffix(strings.TrimSpace(line), ";") {
			run()
		}
	}
	if err := sc.Err(); err != nil {
		return WrapExitError(ExitCommandError, "read input", err)
	}
	run()
	e.report(f)
	if failed > 0 {
		return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("%d statements failed", failed)}
	}
	return nil
}

func runStatement(ctx context.Context, e *env, f *OutputFormatter, stmt string) error {
	drv := e.session.Driver()
	if isQuery(stmt) {
		t, err := queryTable(ctx, drv, stmt)
		if err != nil {
			return err
		}
		return f.Success(t)
	}
	var n int64
	if err := drv.Exec(ctx, stmt, nil, &n); err != nil {
		return err
	}
	return f.Success(ExecResult{Statements: 1, Affected: n})
}
