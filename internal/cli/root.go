// Package cli implements the xfctl command tree.
package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	// Database/sql drivers of the bundled dialects.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/syssam/xframe"
	"github.com/syssam/xframe/dialect"
	"github.com/syssam/xframe/dialect/sql"
	"github.com/syssam/xframe/internal/config"
	"github.com/syssam/xframe/schema"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Config  string // path of the YAML configuration
	Dialect string // overrides the configured dialect
	DSN     string // overrides the configured DSN
	Verbose bool
	Format  string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command of xfctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "xfctl",
		Short: "xfctl - run SQL through an xframe session",
		Long: `xfctl runs SQL scripts and queries against a database configured in YAML,
through the same session, batching, statistics and error classification
the xframe library uses.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return WrapExitError(ExitCommandError, "invalid flag", fmt.Errorf("format %q must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "path of the YAML configuration")
	cmd.PersistentFlags().StringVar(&opts.Dialect, "dialect", "", "database dialect (sqlserver|postgres|mysql|sqlite)")
	cmd.PersistentFlags().StringVar(&opts.DSN, "dsn", "", "data source name")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewExecCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewShellCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))
	cmd.AddCommand(NewDialectsCommand(opts))

	return cmd
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// load resolves the configuration file and the flag overrides.
func (o *RootOptions) load() (*config.Config, error) {
	cfg := config.Default()
	if o.Config != "" {
		c, err := config.Load(o.Config)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "load config", err)
		}
		cfg = c
	}
	if o.Dialect != "" {
		cfg.Dialect = dialect.Normalize(o.Dialect)
	}
	if o.DSN != "" {
		cfg.DSN = o.DSN
	}
	if err := cfg.Validate(); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid config", err)
	}
	return cfg, nil
}

// env is an open database and the session over it.
type env struct {
	cfg     *config.Config
	log     *slog.Logger
	stats   *sql.StatsDriver
	session *xframe.Session
}

func (o *RootOptions) open(cmd *cobra.Command) (*env, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, err
	}
	level, _ := cfg.Level()
	if o.Verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	stats, err := sql.OpenWithStats(cfg.Dialect, cfg.DSN,
		sql.WithSlowThreshold(cfg.SlowThreshold),
		sql.WithSlowQueryLog(log),
	)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open database", err)
	}
	var drv dialect.Driver = stats
	if cfg.Debug {
		drv = sql.NewDebugDriver(stats, log)
	}
	var ropts []schema.Option
	if cfg.Pluralize {
		ropts = append(ropts, schema.WithPluralTables())
	}
	s, err := xframe.NewSession(drv,
		xframe.WithBatchSize(cfg.BatchSize),
		xframe.WithLogger(log),
		xframe.WithRegistry(schema.NewRegistry(ropts...)),
	)
	if err != nil {
		stats.Close()
		return nil, WrapExitError(ExitCommandError, "open session", err)
	}
	return &env{cfg: cfg, log: log, stats: stats, session: s}, nil
}

func (e *env) Close() error {
	return e.stats.Close()
}

// report logs the statement statistics of the environment.
func (e *env) report(f *OutputFormatter) {
	f.VerboseLog("stats: %s", e.stats.QueryStats().Stats())
}
