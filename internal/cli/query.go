package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/syssam/xframe/dialect"
	"github.com/syssam/xframe/dialect/sql"
)

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <sql>",
		Short: "Run a query and print its rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runQuery(opts *RootOptions, text string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	e, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer e.Close()
	t, err := queryTable(cmd.Context(), e.session.Driver(), text)
	e.report(f)
	if err != nil {
		return WrapExitError(ExitFailure, "query", err)
	}
	return f.Success(t)
}

// queryTable runs text and reads every row. Byte slices are shown as
// text.
func queryTable(ctx context.Context, drv dialect.ExecQuerier, text string) (*Table, error) {
	rows := &sql.Rows{}
	if err := drv.Query(ctx, text, nil, rows); err != nil {
		return nil, err
	}
	defer rows.Close()
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	t := &Table{Columns: columns, Rows: [][]any{}}
	for rows.Next() {
		values := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan row %d: %w", len(t.Rows), err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		t.Rows = append(t.Rows, values)
	}
	return t, rows.Err()
}

// isQuery reports whether stmt returns rows.
func isQuery(stmt string) bool {
	verb := strings.ToUpper(strings.TrimLeft(stmt, " \t\r\n("))
	for _, prefix := range []string{"SELECT", "WITH", "VALUES", "PRAGMA", "EXPLAIN", "SHOW", "DESCRIBE"} {
		if strings.HasPrefix(verb, prefix) {
			return true
		}
	}
	return false
}
