package cli

import (
	"github.com/spf13/cobra"

	"github.com/syssam/xframe/compiler"
	"github.com/syssam/xframe/dialect"
	"github.com/syssam/xframe/dialect/sql"
	"github.com/syssam/xframe/expr"
	"github.com/syssam/xframe/query"
	"github.com/syssam/xframe/schema"
)

// sampleOrder is the entity the sample statements are compiled for.
type sampleOrder struct {
	OrderID  int `xf:",key,identity"`
	OrderNo  string
	Customer string
}

func (sampleOrder) TableName() string { return "SaleOrder" }

// sampleChain pages through the orders of customers whose names start
// with "O'".
func sampleChain() *query.Chain {
	o := expr.P[sampleOrder]("o")
	return query.From[sampleOrder]().
		Where(expr.StartsWith(expr.M(o, "Customer"), expr.V("O'"))).
		OrderByDescending(expr.M(o, "OrderID")).
		Skip(20).
		Take(10).
		Chain()
}

// NewDialectsCommand creates the dialects command.
func NewDialectsCommand(rootOpts *RootOptions) *cobra.Command {
	var sample bool

	cmd := &cobra.Command{
		Use:   "dialects",
		Short: "List the supported dialects and how they render SQL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			t := &Table{Columns: []string{"dialect", "driver", "identifier", "string", "true"}}
			if sample {
				t.Columns = append(t.Columns, "sample")
			}
			reg := schema.NewRegistry()
			for _, name := range dialect.Names {
				fl, err := compiler.FlavorOf(name)
				if err != nil {
					return WrapExitError(ExitFailure, "dialect", err)
				}
				row := []any{name, sql.DriverName(name), fl.Quote("Order Date"), fl.StringLiteral("O'Brien"), fl.Bool(true)}
				if sample {
					c, err := compiler.New(compiler.WithFlavor(fl), compiler.WithRegistry(reg))
					if err != nil {
						return WrapExitError(ExitFailure, "compiler", err)
					}
					st, err := c.Compile(sampleChain())
					if err != nil {
						return WrapExitError(ExitFailure, "compile sample", err)
					}
					row = append(row, st.Text)
				}
				t.Rows = append(t.Rows, row)
			}
			return f.Success(t)
		},
	}

	cmd.Flags().BoolVar(&sample, "sample", false, "compile a sample paged query for every dialect")

	return cmd
}
