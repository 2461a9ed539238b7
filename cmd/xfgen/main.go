// Command xfgen writes reflection-free materialize accessors for the
// exported structs of one or more package directories.
//
// It is meant to run from go:generate:
//
//	//go:generate go run github.com/syssam/xframe/cmd/xfgen .
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/syssam/xframe/internal/xfgen"
)

func main() {
	if err := newCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "xfgen:", err)
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	var (
		workers int
		verbose bool
	)
	cmd := &cobra.Command{
		Use:           "xfgen <dir>...",
		Short:         "Generate materialize accessors for entity structs",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := xfgen.NewWriter().WithWorkers(workers)
			if err := w.Run(cmd.Context(), args); err != nil {
				return err
			}
			if verbose {
				for _, path := range w.Written() {
					fmt.Fprintln(cmd.OutOrStdout(), path)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&workers, "workers", "j", 0, "parallel workers (default GOMAXPROCS)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print the written files")
	return cmd
}
