// Command xfctl runs SQL scripts and queries through an xframe session.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/syssam/xframe/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := cli.NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(cli.ExitCode(err))
	}
}
