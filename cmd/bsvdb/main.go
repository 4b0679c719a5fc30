// Command bsvdb is the operator CLI for the block archive and chain store:
// it exposes archive inspection, chain store inspection,
// and a one-shot synchronizer run, the same role cmd/mive plays for the
// teacher's node.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/Danconnolly/bsvdb/cmd/bsvdb/internal/flags"
)

var gitCommit = ""
var gitDate = ""

func newApp() *cli.App {
	app := flags.NewApp("a durable index and archive for a proof-of-work block header graph")
	app.Flags = appFlags
	app.Before = func(ctx *cli.Context) error {
		if err := setupLogging(ctx); err != nil {
			return err
		}
		return setupMetrics(ctx)
	}
	app.Commands = []*cli.Command{
		baCommand,
		csCommand,
		syncCommand,
	}
	app.Version = fmt.Sprintf("git-commit: %s, git-date: %s", gitCommit, gitDate)
	return app
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
