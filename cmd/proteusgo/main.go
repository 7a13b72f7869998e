// Command proteusgo replays and aligns pixel-telescope event streams:
// `run` drives clustering/tracking/matching (and optional diagnostic
// analyzers) over a recorded file, `align` iterates one of the three
// alignment solvers against a recorded file and records each
// iteration's geometry, and `inspect` prints geometry, event-file, or
// alignment-run state as JSON.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/banshee-data/proteusgo/internal/version"
)

func main() {
	cli.VersionPrinter = func(c *cli.Context) {
		fmt.Printf("proteusgo v%s (git SHA: %s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
	}
	app := &cli.App{
		Name: "proteusgo",
		Usage: "pixel-telescope reconstruction and alignment engine",
		Version: version.Version,
		Commands: []*cli.Command{
			runCommand(),
			alignCommand(),
			inspectCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
