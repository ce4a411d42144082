// Command flowrt runs, records and replays reactive flow scenarios.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/flowrt/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
