// Command sce applies phonological sound changes to a lexicon.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/sce/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		// Commands report their own failures; flag and usage errors are printed here.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
