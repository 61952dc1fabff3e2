// Command pledge is the promise engine CLI.
package main

import (
	"fmt"
	"os"

	"github.com/seward/pledge/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
