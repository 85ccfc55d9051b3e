package main

import (
	"fmt"
	"os"

	"pos-qa/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil {
		if cli.IsUsage(err) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
	}
	os.Exit(cli.ExitCode(err))
}
