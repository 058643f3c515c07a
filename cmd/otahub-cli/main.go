package main

import (
	"fmt"
	"os"

	"github.com/nimbic-io/otahub/cmd/otahub-cli/cmd"
)

func main() {
	if err := cmd.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "otahub-cli:", err)
		os.Exit(1)
	}
}
