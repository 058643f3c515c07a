package main

import (
	"os"

	_ "go.uber.org/automaxprocs"

	"github.com/nimbic-io/otahub/cmd/otahub-server/app"
)

func main() {
	if err := app.NewApp().Execute(); err != nil {
		os.Exit(1)
	}
}
