package main

import (
	"context"
	"os"

	"github.com/goliatone/go-formflow/internal/cli"
)

var version = "dev"

func main() {
	if err := cli.Run(context.Background(), os.Args, version, os.Stdout); err != nil {
		os.Exit(1)
	}
}
