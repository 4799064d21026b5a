package main

import (
	"context"
	"errors"
	"os"

	"github.com/STop211650/sonosctl/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		// Interrupted by Ctrl-C.
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		os.Exit(1)
	}
}
