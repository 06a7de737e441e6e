package main

import (
	"fmt"
	"os"

	dasherrors "gitdash/internal/errors"
)

// Set by the release build via -ldflags
var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "gitdash: %s\n", dasherrors.FormatUserError(err))
		os.Exit(1)
	}
}
