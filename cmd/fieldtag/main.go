package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// fieldtag is the operator CLI for the fieldtagd daemon: ingesting media,
// managing studies, and pulling tagging assignments over its HTTP API.
func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
