// Package main is the statcube command-line entry point.
package main

import (
	"fmt"
	"os"

	"github.com/leapstack-labs/statcube/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
