// Package main provides the entry point for the georef command.
package main

import (
	"os"

	"georef/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
