// Package main is the entry point for the careerforge CLI.
package main

import (
	"os"

	"github.com/careerforge/careerforge/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
