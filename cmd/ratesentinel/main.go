// Package main is the entry point for the ratesentinel CLI.
package main

import (
	"os"

	"RateSentinel/cmd/ratesentinel/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
