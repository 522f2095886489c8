// ABOUTME: Entry point for the streamplay player
// ABOUTME: Hands the command line to the cobra command tree
package main

import (
	"os"

	"github.com/Resonate-Protocol/streamplay/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
