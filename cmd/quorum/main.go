// Command quorum drives agent tasks through a consensus-gated lifecycle.
package main

import (
	"os"

	"github.com/Iron-Ham/quorum/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
