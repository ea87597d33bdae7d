package main

import (
	"os"

	"github.com/ilhicas/webex-partner-ops/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
