package main

import (
	"os"

	"github.com/me/examvm/internal/cli"
)

func main() {
	// cobra prints the error itself.
	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
