package main

import (
	"os"

	"github.com/castline-dev/castline/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
