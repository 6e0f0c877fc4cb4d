package main

import (
	"os"

	"github.com/aaronzipp/scavenger-hunt/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
