package main

import (
	"os"

	"github.com/wonho/pulserank/cmd/pulserank/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
