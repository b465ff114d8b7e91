package main

import (
	"os"

	"github.com/loglens/loglens/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
