package main

import (
	"os"

	"github.com/stemsep/stemsep/cmd/stemsep/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
