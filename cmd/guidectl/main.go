package main

import (
	"os"

	"github.com/guidesense/guidesense/cmd/guidectl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
