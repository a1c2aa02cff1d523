package main

import (
	"os"

	"tggate/cmd/tggate/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
