package main

import (
	"os"

	"ufsvault/cmd/ufs/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
