package main

import (
	"os"

	"github.com/GMosna/ContabilApp/internal/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
