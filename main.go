package main

import (
	"os"

	"github.com/abhisek/sous/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
