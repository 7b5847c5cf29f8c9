package main

import (
	"os"

	"github.com/troupe-dev/troupe/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
