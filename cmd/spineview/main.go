package main

import (
	"os"

	"github.com/sk2233/spineview/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
