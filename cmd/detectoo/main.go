package main

import (
	"os"

	"github.com/detectoo/detectoo/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
