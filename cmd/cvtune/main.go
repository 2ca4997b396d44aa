package main

import (
	"os"

	"github.com/shrubheight/cvtune/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
