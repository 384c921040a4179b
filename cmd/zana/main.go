package main

import (
	"os"

	"github.com/zana-AI/zana-planner/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
