package main

import (
	"os"

	"github.com/wonny/edgefactory/cmd/edge/commands"
)

// main is the entry point for the EdgeFactory CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/edge [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
