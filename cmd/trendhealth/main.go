package main

import (
	"os"

	"github.com/wonny/trendhealth/cmd/trendhealth/commands"
)

// main is the entry point for the trendhealth CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/trendhealth [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
