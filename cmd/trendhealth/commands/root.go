package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	universeFile string
	verbose      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "trendhealth",
	Short: "Trend health - 바스켓별 추세 건강도 파이프라인",
	Long: `trendhealth CLI

End-of-day bar cache + daily trend-health history per universe.

Usage:
  go run ./cmd/trendhealth [command]

Examples:
  go run ./cmd/trendhealth refresh
  go run ./cmd/trendhealth history --rebuild
  go run ./cmd/trendhealth run
  go run ./cmd/trendhealth serve --port 8089
  go run ./cmd/trendhealth cache-status AAPL`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&universeFile, "universes", "", "universe registry file (default UNIVERSE_FILE)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}
