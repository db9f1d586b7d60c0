package commands

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "pulserank",
	Short: "pulserank - instrument scoring and ranking service",
	Long: `pulserank scores financial instruments from market, fundamental,
news and sentiment data, serves ranked views over HTTP, and keeps
results warm with a cache refresh scheduler.

Examples:
  pulserank serve
  pulserank score AAPL --timeframe position
  pulserank warm
  pulserank version`,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}
