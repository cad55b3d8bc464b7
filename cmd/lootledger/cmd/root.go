// Package cmd holds the lootledger command tree.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "lootledger",
	Short: "Farming session tracker with loot valuation",
	Long: `lootledger tracks farming sessions for a single character: it
snapshots the inventory before and after each map run, diffs the two,
prices the loot against a market feed, and surfaces the results through
console notifications and a browser overlay.

Configuration comes from defaults, an optional YAML file named by the
LOOTLEDGER_CONFIG environment variable, and LOOTLEDGER_* environment
variables, in that order.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Stderr.WriteString("error: " + err.Error() + "\n")
		os.Exit(1)
	}
}
