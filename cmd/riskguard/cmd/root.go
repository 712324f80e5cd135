package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "riskguard",
	Short: "Real-time risk admission and monitoring engine",
	Long: `Riskguard gates every proposed trade through a bounded-latency pre-trade
check, maintains rolling per-instrument risk metrics, and escalates abnormal
conditions up a severity ladder ending in a global emergency stop.

The engine is an in-process library; this CLI exists for demos and for
validating configuration files.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}
