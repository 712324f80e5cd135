package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Rajchodisetti/riskguard/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate <config.yaml>",
	Short: "Validate a riskguard configuration file",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		root, err := config.Load(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("ok: %s (capital base %.0f, %d/min trade rate limit)\n",
			args[0], root.Engine.CapitalBase, root.Engine.Limits.MaxTradesPerMinute)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
