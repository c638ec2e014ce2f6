package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "nuts-monitor",
	Short: "Nuts monitor shows the health of a Nuts node",
	Long: `Nuts monitor is a web application showing the diagnostics, network topology and transaction
activity of a Nuts node.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
