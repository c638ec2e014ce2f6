package main

import (
	"fmt"

	"github.com/spf13/cobra"

	monitor "github.com/nuts-foundation/nuts-monitor"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of nuts-monitor",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "nuts-monitor version %s\n", monitor.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
