package main

import (
	"fmt"

	"github.com/spf13/cobra"

	monitor "github.com/nuts-foundation/nuts-monitor"
	"github.com/nuts-foundation/nuts-monitor/internal/cli"
	"github.com/nuts-foundation/nuts-monitor/internal/config"
	"github.com/nuts-foundation/nuts-monitor/internal/logging"
	"github.com/nuts-foundation/nuts-monitor/internal/presentation/tui"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the monitor",
	Long: `Starts the monitor's HTTP server. Configuration is read from server.config.yaml (or --configfile),
NUTS_* environment variables and flags, in increasing precedence.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cmd.Flags())
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		logger := logging.New(cfg.Level())

		if quiet, _ := cmd.Flags().GetBool("quiet"); !quiet {
			tui.PrintBanner(cmd.ErrOrStderr(), monitor.Version)
		}

		m, err := monitor.New(cfg, monitor.WithLogger(logger))
		if err != nil {
			return err
		}

		sc := cli.NewSignalContext(cmd.Context())
		defer sc.Cancel()

		err = m.ListenAndServe(sc)
		if sig := sc.Signal(); sig != nil {
			logger.Info("Monitor stopped", "signal", sig.String())
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	config.RegisterFlags(serveCmd.Flags())
	serveCmd.Flags().BoolP("quiet", "q", false, "Do not print the banner")
}
