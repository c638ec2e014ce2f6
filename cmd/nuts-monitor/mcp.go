package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/spf13/cobra"

	monitor "github.com/nuts-foundation/nuts-monitor"
	"github.com/nuts-foundation/nuts-monitor/internal/cli"
	"github.com/nuts-foundation/nuts-monitor/internal/config"
	"github.com/nuts-foundation/nuts-monitor/internal/logging"
	"github.com/nuts-foundation/nuts-monitor/pkg/adapters/mcp"
	"github.com/nuts-foundation/nuts-monitor/pkg/client"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Exposes the monitor as an MCP Server, so agents can read the node's status, its network topology
and the route table of the web interface.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetInt("sse-port")

		cfg, err := config.Load(cmd.Flags())
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		logger := logging.New(cfg.Level())

		clientCfg, err := cfg.ClientConfig()
		if err != nil {
			return err
		}
		nodeClient, err := client.New(clientCfg, client.WithLogger(logger))
		if err != nil {
			return err
		}
		topology := client.NewTopologyService(nodeClient, client.WithTopologyLogger(logger))
		srv := mcp.NewServer(nodeClient, topology, monitor.Version, mcp.WithLogger(logger))

		switch transport {
		case "stdio":
			// stdout carries JSON-RPC
			log.SetOutput(cmd.ErrOrStderr())
			logger.Info("Starting MCP Server (Stdio)")
			return srv.ServeStdio()
		case "sse":
			sc := cli.NewSignalContext(cmd.Context())
			defer sc.Cancel()

			logger.Info("Starting MCP Server (SSE)", "port", port)
			if err := srv.ServeSSE(sc, port); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			logger.Info("MCP Server stopped gracefully")
			return nil
		default:
			return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", transport)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().Int("sse-port", 8080, "Port to listen on (only for SSE)")
	mcpCmd.Flags().String("configfile", config.DefaultConfigFile, "Path to the YAML configuration file")
	mcpCmd.Flags().String("nutsnodeaddr", config.Default().NutsNodeAddr, "Address of the Nuts node")
	mcpCmd.Flags().String("loglevel", config.Default().LogLevel, "Log level (debug, info, warn, error)")
}
