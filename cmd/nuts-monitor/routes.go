package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nuts-foundation/nuts-monitor/internal/presentation/graph"
	"github.com/nuts-foundation/nuts-monitor/internal/presentation/tui"
	"github.com/nuts-foundation/nuts-monitor/pkg/router"
)

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Print the route table of the web interface",
	Long: `Prints the route table the monitor resolves location hashes against, as a markdown table,
a Mermaid diagram (graph TD) or JSON.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		highlight, _ := cmd.Flags().GetString("highlight")

		table := router.Default()
		entries := table.Entries()
		out := cmd.OutOrStdout()

		switch format {
		case "markdown":
			render := func(md string) (string, error) { return md, nil }
			if f, ok := out.(*os.File); ok {
				render = tui.NewRenderer(f)
			}
			rendered, err := render(graph.GenerateMarkdown(entries))
			if err != nil {
				return err
			}
			fmt.Fprint(out, rendered)
		case "mermaid":
			var overlay *graph.GraphOverlay
			if highlight != "" {
				m, err := table.Resolve(highlight)
				if err != nil {
					return err
				}
				overlay = graph.OverlayFor(entries, m)
			}
			fmt.Fprint(out, graph.GenerateMermaid(entries, overlay))
		case "json":
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		default:
			return fmt.Errorf("unknown format %q, supported: markdown, mermaid, json", format)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(routesCmd)
	routesCmd.Flags().StringP("format", "f", "markdown", "Output format: markdown, mermaid or json")
	routesCmd.Flags().String("highlight", "", "Highlight the route a location hash resolves to (mermaid only)")
}
