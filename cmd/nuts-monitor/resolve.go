package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/nuts-foundation/nuts-monitor/pkg/router"
)

type resolution struct {
	Path           string            `json:"path"`
	Name           string            `json:"name,omitempty"`
	Views          []string          `json:"views"`
	Params         map[string]string `json:"params,omitempty"`
	RedirectedFrom string            `json:"redirected_from,omitempty"`
	NotFound       bool              `json:"not_found"`
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <fragment>",
	Short: "Resolve a location hash against the route table",
	Example: `  nuts-monitor resolve '#/'
  nuts-monitor resolve /network_topology`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := router.Default().Resolve(args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resolution{
			Path:           m.Path,
			Name:           m.Route.Name,
			Views:          m.Views(),
			Params:         m.Params,
			RedirectedFrom: m.RedirectedFrom,
			NotFound:       m.NotFound,
		})
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}
