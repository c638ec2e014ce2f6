package graph_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuts-foundation/nuts-monitor/internal/presentation/graph"
	"github.com/nuts-foundation/nuts-monitor/pkg/router"
)

func TestGenerateMermaid(t *testing.T) {
	out := graph.GenerateMermaid(router.Default().Entries(), nil)

	tests := []struct {
		name     string
		contains []string
	}{
		{"Header", []string{"graph TD\n"}},
		{"Layout Shape", []string{`root_0[["/"]]`}},
		{"Redirect Shape", []string{`admin_home(("/ <br/> admin.home"))`}},
		{"Catch-all Shape", []string{`NotFound{{"/:pathMatch* <br/> NotFound"}}`}},
		{"Leaf Shape", []string{`admin_diagnostics["/diagnostics <br/> admin.diagnostics"]`}},
		{"Children", []string{
			"root_0 --> admin_home",
			"root_0 --> admin_network_topology",
			"root_0 --> admin_transactions",
		}},
		{"Redirect Edge", []string{"admin_home -. redirect .-> admin_diagnostics"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, want := range tt.contains {
				assert.Contains(t, out, want)
			}
		})
	}
	assert.NotContains(t, out, "classDef", "no overlay without a match")
	assert.NotContains(t, out, "--> logout", "top-level routes have no parent")
}

func TestGenerateMermaid_Overlay(t *testing.T) {
	table := router.Default()
	m, err := table.Resolve("#/")
	require.NoError(t, err)

	overlay := graph.OverlayFor(table.Entries(), m)
	assert.Equal(t, []string{"root_0"}, overlay.Visited)
	assert.Equal(t, "admin_diagnostics", overlay.Current)

	out := graph.GenerateMermaid(table.Entries(), overlay)
	assert.Contains(t, out, "class root_0 visited;")
	assert.Contains(t, out, "class admin_diagnostics current;")
	assert.Equal(t, 1, strings.Count(out, "current;"))
}

func TestGenerateMermaid_NotFoundOverlay(t *testing.T) {
	table := router.Default()
	m, err := table.Resolve("#/does/not/exist")
	require.NoError(t, err)

	overlay := graph.OverlayFor(table.Entries(), m)

	assert.Empty(t, overlay.Visited)
	assert.Equal(t, "NotFound", overlay.Current)
}

func TestGenerateMarkdown(t *testing.T) {
	out := graph.GenerateMarkdown(router.Default().Entries())

	assert.Contains(t, out, "| Path | Name | View | Redirect |")
	assert.Contains(t, out, "| `/logout` | logout | logout | - |")
	assert.Contains(t, out, "| `/` | - | admin | - |")
	assert.Contains(t, out, "&nbsp;&nbsp;└ `/` | admin.home | - | `/diagnostics` |")
	assert.Contains(t, out, "&nbsp;&nbsp;└ `/transactions` | admin.transactions | transactions | - |")
}
