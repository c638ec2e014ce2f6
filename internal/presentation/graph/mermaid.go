package graph

import (
	"fmt"
	"strings"

	"github.com/nuts-foundation/nuts-monitor/pkg/router"
)

// GraphOverlay marks a resolved navigation on the graph.
type GraphOverlay struct {
	// Visited holds the node IDs of the layouts around the matched route.
	Visited []string
	// Current is the node ID of the matched route.
	Current string
}

// OverlayFor builds the overlay of a resolved match.
func OverlayFor(entries []router.Entry, m router.Match) *GraphOverlay {
	var chain []string
	depth := 0
	for _, e := range entries {
		if depth >= len(m.Chain) {
			break
		}
		if e.Depth == depth && e.Route.Path == m.Chain[depth].Path && e.Route.Name == m.Chain[depth].Name {
			chain = append(chain, nodeID(e))
			depth++
		}
	}
	overlay := &GraphOverlay{}
	if n := len(chain); n > 0 {
		overlay.Visited, overlay.Current = chain[:n-1], chain[n-1]
	}
	return overlay
}

// GenerateMermaid produces a Mermaid flowchart of the route table.
// It applies semantic styling:
// - Layout (view with children): [[Subroutine]]
// - Redirect: ((Circle))
// - Catch-all: {{Hexagon}}
// - Default: [Rectangle]
func GenerateMermaid(entries []router.Entry, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	// parents holds the node ID of the last route seen at each depth
	var parents []string
	for _, e := range entries {
		id := nodeID(e)
		parents = append(parents[:e.Depth], id)

		opener, closer := "[", "]"
		switch {
		case e.Route.Redirect != "":
			opener, closer = "((", "))"
		case e.Path == router.CatchAllPath:
			opener, closer = "{{", "}}"
		case len(e.Route.Children) > 0:
			opener, closer = "[[", "]]"
		}

		label := e.Path
		if e.Route.Name != "" {
			label = fmt.Sprintf("%s <br/> %s", e.Path, e.Route.Name)
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", id, opener, label, closer)

		if e.Depth > 0 {
			fmt.Fprintf(&sb, "    %s --> %s\n", parents[e.Depth-1], id)
		}
	}

	// redirects point at leaves, which are only known once all entries are declared
	for _, e := range entries {
		if e.Target == "" {
			continue
		}
		if to, ok := leafID(entries, e.Target); ok {
			fmt.Fprintf(&sb, "    %s -. redirect .-> %s\n", nodeID(e), to)
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		for _, id := range overlay.Visited {
			fmt.Fprintf(&sb, "    class %s visited;\n", id)
		}
		if overlay.Current != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", overlay.Current)
		}
	}

	return sb.String()
}

// leafID returns the id of the last declared route without children at path.
// Layout routes share their path with their index child.
func leafID(entries []router.Entry, path string) (string, bool) {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Path == path && len(entries[i].Route.Children) == 0 {
			return nodeID(entries[i]), true
		}
	}
	return "", false
}

func nodeID(e router.Entry) string {
	if e.Route.Name != "" {
		return sanitizeMermaidID(e.Route.Name)
	}
	id := sanitizeMermaidID(strings.Trim(e.Path, "/"))
	if id == "" {
		id = "root"
	}
	return fmt.Sprintf("%s_%d", id, e.Depth)
}

func sanitizeMermaidID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", ":", "_", "*", "_")
	return r.Replace(id)
}
