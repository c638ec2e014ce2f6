package graph

import (
	"fmt"
	"strings"

	"github.com/nuts-foundation/nuts-monitor/pkg/router"
)

// GenerateMarkdown renders the route table as a markdown table, children indented under their parent.
func GenerateMarkdown(entries []router.Entry) string {
	var sb strings.Builder
	sb.WriteString("# Routes\n\n")
	sb.WriteString("| Path | Name | View | Redirect |\n")
	sb.WriteString("|---|---|---|---|\n")
	for _, e := range entries {
		path := fmt.Sprintf("`%s`", e.Path)
		if e.Depth > 0 {
			path = strings.Repeat("&nbsp;&nbsp;", e.Depth) + "└ " + path
		}
		redirect := "-"
		if e.Target != "" {
			redirect = fmt.Sprintf("`%s`", e.Target)
		}
		fmt.Fprintf(&sb, "| %s | %s | %s | %s |\n", path, cell(e.Route.Name), cell(e.Route.View), redirect)
	}
	return sb.String()
}

func cell(s string) string {
	if s == "" {
		return "-"
	}
	return strings.ReplaceAll(s, "|", "\\|")
}
