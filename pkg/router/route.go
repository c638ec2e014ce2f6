package router

import (
	"errors"
	"strings"
)

var (
	// ErrUnknownRoute is returned when a route name is not in the table.
	ErrUnknownRoute = errors.New("unknown route")
	// ErrRedirectLoop is returned when redirects do not settle within MaxRedirects hops.
	ErrRedirectLoop = errors.New("redirect loop")
	// ErrInvalidTable is returned when a route table breaks one of its invariants.
	ErrInvalidTable = errors.New("invalid route table")
	// ErrNavigationDenied is returned when a guard denies navigation without a redirect.
	ErrNavigationDenied = errors.New("navigation denied")
)

// MaxRedirects bounds redirect chains, both from routes and from guards.
const MaxRedirects = 10

// CatchAllPath matches every path that no other route matched.
const CatchAllPath = "/:pathMatch*"

// Route names of the default table.
const (
	RouteLogout          = "logout"
	RouteHome            = "admin.home"
	RouteDiagnostics     = "admin.diagnostics"
	RouteNetworkTopology = "admin.network_topology"
	RouteTransactions    = "admin.transactions"
	RouteNotFound        = "NotFound"
)

// View names rendered by the default table.
const (
	ViewLogout          = "logout"
	ViewAdmin           = "admin"
	ViewDiagnostics     = "diagnostics"
	ViewNetworkTopology = "network_topology"
	ViewTransactions    = "transactions"
	ViewNotFound        = "not_found"
)

// Route is an entry of the route table.
// Top-level paths are absolute, child paths are relative to their parent.
type Route struct {
	Path     string  `json:"path"`
	Name     string  `json:"name,omitempty"`
	View     string  `json:"view,omitempty"`
	Redirect string  `json:"redirect,omitempty"`
	Children []Route `json:"children,omitempty"`
}

// DefaultRoutes returns the route table of the monitor.
func DefaultRoutes() []Route {
	return []Route{
		{Path: "/logout", Name: RouteLogout, View: ViewLogout},
		{
			Path: "/",
			View: ViewAdmin,
			Children: []Route{
				{Path: "", Name: RouteHome, Redirect: "/diagnostics"},
				{Path: "diagnostics", Name: RouteDiagnostics, View: ViewDiagnostics},
				{Path: "network_topology", Name: RouteNetworkTopology, View: ViewNetworkTopology},
				{Path: "transactions", Name: RouteTransactions, View: ViewTransactions},
			},
		},
		{Path: CatchAllPath, Name: RouteNotFound, View: ViewNotFound},
	}
}

// joinPath resolves a child path against its parent's full path.
func joinPath(parent, child string) string {
	if strings.HasPrefix(child, "/") {
		return normalize(child)
	}
	if child == "" {
		return normalize(parent)
	}
	return normalize(strings.TrimSuffix(parent, "/") + "/" + child)
}

// normalize turns a location hash into a path: no '#', no query, a leading slash and no trailing slash.
func normalize(fragment string) string {
	p := strings.TrimSpace(fragment)
	p = strings.TrimPrefix(p, "#")
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	if len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// matchPattern matches a normalized path against a route pattern.
// ":name" captures one segment, ":name*" captures the remaining segments.
// Static segments match case-insensitively.
func matchPattern(pattern, path string) (map[string]string, bool) {
	pat := splitPath(pattern)
	segs := splitPath(path)
	params := map[string]string{}

	for i, p := range pat {
		if strings.HasPrefix(p, ":") && strings.HasSuffix(p, "*") {
			params[strings.TrimSuffix(p[1:], "*")] = strings.Join(segs[min(i, len(segs)):], "/")
			return params, true
		}
		if i >= len(segs) {
			return nil, false
		}
		if strings.HasPrefix(p, ":") {
			params[p[1:]] = segs[i]
			continue
		}
		if !strings.EqualFold(p, segs[i]) {
			return nil, false
		}
	}
	if len(pat) != len(segs) {
		return nil, false
	}
	return params, true
}

func isCatchAll(path string) bool {
	segs := splitPath(path)
	return len(segs) == 1 && strings.HasPrefix(segs[0], ":") && strings.HasSuffix(segs[0], "*")
}
