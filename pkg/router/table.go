package router

import (
	"errors"
	"fmt"
	"strings"
)

// Match is the result of resolving a fragment.
type Match struct {
	// Route is the leaf route that matched.
	Route Route `json:"route"`
	// Chain holds the matched routes from the top-level route down to Route.
	Chain []Route `json:"-"`
	// Path is the normalized path after following redirects.
	Path   string            `json:"path"`
	Params map[string]string `json:"params,omitempty"`
	// RedirectedFrom is the requested path when a redirect was followed.
	RedirectedFrom string `json:"redirected_from,omitempty"`
	NotFound       bool   `json:"not_found"`
}

// View returns the view of the leaf route.
func (m Match) View() string {
	return m.Route.View
}

// Views returns the views along the chain, outermost first.
func (m Match) Views() []string {
	var views []string
	for _, r := range m.Chain {
		if r.View != "" {
			views = append(views, r.View)
		}
	}
	return views
}

// Table is an ordered, validated route table.
type Table struct {
	routes []Route
	names  map[string]string // name -> full path
}

// New builds a table and validates it.
func New(routes ...Route) (*Table, error) {
	t := &Table{routes: routes, names: map[string]string{}}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// MustNew is like New but panics on an invalid table.
func MustNew(routes ...Route) *Table {
	t, err := New(routes...)
	if err != nil {
		panic(err)
	}
	return t
}

// Default returns the monitor's route table.
func Default() *Table {
	return MustNew(DefaultRoutes()...)
}

// Routes returns the route declarations.
func (t *Table) Routes() []Route {
	return t.routes
}

// Validate checks the table invariants: absolute top-level paths, unique paths within a
// parent, unique names, a single trailing catch-all and redirects that resolve.
func (t *Table) Validate() error {
	var errs []error
	t.names = map[string]string{}

	catchAlls := 0
	for i, r := range t.routes {
		if !strings.HasPrefix(r.Path, "/") {
			errs = append(errs, fmt.Errorf("top-level path %q must be absolute", r.Path))
		}
		if isCatchAll(r.Path) {
			catchAlls++
			if i != len(t.routes)-1 {
				errs = append(errs, fmt.Errorf("catch-all %q must be the last route", r.Path))
			}
		}
	}
	if catchAlls != 1 {
		errs = append(errs, fmt.Errorf("expected exactly one catch-all route, got %d", catchAlls))
	}

	errs = append(errs, t.index("", t.routes)...)

	if len(errs) == 0 {
		t.walk("", t.routes, nil, func(full string, r Route, _ []Route) {
			if r.Redirect == "" {
				return
			}
			m, err := t.Resolve(full)
			if err != nil {
				errs = append(errs, fmt.Errorf("redirect of %q: %w", full, err))
			} else if m.NotFound {
				errs = append(errs, fmt.Errorf("redirect of %q points at unknown path %q", full, r.Redirect))
			}
		})
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidTable, errors.Join(errs...))
	}
	return nil
}

func (t *Table) index(parent string, routes []Route) []error {
	var errs []error
	seen := map[string]bool{}
	for _, r := range routes {
		if seen[r.Path] {
			errs = append(errs, fmt.Errorf("duplicate path %q under %q", r.Path, parent))
		}
		seen[r.Path] = true

		full := joinPath(parent, r.Path)
		if r.Name != "" {
			if _, dup := t.names[r.Name]; dup {
				errs = append(errs, fmt.Errorf("duplicate route name %q", r.Name))
			}
			t.names[r.Name] = full
		}
		if r.View == "" && r.Redirect == "" && len(r.Children) == 0 {
			errs = append(errs, fmt.Errorf("route %q has neither view, redirect nor children", full))
		}
		errs = append(errs, t.index(full, r.Children)...)
	}
	return errs
}

func (t *Table) walk(parent string, routes []Route, chain []Route, fn func(full string, r Route, chain []Route)) {
	for _, r := range routes {
		full := joinPath(parent, r.Path)
		c := append(append([]Route{}, chain...), r)
		fn(full, r, c)
		t.walk(full, r.Children, c, fn)
	}
}

// Resolve maps a fragment to exactly one leaf route, following redirects.
// Unmatched fragments resolve to the catch-all route with NotFound set.
func (t *Table) Resolve(fragment string) (Match, error) {
	requested := normalize(fragment)
	path := requested

	for hop := 0; hop <= MaxRedirects; hop++ {
		m, parent := t.match(path)
		if m.Route.Redirect == "" {
			if path != requested {
				m.RedirectedFrom = requested
			}
			return m, nil
		}
		path = joinPath(parent, m.Route.Redirect)
	}
	return Match{}, fmt.Errorf("%w: %q exceeds %d redirects", ErrRedirectLoop, requested, MaxRedirects)
}

func (t *Table) match(path string) (Match, string) {
	var (
		found  Match
		parent string
		ok     bool
	)
	var visit func(parentPath string, routes []Route, chain []Route) bool
	visit = func(parentPath string, routes []Route, chain []Route) bool {
		for _, r := range routes {
			full := joinPath(parentPath, r.Path)
			c := append(append([]Route{}, chain...), r)
			if len(r.Children) > 0 {
				if visit(full, r.Children, c) {
					return true
				}
				continue
			}
			if params, hit := matchPattern(full, path); hit {
				found = Match{Route: r, Chain: c, Path: path, Params: params, NotFound: isCatchAll(full)}
				parent = parentPath
				ok = true
				return true
			}
		}
		return false
	}
	visit("/", t.routes, nil)
	if !ok {
		// Validated tables always end with a catch-all.
		return Match{Path: path, NotFound: true, Route: Route{Name: RouteNotFound, View: ViewNotFound}}, "/"
	}
	return found, parent
}

// URLFor returns the hash URL of a named route.
func (t *Table) URLFor(name string) (string, error) {
	full, ok := t.names[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRoute, name)
	}
	if strings.Contains(full, ":") {
		return "", fmt.Errorf("route %q has parameters", name)
	}
	return "#" + full, nil
}

// Lookup returns the route with the given name.
func (t *Table) Lookup(name string) (Route, bool) {
	var (
		found Route
		ok    bool
	)
	t.walk("", t.routes, nil, func(_ string, r Route, _ []Route) {
		if !ok && r.Name == name {
			found, ok = r, true
		}
	})
	return found, ok
}

// Entry is a route with its resolved location in the table.
type Entry struct {
	Route Route `json:"route"`
	// Path is the full path of the route.
	Path   string `json:"path"`
	Parent string `json:"parent,omitempty"`
	Depth  int    `json:"depth"`
	// Target is the path a redirect route settles on.
	Target string `json:"target,omitempty"`
}

// Entries flattens the table depth-first, in declaration order.
func (t *Table) Entries() []Entry {
	var entries []Entry
	t.walk("", t.routes, nil, func(full string, r Route, chain []Route) {
		e := Entry{Route: r, Path: full, Depth: len(chain) - 1}
		if len(chain) > 1 {
			e.Parent = entries[parentIndex(entries, e.Depth)].Path
		}
		if r.Redirect != "" {
			if m, err := t.Resolve(full); err == nil {
				e.Target = m.Path
			}
		}
		entries = append(entries, e)
	})
	return entries
}

// parentIndex finds the closest preceding entry one level up.
func parentIndex(entries []Entry, depth int) int {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Depth == depth-1 {
			return i
		}
	}
	return 0
}
