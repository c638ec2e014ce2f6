package router

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/nuts-foundation/nuts-monitor/internal/logging"
)

// Decision is a guard's verdict on a navigation.
type Decision struct {
	Allow bool
	// Redirect, when set on a denial, sends the navigation elsewhere instead of aborting it.
	Redirect string
}

// Allow lets the navigation proceed.
func Allow() Decision { return Decision{Allow: true} }

// Deny aborts the navigation.
func Deny() Decision { return Decision{} }

// RedirectTo replaces the navigation target with fragment.
func RedirectTo(fragment string) Decision { return Decision{Redirect: fragment} }

// Guard decides whether a navigation from one match to another may be committed.
type Guard interface {
	Allow(ctx context.Context, from, to Match) (Decision, error)
}

// GuardFunc adapts a function to a Guard.
type GuardFunc func(ctx context.Context, from, to Match) (Decision, error)

func (f GuardFunc) Allow(ctx context.Context, from, to Match) (Decision, error) {
	return f(ctx, from, to)
}

// AllowAll is the default guard. It performs no check.
var AllowAll Guard = GuardFunc(func(context.Context, Match, Match) (Decision, error) {
	return Allow(), nil
})

// Navigation is a committed navigation.
type Navigation struct {
	From Match
	To   Match
	// Redirected is set when a guard sent the navigation elsewhere.
	Redirected bool
}

// Navigator resolves fragments and runs guards before committing a navigation.
type Navigator struct {
	table  *Table
	guards []Guard
	logger *slog.Logger
}

// NavigatorOption configures a Navigator.
type NavigatorOption func(*Navigator)

// WithGuards replaces the default AllowAll guard. Guards run in the given order.
func WithGuards(guards ...Guard) NavigatorOption {
	return func(n *Navigator) {
		n.guards = guards
	}
}

// WithLogger sets the logger used to report guard redirects.
func WithLogger(logger *slog.Logger) NavigatorOption {
	return func(n *Navigator) {
		n.logger = logger
	}
}

// NewNavigator creates a Navigator over table.
func NewNavigator(table *Table, opts ...NavigatorOption) *Navigator {
	n := &Navigator{
		table:  table,
		guards: []Guard{AllowAll},
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Table returns the navigator's route table.
func (n *Navigator) Table() *Table {
	return n.table
}

// Navigate resolves fragment and runs every guard against it.
// A guard redirect re-resolves the new target and runs the guards again.
func (n *Navigator) Navigate(ctx context.Context, from Match, fragment string) (Navigation, error) {
	nav := Navigation{From: from}
	target := fragment

	for hop := 0; hop <= MaxRedirects; hop++ {
		to, err := n.table.Resolve(target)
		if err != nil {
			return nav, err
		}

		redirect, err := n.check(ctx, from, to)
		if err != nil {
			return nav, err
		}
		if redirect == "" {
			nav.To = to
			return nav, nil
		}

		n.logger.Debug("Guard redirected navigation", "from", to.Path, "to", redirect)
		nav.Redirected = true
		target = redirect
	}
	return nav, fmt.Errorf("%w: guards redirected %q more than %d times", ErrRedirectLoop, fragment, MaxRedirects)
}

// check returns a redirect target when a guard redirects, or "" when all guards allow.
func (n *Navigator) check(ctx context.Context, from, to Match) (string, error) {
	for _, g := range n.guards {
		d, err := g.Allow(ctx, from, to)
		if err != nil {
			return "", fmt.Errorf("guard for %q: %w", to.Path, err)
		}
		if d.Allow {
			continue
		}
		if d.Redirect == "" {
			return "", fmt.Errorf("%w: %q", ErrNavigationDenied, to.Path)
		}
		return d.Redirect, nil
	}
	return "", nil
}

// RedirectHeader carries the fragment the browser should navigate to after an authorization failure.
const RedirectHeader = "X-Redirect"

// ForbiddenRedirect sends the browser to a named route when the API answers 401 or 403.
type ForbiddenRedirect struct {
	target string
}

// NewForbiddenRedirect targets the named route, usually RouteLogout.
func NewForbiddenRedirect(table *Table, routeName string) (*ForbiddenRedirect, error) {
	url, err := table.URLFor(routeName)
	if err != nil {
		return nil, err
	}
	return &ForbiddenRedirect{target: url}, nil
}

// Target returns the redirect URL for an API status code.
func (f *ForbiddenRedirect) Target(status int) (string, bool) {
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return f.target, true
	}
	return "", false
}

// Middleware adds the redirect header to 401 and 403 responses.
func (f *ForbiddenRedirect) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(&redirectWriter{ResponseWriter: w, plugin: f}, r)
	})
}

type redirectWriter struct {
	http.ResponseWriter
	plugin      *ForbiddenRedirect
	wroteHeader bool
}

func (w *redirectWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.wroteHeader = true
		if target, ok := w.plugin.Target(status); ok {
			w.Header().Set(RedirectHeader, target)
		}
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *redirectWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func (w *redirectWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
