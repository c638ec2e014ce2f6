package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_DefaultRoutes(t *testing.T) {
	table := Default()

	tests := []struct {
		fragment string
		wantName string
		wantView string
		wantPath string
	}{
		{"#/logout", RouteLogout, ViewLogout, "/logout"},
		{"#/diagnostics", RouteDiagnostics, ViewDiagnostics, "/diagnostics"},
		{"#/network_topology", RouteNetworkTopology, ViewNetworkTopology, "/network_topology"},
		{"#/transactions", RouteTransactions, ViewTransactions, "/transactions"},
		{"/transactions/", RouteTransactions, ViewTransactions, "/transactions"},
		{"network_topology?tab=graph", RouteNetworkTopology, ViewNetworkTopology, "/network_topology"},
	}

	for _, tt := range tests {
		t.Run(tt.fragment, func(t *testing.T) {
			m, err := table.Resolve(tt.fragment)
			require.NoError(t, err)
			assert.False(t, m.NotFound)
			assert.Equal(t, tt.wantName, m.Route.Name)
			assert.Equal(t, tt.wantView, m.View())
			assert.Equal(t, tt.wantPath, m.Path)
			assert.NotEqual(t, ViewNotFound, m.View())
		})
	}
}

func TestResolve_CaseInsensitive(t *testing.T) {
	table := Default()

	for _, fragment := range []string{"#/Diagnostics", "#/DIAGNOSTICS", "#/diagNostics/"} {
		t.Run(fragment, func(t *testing.T) {
			m, err := table.Resolve(fragment)
			require.NoError(t, err)
			assert.False(t, m.NotFound)
			assert.Equal(t, RouteDiagnostics, m.Route.Name)
			assert.Equal(t, ViewDiagnostics, m.View())
		})
	}

	m, err := table.Resolve("#/Network_Topology")
	require.NoError(t, err)
	assert.Equal(t, RouteNetworkTopology, m.Route.Name)
}

func TestResolve_ShellRedirectsToDiagnostics(t *testing.T) {
	table := Default()

	for _, fragment := range []string{"", "#", "#/", "/", "  "} {
		t.Run("fragment "+fragment, func(t *testing.T) {
			m, err := table.Resolve(fragment)
			require.NoError(t, err)
			assert.Equal(t, RouteDiagnostics, m.Route.Name)
			assert.Equal(t, "/diagnostics", m.Path)
			assert.Equal(t, "/", m.RedirectedFrom)
			assert.Equal(t, []string{ViewAdmin, ViewDiagnostics}, m.Views())
		})
	}
}

func TestResolve_NotFound(t *testing.T) {
	table := Default()

	for _, fragment := range []string{"#/unknown", "#/diagnostics/extra", "#/logout/now", "#/admin"} {
		t.Run(fragment, func(t *testing.T) {
			m, err := table.Resolve(fragment)
			require.NoError(t, err)
			assert.True(t, m.NotFound)
			assert.Equal(t, RouteNotFound, m.Route.Name)
			assert.Equal(t, ViewNotFound, m.View())
		})
	}

	m, err := table.Resolve("#/a/b")
	require.NoError(t, err)
	assert.Equal(t, "a/b", m.Params["pathMatch"])
}

func TestResolve_Deterministic(t *testing.T) {
	table := Default()
	first, err := table.Resolve("#/network_topology")
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := table.Resolve("#/network_topology")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestResolve_RelativeRedirect(t *testing.T) {
	table, err := New(
		Route{Path: "/settings", View: "settings", Children: []Route{
			{Path: "", Name: "settings.home", Redirect: "profile"},
			{Path: "profile", Name: "settings.profile", View: "profile"},
		}},
		Route{Path: CatchAllPath, Name: RouteNotFound, View: ViewNotFound},
	)
	require.NoError(t, err)

	m, err := table.Resolve("#/settings")
	require.NoError(t, err)
	assert.Equal(t, "settings.profile", m.Route.Name)
	assert.Equal(t, "/settings/profile", m.Path)
}

func TestValidate(t *testing.T) {
	notFound := Route{Path: CatchAllPath, Name: RouteNotFound, View: ViewNotFound}

	tests := []struct {
		name   string
		routes []Route
	}{
		{"Missing catch-all", []Route{{Path: "/a", View: "a"}}},
		{"Catch-all not last", []Route{notFound, {Path: "/a", View: "a"}}},
		{"Two catch-alls", []Route{{Path: "/:other*", View: "x"}, notFound}},
		{"Duplicate path", []Route{{Path: "/a", View: "a"}, {Path: "/a", View: "b"}, notFound}},
		{"Duplicate name", []Route{{Path: "/a", Name: "x", View: "a"}, {Path: "/b", Name: "x", View: "b"}, notFound}},
		{"Relative top-level path", []Route{{Path: "a", View: "a"}, notFound}},
		{"Route without view", []Route{{Path: "/a"}, notFound}},
		{"Redirect to unknown path", []Route{{Path: "/a", Redirect: "/nowhere"}, notFound}},
		{"Redirect loop", []Route{{Path: "/a", Redirect: "/b"}, {Path: "/b", Redirect: "/a"}, notFound}},
		{"Duplicate child path", []Route{{Path: "/", View: "shell", Children: []Route{
			{Path: "x", View: "x"}, {Path: "x", View: "y"},
		}}, notFound}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.routes...)
			assert.ErrorIs(t, err, ErrInvalidTable)
		})
	}

	t.Run("Default table is valid", func(t *testing.T) {
		_, err := New(DefaultRoutes()...)
		assert.NoError(t, err)
	})

	t.Run("MustNew panics", func(t *testing.T) {
		assert.Panics(t, func() { MustNew() })
	})
}

func TestURLFor(t *testing.T) {
	table := Default()

	url, err := table.URLFor(RouteNetworkTopology)
	require.NoError(t, err)
	assert.Equal(t, "#/network_topology", url)

	url, err = table.URLFor(RouteLogout)
	require.NoError(t, err)
	assert.Equal(t, "#/logout", url)

	_, err = table.URLFor("missing")
	assert.ErrorIs(t, err, ErrUnknownRoute)

	_, err = table.URLFor(RouteNotFound)
	assert.Error(t, err)
}

func TestLookup(t *testing.T) {
	r, ok := Default().Lookup(RouteHome)
	require.True(t, ok)
	assert.Equal(t, "/diagnostics", r.Redirect)

	_, ok = Default().Lookup("missing")
	assert.False(t, ok)
}

func TestEntries(t *testing.T) {
	entries := Default().Entries()

	require.Len(t, entries, 7)
	assert.Equal(t, "/logout", entries[0].Path)
	assert.Equal(t, 0, entries[0].Depth)

	home := entries[2]
	assert.Equal(t, RouteHome, home.Route.Name)
	assert.Equal(t, "/", home.Path)
	assert.Equal(t, "/", home.Parent)
	assert.Equal(t, 1, home.Depth)
	assert.Equal(t, "/diagnostics", home.Target)

	topology := entries[4]
	assert.Equal(t, "/network_topology", topology.Path)
	assert.Equal(t, "/", topology.Parent)
	assert.Empty(t, topology.Target)

	assert.Equal(t, CatchAllPath, entries[6].Path)
}
