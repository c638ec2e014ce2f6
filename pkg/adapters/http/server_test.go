package http

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuts-foundation/nuts-monitor/internal/metrics"
	"github.com/nuts-foundation/nuts-monitor/internal/mocknode"
	"github.com/nuts-foundation/nuts-monitor/pkg/domain"
	"github.com/nuts-foundation/nuts-monitor/pkg/router"
)

type stubNode struct {
	health      *domain.Health
	healthErr   error
	diagnostics *domain.Diagnostics
	err         error
}

func (s *stubNode) CheckHealth(context.Context) (*domain.Health, error) {
	return s.health, s.healthErr
}

func (s *stubNode) Diagnostics(context.Context) (*domain.Diagnostics, error) {
	return s.diagnostics, s.err
}

type stubTopology struct {
	topology domain.NetworkTopology
	err      error
}

func (s *stubTopology) NetworkTopology(context.Context) (domain.NetworkTopology, error) {
	return s.topology, s.err
}

type stubStats struct{}

func (stubStats) Aggregated() domain.AggregatedTransactions {
	return domain.AggregatedTransactions{
		Hourly: []domain.TransactionDataPoint{{ContentType: "application/did+json", Timestamp: 60, Label: "x", Value: 2}},
	}
}

func (stubStats) Counts() domain.TransactionCounts {
	return domain.TransactionCounts{RootCount: 1, TransactionsPerRoot: []domain.TransactionsPerRoot{{DID: "did:nuts:root", Count: 2}}}
}

func upNode() *stubNode {
	return &stubNode{
		health:      &domain.Health{Status: domain.StatusUp},
		diagnostics: &domain.Diagnostics{VDR: domain.VDRDiagnostics{DocumentsCount: 0}},
	}
}

func singleNode() *stubTopology {
	return &stubTopology{topology: domain.NetworkTopology{
		PeerID: "peer-self",
		Peers:  []domain.Peer{{PeerID: "peer-self"}},
	}}
}

func newTestServer(t *testing.T, node *stubNode, topology *stubTopology, opts ...Option) *Server {
	t.Helper()
	s, err := NewServer(node, topology, stubStats{}, opts...)
	require.NoError(t, err)
	return s
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestStatus(t *testing.T) {
	h := newTestServer(t, upNode(), singleNode()).Handler()

	w := get(t, h, "/status")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCheckHealth(t *testing.T) {
	t.Run("node up", func(t *testing.T) {
		w := get(t, newTestServer(t, upNode(), singleNode()).Handler(), "/health")

		require.Equal(t, http.StatusOK, w.Code)
		var health domain.Health
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
		assert.Equal(t, domain.StatusUp, health.Status)
		assert.Equal(t, domain.StatusUp, health.Details["node"].Status)
	})

	t.Run("node down", func(t *testing.T) {
		node := upNode()
		node.health = &domain.Health{Status: domain.StatusDown}
		w := get(t, newTestServer(t, node, singleNode()).Handler(), "/health")

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"DOWN"`)
	})

	t.Run("node unreachable", func(t *testing.T) {
		node := upNode()
		node.healthErr = errors.New("connection refused")
		w := get(t, newTestServer(t, node, singleNode()).Handler(), "/health")

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), "connection refused")
	})
}

func TestGetInfo(t *testing.T) {
	w := get(t, newTestServer(t, upNode(), singleNode(), WithVersion("1.2.3\n")).Handler(), "/info")

	var info map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, "nuts-monitor", info["app"])
	assert.Equal(t, "1.2.3", info["version"])
	assert.Equal(t, "1.0.0", info["api_version"])
}

func TestDiagnostics(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		w := get(t, newTestServer(t, upNode(), singleNode()).Handler(), "/web/diagnostics")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"did_documents_count":0`)
	})

	t.Run("node error maps to bad gateway", func(t *testing.T) {
		node := upNode()
		node.err = errors.New("boom")
		w := get(t, newTestServer(t, node, singleNode()).Handler(), "/web/diagnostics")

		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.JSONEq(t, `{"error":"boom"}`, w.Body.String())
	})
}

func TestNetworkTopology(t *testing.T) {
	w := get(t, newTestServer(t, upNode(), singleNode()).Handler(), "/web/network_topology")

	require.Equal(t, http.StatusOK, w.Code)
	var topology domain.NetworkTopology
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &topology))
	assert.Equal(t, "peer-self", topology.PeerID)
	assert.Len(t, topology.Peers, 1)
}

func TestTransactions(t *testing.T) {
	h := newTestServer(t, upNode(), singleNode()).Handler()

	w := get(t, h, "/web/transactions/aggregated")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"hourly":[{"content_type":"application/did+json"`)

	w = get(t, h, "/web/transactions/counts")
	assert.JSONEq(t, `{"root_count":1,"transactions_per_root":[{"did":"did:nuts:root","count":2}]}`, w.Body.String())
}

func TestResolveRoute(t *testing.T) {
	h := newTestServer(t, upNode(), singleNode()).Handler()

	tests := []struct {
		fragment string
		want     Resolution
	}{
		{"", Resolution{Path: "/diagnostics", Name: router.RouteDiagnostics, View: "diagnostics", Views: []string{"admin", "diagnostics"}, Redirect: "#/diagnostics"}},
		{"#/", Resolution{Path: "/diagnostics", Name: router.RouteDiagnostics, View: "diagnostics", Views: []string{"admin", "diagnostics"}, Redirect: "#/diagnostics"}},
		{"#/network_topology", Resolution{Path: "/network_topology", Name: router.RouteNetworkTopology, View: "network_topology", Views: []string{"admin", "network_topology"}}},
		{"#/logout", Resolution{Path: "/logout", Name: router.RouteLogout, View: "logout", Views: []string{"logout"}}},
		{"#/nope", Resolution{Path: "/nope", Name: router.RouteNotFound, View: "not_found", Views: []string{"not_found"}, NotFound: true}},
	}
	for _, tt := range tests {
		t.Run(tt.fragment, func(t *testing.T) {
			w := get(t, h, "/web/resolve?fragment="+strings.ReplaceAll(tt.fragment, "#", "%23"))

			require.Equal(t, http.StatusOK, w.Code)
			var got Resolution
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveRoute_DeniedSetsRedirectHeader(t *testing.T) {
	deny := router.GuardFunc(func(_ context.Context, _, to router.Match) (router.Decision, error) {
		if to.Route.Name == router.RouteTransactions {
			return router.Deny(), nil
		}
		return router.Allow(), nil
	})
	nav := router.NewNavigator(router.Default(), router.WithGuards(deny))
	h := newTestServer(t, upNode(), singleNode(), WithNavigator(nav)).Handler()

	w := get(t, h, "/web/resolve?fragment=/transactions")

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "#/logout", w.Header().Get(router.RedirectHeader))
}

func TestResolveRoute_GuardRedirect(t *testing.T) {
	toLogout := router.GuardFunc(func(_ context.Context, _, to router.Match) (router.Decision, error) {
		if to.Route.Name == router.RouteTransactions {
			return router.RedirectTo("/logout"), nil
		}
		return router.Allow(), nil
	})
	nav := router.NewNavigator(router.Default(), router.WithGuards(toLogout))
	h := newTestServer(t, upNode(), singleNode(), WithNavigator(nav)).Handler()

	w := get(t, h, "/web/resolve?fragment=/transactions")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"redirect":"#/logout"`)
}

func TestRenderView(t *testing.T) {
	t.Run("diagnostics", func(t *testing.T) {
		w := get(t, newTestServer(t, upNode(), singleNode()).Handler(), "/web/views/diagnostics")

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `<span id="documents_count">0</span>`)
	})

	t.Run("network topology renders a circle per peer", func(t *testing.T) {
		topology := &stubTopology{topology: domain.NetworkTopology{
			PeerID: "a",
			Peers:  []domain.Peer{{PeerID: "a"}, {PeerID: "b"}, {PeerID: "c"}},
			Edges:  []domain.Edge{{"a", "b"}, {"a", "c"}},
		}}
		w := get(t, newTestServer(t, upNode(), topology).Handler(), "/web/views/network_topology")

		require.Equal(t, http.StatusOK, w.Code)
		body := w.Body.String()
		assert.Equal(t, 3, strings.Count(body, "<circle"))
		assert.Equal(t, 2, strings.Count(body, "<line"))
		assert.Contains(t, body, `class="node self"`)
	})

	t.Run("admin shell links the pages", func(t *testing.T) {
		w := get(t, newTestServer(t, upNode(), singleNode()).Handler(), "/web/views/admin")

		body := w.Body.String()
		assert.Contains(t, body, `href="#/network_topology"`)
		assert.Contains(t, body, `data-view`)
	})

	t.Run("transactions", func(t *testing.T) {
		w := get(t, newTestServer(t, upNode(), singleNode()).Handler(), "/web/views/transactions")

		assert.Contains(t, w.Body.String(), `<span id="root_count">1</span>`)
		assert.Contains(t, w.Body.String(), "did:nuts:root")
	})

	t.Run("not found echoes the path", func(t *testing.T) {
		w := get(t, newTestServer(t, upNode(), singleNode()).Handler(), "/web/views/not_found?path=/nope")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "<code>/nope</code>")
	})

	t.Run("unknown view", func(t *testing.T) {
		w := get(t, newTestServer(t, upNode(), singleNode()).Handler(), "/web/views/missing")

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("node error renders error fragment", func(t *testing.T) {
		node := upNode()
		node.err = errors.New("node offline")
		w := get(t, newTestServer(t, node, singleNode()).Handler(), "/web/views/diagnostics")

		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Contains(t, w.Body.String(), "node offline")
	})
}

func TestLayoutTopology(t *testing.T) {
	t.Run("single node sits in the center", func(t *testing.T) {
		view := layoutTopology(domain.NetworkTopology{PeerID: "a", Peers: []domain.Peer{{PeerID: "a"}}})

		require.Len(t, view.Nodes, 1)
		assert.Equal(t, topologySize/2, view.Nodes[0].X)
		assert.Equal(t, topologySize/2, view.Nodes[0].Y)
		assert.True(t, view.Nodes[0].Self)
	})

	t.Run("edges to unknown peers are skipped", func(t *testing.T) {
		view := layoutTopology(domain.NetworkTopology{
			PeerID: "a",
			Peers:  []domain.Peer{{PeerID: "a"}, {PeerID: "b"}},
			Edges:  []domain.Edge{{"a", "b"}, {"a", "ghost"}},
		})

		assert.Len(t, view.Edges, 1)
		assert.Equal(t, 540.0, view.Nodes[1].X)
	})
}

func TestOpenAPI(t *testing.T) {
	swagger, err := GetSwagger()
	require.NoError(t, err)

	// every documented path is served
	h := newTestServer(t, upNode(), singleNode()).Handler()
	for path := range swagger.Paths.Map() {
		if path == "/web/events" {
			continue
		}
		target := strings.ReplaceAll(path, "{view}", "diagnostics")
		w := get(t, h, target)
		assert.NotEqual(t, http.StatusNotFound, w.Code, path)
		assert.NotEqual(t, http.StatusMethodNotAllowed, w.Code, path)
	}

	w := get(t, h, "/openapi.yaml")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "openapi: 3.0.3")
}

func TestMetricsAndAssets(t *testing.T) {
	m := metrics.New()
	assets := fstest.MapFS{"index.html": {Data: []byte("<title>Nuts monitor</title>")}}
	h := newTestServer(t, upNode(), singleNode(), WithMetrics(m), WithAssets(assets)).Handler()

	w := get(t, h, "/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Nuts monitor")

	get(t, h, "/status")
	w = get(t, h, "/metrics")
	assert.Contains(t, w.Body.String(), `nuts_monitor_http_requests_total{code="200",method="GET",route="/status"} 1`)
}

func TestMockNodeMount(t *testing.T) {
	h := newTestServer(t, upNode(), singleNode(), WithMockNode(mocknode.New().Handler())).Handler()

	w := get(t, h, "/mock/health")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), domain.StatusUp)
}

func TestSubscribeEvents(t *testing.T) {
	s := newTestServer(t, upNode(), singleNode())
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/web/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := bufio.NewScanner(resp.Body)
	require.True(t, lines.Scan())
	assert.Equal(t, "event: ping", lines.Text())

	require.Eventually(t, func() bool {
		return s.Streams().Subscribers(TopicTransactions) == 1
	}, time.Second, 10*time.Millisecond)

	s.Streams().PublishTransaction(domain.Transaction{Signer: "did:nuts:a", ContentType: "application/did+json"})

	var data string
	for lines.Scan() {
		if strings.HasPrefix(lines.Text(), "data: {") {
			data = strings.TrimPrefix(lines.Text(), "data: ")
			break
		}
	}
	assert.Contains(t, data, `"signer":"did:nuts:a"`)
}

func TestStreamManager_DropsForSlowClients(t *testing.T) {
	sm := NewStreamManager(nil)
	ch, cancel := sm.Subscribe("topic")

	for i := 0; i < 20; i++ {
		sm.Broadcast("topic", "msg")
	}
	assert.Len(t, ch, 10)

	cancel()
	cancel()
	assert.Equal(t, 0, sm.Subscribers("topic"))
}
