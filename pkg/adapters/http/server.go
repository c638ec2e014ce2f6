package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nuts-foundation/nuts-monitor/internal/logging"
	"github.com/nuts-foundation/nuts-monitor/internal/metrics"
	"github.com/nuts-foundation/nuts-monitor/pkg/domain"
	"github.com/nuts-foundation/nuts-monitor/pkg/router"
)

// NodeService is the part of the node client the API serves directly.
type NodeService interface {
	CheckHealth(ctx context.Context) (*domain.Health, error)
	Diagnostics(ctx context.Context) (*domain.Diagnostics, error)
}

// TopologySource builds the network topology as seen from the monitored node.
type TopologySource interface {
	NetworkTopology(ctx context.Context) (domain.NetworkTopology, error)
}

// Statistics holds the transaction statistics.
type Statistics interface {
	Aggregated() domain.AggregatedTransactions
	Counts() domain.TransactionCounts
}

// Resolution is a resolved navigation as served to the browser.
type Resolution struct {
	Path  string   `json:"path"`
	Name  string   `json:"name,omitempty"`
	View  string   `json:"view"`
	Views []string `json:"views"`
	// Redirect is the hash the browser should replace its location with.
	Redirect string `json:"redirect,omitempty"`
	NotFound bool   `json:"not_found"`
}

// Server implements ServerInterface.
type Server struct {
	node      NodeService
	topology  TopologySource
	stats     Statistics
	navigator *router.Navigator
	forbidden *router.ForbiddenRedirect
	views     *Views
	loaders   map[string]viewLoader
	metrics   *metrics.Metrics
	assets    fs.FS
	mock      http.Handler
	streams   *StreamManager
	logger    *slog.Logger
	version   string
}

// Ensure Server implements ServerInterface
var _ ServerInterface = (*Server)(nil)

// Option configures a Server.
type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics enables the /metrics endpoint and request instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithAssets serves the web application from assets.
func WithAssets(assets fs.FS) Option {
	return func(s *Server) {
		s.assets = assets
	}
}

// WithMockNode mounts a node API under /mock.
func WithMockNode(h http.Handler) Option {
	return func(s *Server) {
		s.mock = h
	}
}

// WithNavigator replaces the default navigator, for instance to install guards.
func WithNavigator(n *router.Navigator) Option {
	return func(s *Server) {
		s.navigator = n
	}
}

// WithStreams shares a StreamManager with the transaction consumers.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) {
		s.streams = sm
	}
}

func WithVersion(version string) Option {
	return func(s *Server) {
		s.version = strings.TrimSpace(version)
	}
}

// NewServer creates the API server.
func NewServer(node NodeService, topology TopologySource, stats Statistics, opts ...Option) (*Server, error) {
	s := &Server{
		node:     node,
		topology: topology,
		stats:    stats,
		logger:   logging.NewNop(),
		version:  "unknown",
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.navigator == nil {
		s.navigator = router.NewNavigator(router.Default(), router.WithLogger(s.logger))
	}
	if s.streams == nil {
		s.streams = NewStreamManager(s.logger)
	}

	forbidden, err := router.NewForbiddenRedirect(s.navigator.Table(), router.RouteLogout)
	if err != nil {
		return nil, err
	}
	s.forbidden = forbidden

	views, err := NewViews()
	if err != nil {
		return nil, err
	}
	s.views = views
	s.loaders = map[string]viewLoader{
		router.ViewAdmin:           noData,
		router.ViewLogout:          noData,
		router.ViewDiagnostics:     s.loadDiagnostics,
		router.ViewNetworkTopology: s.loadTopology,
		router.ViewTransactions:    s.loadTransactions,
	}
	return s, nil
}

// Streams returns the server's StreamManager.
func (s *Server) Streams() *StreamManager {
	return s.streams
}

// Handler returns the HTTP handler serving the API, the web application and the optional mock node.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.logRequests)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
	}
	r.Use(s.forbidden.Middleware)

	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		_, _ = w.Write(rawSpec())
	})
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(swaggerHTML))
	})

	if s.mock != nil {
		r.Mount("/mock", s.mock)
	}
	HandlerFromMux(s, r)
	if s.assets != nil {
		r.Handle("/*", http.FileServerFS(s.assets))
	}
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

const swaggerHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>Nuts monitor API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui',
    });
    };
</script>
</body>
</html>
`

// GetStatus handles the GET /status request.
func (s *Server) GetStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("OK"))
}

// CheckHealth handles the GET /health request.
// The monitor is only UP when the node it monitors is.
func (s *Server) CheckHealth(w http.ResponseWriter, r *http.Request) {
	node := domain.HealthCheckResult{Status: domain.StatusUp}
	health, err := s.node.CheckHealth(r.Context())
	switch {
	case err != nil:
		s.logger.Warn("Node health check failed", "error", err)
		node = domain.HealthCheckResult{Status: domain.StatusDown, Details: err.Error()}
	case !health.Up():
		node = domain.HealthCheckResult{Status: health.Status, Details: health.Details}
	}

	resp := domain.Health{Status: domain.StatusUp, Details: map[string]domain.HealthCheckResult{"node": node}}
	status := http.StatusOK
	if node.Status != domain.StatusUp {
		resp.Status = domain.StatusDown
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if swagger, err := GetSwagger(); err == nil && swagger.Info != nil {
		apiVersion = swagger.Info.Version
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"app":         "nuts-monitor",
		"version":     s.version,
		"api_version": apiVersion,
	})
}

// Diagnostics handles the GET /web/diagnostics request.
func (s *Server) Diagnostics(w http.ResponseWriter, r *http.Request) {
	diagnostics, err := s.node.Diagnostics(r.Context())
	if err != nil {
		s.nodeError(w, "Diagnostics", err)
		return
	}
	writeJSON(w, http.StatusOK, diagnostics)
}

// NetworkTopology handles the GET /web/network_topology request.
func (s *Server) NetworkTopology(w http.ResponseWriter, r *http.Request) {
	topology, err := s.topology.NetworkTopology(r.Context())
	if err != nil {
		s.nodeError(w, "NetworkTopology", err)
		return
	}
	writeJSON(w, http.StatusOK, topology)
}

// AggregatedTransactions handles the GET /web/transactions/aggregated request.
func (s *Server) AggregatedTransactions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.stats.Aggregated())
}

// TransactionCounts handles the GET /web/transactions/counts request.
func (s *Server) TransactionCounts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.stats.Counts())
}

// ListRoutes handles the GET /web/routes request.
func (s *Server) ListRoutes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.navigator.Table().Routes())
}

// ResolveRoute handles the GET /web/resolve request.
func (s *Server) ResolveRoute(w http.ResponseWriter, r *http.Request, params ResolveRouteParams) {
	fragment := ""
	if params.Fragment != nil {
		fragment = *params.Fragment
	}

	nav, err := s.navigator.Navigate(r.Context(), router.Match{}, fragment)
	if err != nil {
		if errors.Is(err, router.ErrNavigationDenied) {
			writeError(w, http.StatusForbidden, err)
			return
		}
		s.logger.Error("ResolveRoute failed", "fragment", fragment, "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, newResolution(nav))
}

func newResolution(nav router.Navigation) Resolution {
	to := nav.To
	res := Resolution{
		Path:     to.Path,
		Name:     to.Route.Name,
		View:     to.View(),
		Views:    to.Views(),
		NotFound: to.NotFound,
	}
	if res.Views == nil {
		res.Views = []string{}
	}
	if to.RedirectedFrom != "" || nav.Redirected {
		res.Redirect = "#" + to.Path
	}
	return res
}

// RenderView handles the GET /web/views/{view} request.
func (s *Server) RenderView(w http.ResponseWriter, r *http.Request, view string) {
	if view == router.ViewNotFound {
		s.render(w, http.StatusOK, view, r.URL.Query().Get("path"))
		return
	}
	load, ok := s.loaders[view]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("%w: %s", ErrUnknownView, view))
		return
	}

	data, err := load(r.Context())
	if err != nil {
		s.logger.Warn("View data unavailable", "view", view, "error", err)
		s.render(w, http.StatusBadGateway, "error", err.Error())
		return
	}
	s.render(w, http.StatusOK, view, data)
}

func (s *Server) render(w http.ResponseWriter, status int, view string, data any) {
	var buf strings.Builder
	if err := s.views.Render(&buf, view, data); err != nil {
		s.logger.Error("Render failed", "view", view, "error", err)
		http.Error(w, "failed to render view", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(buf.String()))
}

func noData(context.Context) (any, error) {
	return nil, nil
}

func (s *Server) loadDiagnostics(ctx context.Context) (any, error) {
	return s.node.Diagnostics(ctx)
}

func (s *Server) loadTopology(ctx context.Context) (any, error) {
	topology, err := s.topology.NetworkTopology(ctx)
	if err != nil {
		return nil, err
	}
	return layoutTopology(topology), nil
}

func (s *Server) loadTransactions(context.Context) (any, error) {
	return struct {
		Aggregated domain.AggregatedTransactions
		Counts     domain.TransactionCounts
	}{s.stats.Aggregated(), s.stats.Counts()}, nil
}

// SubscribeEvents handles the GET /web/events request (SSE).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.streams.Subscribe(TopicTransactions)
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	if err := rc.Flush(); err != nil {
		s.logger.Error("SubscribeEvents: Streaming not supported", "error", err)
		return
	}

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE Client Disconnected")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: transaction\ndata: %s\n\n", msg)
			_ = rc.Flush()
		}
	}
}

func (s *Server) nodeError(w http.ResponseWriter, operation string, err error) {
	s.logger.Warn(operation+" failed", "error", err)
	writeError(w, http.StatusBadGateway, err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
