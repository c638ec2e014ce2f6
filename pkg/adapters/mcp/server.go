package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/nuts-foundation/nuts-monitor/internal/logging"
	"github.com/nuts-foundation/nuts-monitor/pkg/domain"
	"github.com/nuts-foundation/nuts-monitor/pkg/router"
)

// RoutesURI is the resource holding the route table.
const RoutesURI = "nuts-monitor://routes"

// ResolveArgs are the arguments of the resolve_route tool.
type ResolveArgs struct {
	Fragment string `json:"fragment" jsonschema_description:"Location hash to resolve, e.g. #/network_topology"`
}

// ResolveResponse describes where a fragment lands.
type ResolveResponse struct {
	Path           string   `json:"path" jsonschema_description:"Normalized path after redirects"`
	Name           string   `json:"name,omitempty" jsonschema_description:"Name of the matched route"`
	Views          []string `json:"views" jsonschema_description:"Views to render, outermost first"`
	RedirectedFrom string   `json:"redirected_from,omitempty"`
	NotFound       bool     `json:"not_found"`
}

// StatusResponse combines the node's health with its diagnostics.
type StatusResponse struct {
	Health      string              `json:"health" jsonschema_description:"UP, DOWN or UNKNOWN"`
	Diagnostics *domain.Diagnostics `json:"diagnostics,omitempty"`
}

// Node is the part of the node client the tools read from.
type Node interface {
	CheckHealth(ctx context.Context) (*domain.Health, error)
	Diagnostics(ctx context.Context) (*domain.Diagnostics, error)
}

// Topology builds the network topology.
type Topology interface {
	NetworkTopology(ctx context.Context) (domain.NetworkTopology, error)
}

// Server exposes the monitor as an MCP Server.
type Server struct {
	node      Node
	topology  Topology
	table     *router.Table
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures a Server.
type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithTable replaces the default route table.
func WithTable(table *router.Table) Option {
	return func(s *Server) {
		s.table = table
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(node Node, topology Topology, version string, opts ...Option) *Server {
	s := &Server{
		node:     node,
		topology: topology,
		table:    router.Default(),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.mcpServer = server.NewMCPServer("nuts-monitor", version)
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("list_routes",
		mcp.WithDescription("List the routes of the monitor's web interface, depth-first."),
	), s.handleListRoutes)

	resolveTool := mcp.NewTool("resolve_route",
		mcp.WithDescription("Resolve a location hash to the route and views the monitor renders for it."),
		mcp.WithString("fragment", mcp.Required(), mcp.Description("Location hash, e.g. #/network_topology")),
		mcp.WithOutputSchema[ResolveResponse](),
	)
	s.mcpServer.AddTool(resolveTool, mcp.NewStructuredToolHandler(s.handleResolveRoute))

	statusTool := mcp.NewTool("node_status",
		mcp.WithDescription("Get the health and diagnostics of the monitored Nuts node."),
		mcp.WithOutputSchema[StatusResponse](),
	)
	s.mcpServer.AddTool(statusTool, mcp.NewStructuredToolHandler(s.handleNodeStatus))

	s.mcpServer.AddTool(mcp.NewTool("network_topology",
		mcp.WithDescription("Get the network topology as seen from the monitored node: peers and the connections between them."),
	), s.handleNetworkTopology)
}

func (s *Server) handleListRoutes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(s.table.Entries())
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode routes: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleResolveRoute(ctx context.Context, request mcp.CallToolRequest, args ResolveArgs) (ResolveResponse, error) {
	m, err := s.table.Resolve(args.Fragment)
	if err != nil {
		return ResolveResponse{}, fmt.Errorf("resolve failed: %w", err)
	}
	return ResolveResponse{
		Path:           m.Path,
		Name:           m.Route.Name,
		Views:          m.Views(),
		RedirectedFrom: m.RedirectedFrom,
		NotFound:       m.NotFound,
	}, nil
}

func (s *Server) handleNodeStatus(ctx context.Context, request mcp.CallToolRequest, _ map[string]any) (StatusResponse, error) {
	resp := StatusResponse{Health: domain.StatusDown}
	health, err := s.node.CheckHealth(ctx)
	if err != nil {
		s.logger.Warn("MCP node_status: health check failed", "error", err)
		return resp, nil
	}
	resp.Health = health.Status

	diagnostics, err := s.node.Diagnostics(ctx)
	if err != nil {
		return resp, fmt.Errorf("diagnostics failed: %w", err)
	}
	resp.Diagnostics = diagnostics
	return resp, nil
}

func (s *Server) handleNetworkTopology(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	topology, err := s.topology.NetworkTopology(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("network topology failed: %v", err)), nil
	}
	jsonBytes, _ := json.Marshal(topology)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(RoutesURI, "Route table of the monitor",
		mcp.WithMIMEType("application/json"),
	), s.readRoutes)
}

func (s *Server) readRoutes(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	jsonBytes, err := json.Marshal(s.table.Routes())
	if err != nil {
		return nil, fmt.Errorf("failed to encode routes: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      RoutesURI,
			MIMEType: "application/json",
			Text:     string(jsonBytes),
		},
	}, nil
}
