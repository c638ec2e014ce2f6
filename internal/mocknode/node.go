// Package mocknode serves the subset of the Nuts node API the monitor reads, backed by fixed data.
// It stands in for a real node during development and end-to-end tests.
package mocknode

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/nuts-foundation/nuts-monitor/pkg/domain"
)

// DefaultPeerID is the peer ID of the mock node.
const DefaultPeerID = "00000000-0000-4000-8000-000000000001"

// Node is an in-memory Nuts node.
type Node struct {
	mu           sync.RWMutex
	health       string
	diagnostics  domain.Diagnostics
	peers        map[string]domain.PeerDiagnostics
	documents    map[string]domain.DIDResolutionResult
	transactions []string
}

// Option configures the Node.
type Option func(*Node)

// WithHealth sets the reported health status.
func WithHealth(status string) Option {
	return func(n *Node) {
		n.health = status
	}
}

// WithPeers sets the peer diagnostics and the matching connected peers.
func WithPeers(peers map[string]domain.PeerDiagnostics) Option {
	return func(n *Node) {
		n.peers = peers
	}
}

// WithConnectedPeers sets the peers the node reports as connected.
func WithConnectedPeers(peers ...domain.ConnectedPeer) Option {
	return func(n *Node) {
		n.diagnostics.Network.Connections.ConnectedPeers = peers
		n.diagnostics.Network.Connections.ConnectedPeersCount = len(peers)
	}
}

// WithDocuments sets the DID documents the VDR resolves.
func WithDocuments(docs ...domain.DIDDocument) Option {
	return func(n *Node) {
		for _, d := range docs {
			n.documents[d.ID] = domain.DIDResolutionResult{Document: d}
		}
		n.diagnostics.VDR.DocumentsCount = len(n.documents)
	}
}

// WithTransactions sets the node's transactions in Lamport clock order.
func WithTransactions(jws ...string) Option {
	return func(n *Node) {
		n.transactions = jws
		n.diagnostics.Network.State.TransactionCount = len(jws)
	}
}

// New creates a standalone node: no peers, no documents, no transactions.
func New(opts ...Option) *Node {
	n := &Node{
		health:    domain.StatusUp,
		peers:     map[string]domain.PeerDiagnostics{},
		documents: map[string]domain.DIDResolutionResult{},
		diagnostics: domain.Diagnostics{
			Status: domain.StatusDiagnostics{
				Uptime:          "0s",
				SoftwareVersion: "mock",
				GitCommit:       "0000000",
				OSArch:          "mock/mock",
			},
			Network: domain.NetworkDiagnostics{
				Connections: domain.ConnectionsDiagnostics{
					ConnectedPeers: []domain.ConnectedPeer{},
					PeerID:         DefaultPeerID,
				},
			},
		},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// AddTransaction appends a transaction.
func (n *Node) AddTransaction(jws string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.transactions = append(n.transactions, jws)
	n.diagnostics.Network.State.TransactionCount = len(n.transactions)
}

// Handler returns the node's HTTP API.
func (n *Node) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", n.handleHealth)
	r.Get("/status/diagnostics", n.handleDiagnostics)
	r.Get("/internal/network/v1/diagnostics/peers", n.handlePeers)
	r.Get("/internal/network/v1/transaction", n.handleTransactions)
	r.Get("/internal/vdr/v1/did/{did}", n.handleDID)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (n *Node) handleHealth(w http.ResponseWriter, _ *http.Request) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	status := http.StatusOK
	if n.health != domain.StatusUp {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, domain.Health{Status: n.health})
}

func (n *Node) handleDiagnostics(w http.ResponseWriter, _ *http.Request) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	writeJSON(w, http.StatusOK, n.diagnostics)
}

func (n *Node) handlePeers(w http.ResponseWriter, _ *http.Request) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	writeJSON(w, http.StatusOK, n.peers)
}

func (n *Node) handleTransactions(w http.ResponseWriter, r *http.Request) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	start, end := 0, len(n.transactions)
	if v := r.URL.Query().Get("start"); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil || i < 0 {
			http.Error(w, "invalid start", http.StatusBadRequest)
			return
		}
		start = i
	}
	if v := r.URL.Query().Get("end"); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil || i < start {
			http.Error(w, "invalid end", http.StatusBadRequest)
			return
		}
		end = i
	}
	start = min(start, len(n.transactions))
	end = min(end, len(n.transactions))
	writeJSON(w, http.StatusOK, append([]string{}, n.transactions[start:end]...))
}

func (n *Node) handleDID(w http.ResponseWriter, r *http.Request) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	did := chi.URLParam(r, "did")
	result, ok := n.documents[did]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"title": "DID not found", "status": http.StatusNotFound, "detail": did})
		return
	}
	writeJSON(w, http.StatusOK, result)
}
