package ports

import (
	"context"

	"github.com/nuts-foundation/nuts-monitor/pkg/domain"
)

// DIDResolver resolves DID documents.
type DIDResolver interface {
	// DIDDocument returns domain.ErrNotFound if the node does not know the DID.
	DIDDocument(ctx context.Context, did string) (*domain.DIDResolutionResult, error)
}

// NodeClient defines the read access the monitor needs on a Nuts node.
type NodeClient interface {
	DIDResolver

	CheckHealth(ctx context.Context) (*domain.Health, error)
	Diagnostics(ctx context.Context) (*domain.Diagnostics, error)
	// PeerDiagnostics returns the diagnostics shared by each peer, keyed by peer ID.
	PeerDiagnostics(ctx context.Context) (map[string]domain.PeerDiagnostics, error)
	// ListTransactions returns the transactions with a Lamport clock in [start, end).
	ListTransactions(ctx context.Context, start, end int) ([]string, error)
}
