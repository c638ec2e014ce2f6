package ports

import (
	"context"
)

// MappingStore caches the root controller of a DID.
// A DID that has no other controller maps to itself.
type MappingStore interface {
	// Get returns domain.ErrNotFound if the DID was never resolved.
	Get(ctx context.Context, did string) (string, error)

	// Put stores the root for a DID, overwriting any previous value.
	Put(ctx context.Context, did, root string) error

	// Len returns the number of cached DIDs.
	Len(ctx context.Context) (int, error)
}
