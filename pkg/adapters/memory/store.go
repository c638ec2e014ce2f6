package memory

import (
	"context"
	"sync"

	"github.com/nuts-foundation/nuts-monitor/pkg/domain"
)

// MappingStore implements ports.MappingStore in memory.
// Safe for concurrent use.
type MappingStore struct {
	data map[string]string
	mu   sync.RWMutex
}

// NewMappingStore creates a new in-memory mapping store.
func NewMappingStore() *MappingStore {
	return &MappingStore{
		data: make(map[string]string),
	}
}

// Get returns the cached root of a DID.
func (s *MappingStore) Get(_ context.Context, did string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	root, ok := s.data[did]
	if !ok {
		return "", domain.ErrNotFound
	}
	return root, nil
}

// Put caches the root of a DID.
func (s *MappingStore) Put(_ context.Context, did, root string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[did] = root
	return nil
}

// Len returns the number of cached DIDs.
func (s *MappingStore) Len(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data), nil
}
