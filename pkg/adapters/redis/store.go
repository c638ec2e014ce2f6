package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/nuts-foundation/nuts-monitor/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

const defaultPrefix = "nuts-monitor:"

// MappingStore implements ports.MappingStore on a Redis hash, so replicas share resolutions.
type MappingStore struct {
	client *backend.Client
	prefix string
}

// Option configures the MappingStore.
type Option func(*MappingStore)

// WithPrefix sets the key prefix (default "nuts-monitor:").
func WithPrefix(prefix string) Option {
	return func(s *MappingStore) {
		s.prefix = prefix
	}
}

// New connects to Redis at addr.
func New(addr string, opts ...Option) *MappingStore {
	return NewFromClient(backend.NewClient(&backend.Options{Addr: addr}), opts...)
}

// NewFromClient wraps an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *MappingStore {
	s := &MappingStore{
		client: client,
		prefix: defaultPrefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Client exposes the underlying client, e.g. to share it with a Locker.
func (s *MappingStore) Client() *backend.Client {
	return s.client
}

func (s *MappingStore) key() string {
	return s.prefix + "roots"
}

// Get returns the cached root of a DID.
func (s *MappingStore) Get(ctx context.Context, did string) (string, error) {
	root, err := s.client.HGet(ctx, s.key(), did).Result()
	if errors.Is(err, backend.Nil) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get mapping: %w", err)
	}
	return root, nil
}

// Put caches the root of a DID.
func (s *MappingStore) Put(ctx context.Context, did, root string) error {
	if err := s.client.HSet(ctx, s.key(), did, root).Err(); err != nil {
		return fmt.Errorf("redis put mapping: %w", err)
	}
	return nil
}

// Len returns the number of cached DIDs.
func (s *MappingStore) Len(ctx context.Context) (int, error) {
	n, err := s.client.HLen(ctx, s.key()).Result()
	if err != nil {
		return 0, fmt.Errorf("redis mapping length: %w", err)
	}
	return int(n), nil
}
