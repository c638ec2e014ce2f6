package redis_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/nuts-foundation/nuts-monitor/pkg/adapters/redis"
	"github.com/nuts-foundation/nuts-monitor/pkg/domain"
	"github.com/nuts-foundation/nuts-monitor/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisMappingStore_Contract(t *testing.T) {
	_, client := newClient(t)
	ports.RunMappingStoreContract(t, redis.NewFromClient(client))
}

func TestRedisMappingStore_Prefix(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client, redis.WithPrefix("test:"))

	require.NoError(t, store.Put(context.Background(), "did:nuts:a", "did:nuts:root"))
	assert.Equal(t, "did:nuts:root", mr.HGet("test:roots", "did:nuts:a"))
}

func TestRedisMappingStore_Unavailable(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client)
	mr.Close()

	_, err := store.Get(context.Background(), "did:nuts:a")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}
