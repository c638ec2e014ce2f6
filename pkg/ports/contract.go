package ports

import (
	"context"
	"testing"
	"time"

	"github.com/nuts-foundation/nuts-monitor/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunMappingStoreContract runs a suite of tests to verify that a MappingStore implementation
// adheres to the defined interface contract.
func RunMappingStoreContract(t *testing.T, store MappingStore) {
	ctx := context.Background()
	prefix := "did:nuts:contract-" + time.Now().Format("20060102150405")

	t.Run("Put and Get", func(t *testing.T) {
		err := store.Put(ctx, prefix+"-leaf", prefix+"-root")
		require.NoError(t, err, "Put should not return error")

		root, err := store.Get(ctx, prefix+"-leaf")
		require.NoError(t, err, "Get should not return error")
		assert.Equal(t, prefix+"-root", root)
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		_, err := store.Get(ctx, prefix+"-unknown")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, prefix+"-moved", prefix+"-old"))
		require.NoError(t, store.Put(ctx, prefix+"-moved", prefix+"-new"))

		root, err := store.Get(ctx, prefix+"-moved")
		require.NoError(t, err)
		assert.Equal(t, prefix+"-new", root)
	})

	t.Run("Len", func(t *testing.T) {
		before, err := store.Len(ctx)
		require.NoError(t, err)

		require.NoError(t, store.Put(ctx, prefix+"-counted", prefix+"-counted"))
		after, err := store.Len(ctx)
		require.NoError(t, err)
		assert.Equal(t, before+1, after)
	})
}

// RunLockerContract verifies mutual exclusion and release of a DistributedLocker.
func RunLockerContract(t *testing.T, locker DistributedLocker) {
	ctx := context.Background()
	key := "contract-" + time.Now().Format("20060102150405")

	unlock, err := locker.Lock(ctx, key, time.Minute)
	require.NoError(t, err)

	t.Run("Held lock blocks", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
		defer cancel()
		_, err := locker.Lock(ctx, key, time.Minute)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("Released lock is acquired", func(t *testing.T) {
		require.NoError(t, unlock(ctx))

		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		again, err := locker.Lock(ctx, key, time.Minute)
		require.NoError(t, err)
		assert.NoError(t, again(ctx))
	})
}
