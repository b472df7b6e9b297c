// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testStruct struct {
	Name  string
	Value int
}

// runStoreContract exercises behaviour every Store implementation shares.
func runStoreContract(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("Basic Operations", func(t *testing.T) {
		want := testStruct{Name: "state", Value: 42}
		require.NoError(t, store.Set(ctx, "contract:basic", want, time.Minute))

		var got testStruct
		require.NoError(t, store.Get(ctx, "contract:basic", &got))
		assert.Equal(t, want, got)

		require.NoError(t, store.Delete(ctx, "contract:basic"))
		assert.ErrorIs(t, store.Get(ctx, "contract:basic", &got), ErrKeyNotFound)
	})

	t.Run("Take consumes once", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "contract:take", "v", time.Minute))

		var got string
		require.NoError(t, store.Take(ctx, "contract:take", &got))
		assert.Equal(t, "v", got)
		assert.ErrorIs(t, store.Take(ctx, "contract:take", &got), ErrKeyNotFound)
	})

	t.Run("Expiration", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "contract:expiring", "v", 50*time.Millisecond))
		time.Sleep(150 * time.Millisecond)

		var got string
		assert.ErrorIs(t, store.Get(ctx, "contract:expiring", &got), ErrKeyNotFound)
	})

	t.Run("Sliding window", func(t *testing.T) {
		key := "contract:rate:" + uuid.NewString()
		start := time.Now()
		for i := 0; i < 5; i++ {
			count, err := store.RecordHit(ctx, key, start.Add(time.Duration(i)*time.Second), time.Minute)
			require.NoError(t, err)
			assert.Equal(t, int64(i+1), count)
		}

		// two minutes later every earlier hit has left the window
		count, err := store.RecordHit(ctx, key, start.Add(2*time.Minute), time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	runStoreContract(t, store)
}

func TestMemoryStore_ConcurrentHits(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.RecordHit(ctx, "rate:concurrent", time.Now(), time.Hour)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	count, err := store.RecordHit(ctx, "rate:concurrent", time.Now(), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(51), count)
}

func TestMemoryStore_Sweep(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "short", "v", time.Millisecond))
	require.NoError(t, store.Set(ctx, "long", "v", time.Hour))

	store.sweep(time.Now().Add(time.Minute))

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.NotContains(t, store.items, "short")
	assert.Contains(t, store.items, "long")
}

func TestMemoryStoreClose(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "key", "value", time.Minute))
	require.NoError(t, store.Close())

	assert.ErrorIs(t, store.Set(ctx, "key2", "value2", time.Minute), ErrClosed)

	var result string
	assert.ErrorIs(t, store.Get(ctx, "key", &result), ErrClosed)
	assert.ErrorIs(t, store.Close(), ErrClosed)
}
