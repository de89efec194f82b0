package session

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Get(ctx, 1)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Upsert(ctx, 1, "hash-a"))
	hash, err := store.Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "hash-a", hash)

	// upsert overwrites, login replaces whatever session existed
	require.NoError(t, store.Upsert(ctx, 1, "hash-b"))
	hash, err = store.Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "hash-b", hash)

	require.NoError(t, store.Clear(ctx, 1))
	_, err = store.Get(ctx, 1)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreReplaceIsCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Upsert(ctx, 1, "current"))

	ok, err := store.Replace(ctx, 1, "stale", "next")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = store.Replace(ctx, 1, "current", "next")
	require.NoError(t, err)
	require.True(t, ok)

	hash, err := store.Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "next", hash)

	// cleared sessions never match
	require.NoError(t, store.Clear(ctx, 1))
	ok, err = store.Replace(ctx, 1, "next", "later")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryStoreConcurrentReplaceSingleWinner(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Upsert(ctx, 1, "current"))

	const n = 16
	var wg sync.WaitGroup
	wg.Add(n)

	results := make(chan bool, n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			ok, err := store.Replace(ctx, 1, "current", "next")
			require.NoError(t, err)
			results <- ok
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for ok := range results {
		if ok {
			wins++
		}
	}
	require.Equal(t, 1, wins)
}

func TestMemoryStoreAccountsDoNotContend(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Upsert(ctx, 1, "one"))
	require.NoError(t, store.Upsert(ctx, 2, "two"))

	require.NoError(t, store.Clear(ctx, 1))

	hash, err := store.Get(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, "two", hash)
}
