package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRunStateStore_Lock(t *testing.T) {
	store := NewInMemoryRunStateStore()
	ctx := context.Background()

	t.Run("acquires a free lock", func(t *testing.T) {
		ok, err := store.AcquireLock(ctx, 1*time.Hour)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("refuses while held", func(t *testing.T) {
		ok, err := store.AcquireLock(ctx, 1*time.Hour)
		require.NoError(t, err)
		assert.False(t, ok, "a held lock must not be handed out twice")
	})

	t.Run("acquires again after release", func(t *testing.T) {
		require.NoError(t, store.ReleaseLock(ctx))
		ok, err := store.AcquireLock(ctx, 1*time.Hour)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestInMemoryRunStateStore_LockExpires(t *testing.T) {
	store := NewInMemoryRunStateStore()
	ctx := context.Background()

	ok, err := store.AcquireLock(ctx, 10*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(20 * time.Millisecond)

	ok, err = store.AcquireLock(ctx, 1*time.Hour)
	require.NoError(t, err)
	assert.True(t, ok, "an expired lock counts as free")
}

func TestInMemoryRunStateStore_Cursor(t *testing.T) {
	store := NewInMemoryRunStateStore()
	ctx := context.Background()

	token, err := store.LoadCursor(ctx)
	require.NoError(t, err)
	assert.Empty(t, token, "no cursor before the first save")

	require.NoError(t, store.SaveCursor(ctx, "resume-token"))
	token, err = store.LoadCursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, "resume-token", token)

	require.NoError(t, store.ClearCursor(ctx))
	token, err = store.LoadCursor(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestInMemoryRunStateStore_ConcurrentAcquire(t *testing.T) {
	store := NewInMemoryRunStateStore()
	ctx := context.Background()
	const numGoroutines = 100

	results := make(chan bool, numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			ok, err := store.AcquireLock(ctx, 1*time.Hour)
			results <- err == nil && ok
		}()
	}

	winners := 0
	for i := 0; i < numGoroutines; i++ {
		if <-results {
			winners++
		}
	}
	assert.Equal(t, 1, winners, "exactly one goroutine should win the lock")
}
