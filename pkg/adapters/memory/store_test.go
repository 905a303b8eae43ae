package memory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/sessionvault/pkg/adapters/memory"
	"github.com/aretw0/sessionvault/pkg/domain"
	"github.com/aretw0/sessionvault/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.StorageProvider = (*memory.Store)(nil)
var _ ports.Sweeper = (*memory.Store)(nil)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestMemoryStore_Contract(t *testing.T) {
	ports.RunStorageProviderContract(t, func(t *testing.T) (ports.StorageProvider, ports.StorageProvider) {
		medium := memory.NewMedium()
		return memory.NewStore(medium), memory.NewStore(medium)
	})
}

func TestMemoryStore_ClearOldBoundary(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := memory.NewStore(nil, memory.WithClock(clock.Now))
	ctx := context.Background()
	maxAge := 500 * time.Microsecond

	require.NoError(t, store.Save(ctx, "s1", []byte("data")))

	// One microsecond short of the limit: kept.
	clock.Advance(maxAge - time.Microsecond)
	require.NoError(t, store.ClearOld(ctx, maxAge))
	assert.True(t, store.SessionExists(ctx, "s1"))

	// Exactly at the limit: removed.
	clock.Advance(time.Microsecond)
	require.NoError(t, store.ClearOld(ctx, maxAge))
	assert.False(t, store.SessionExists(ctx, "s1"))
}

func TestMemoryStore_SweepCountsRemoved(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := memory.NewStore(nil, memory.WithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "old-1", []byte("a")))
	require.NoError(t, store.Save(ctx, "old-2", []byte("b")))
	clock.Advance(time.Hour)
	require.NoError(t, store.Save(ctx, "fresh", []byte("c")))

	removed, err := store.Sweep(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, store.Medium().Len())
	assert.True(t, store.SessionExists(ctx, "fresh"))
}

func TestMemoryStore_NegativeMaxAgeClearsEverything(t *testing.T) {
	store := memory.NewStore(nil)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "s1", []byte("a")))
	require.NoError(t, store.ClearOld(ctx, -time.Hour))

	assert.False(t, store.SessionExists(ctx, "s1"))
}

func TestMemoryStore_PayloadIsolation(t *testing.T) {
	store := memory.NewStore(nil)
	ctx := context.Background()
	payload := []byte("original")

	require.NoError(t, store.Save(ctx, "s1", payload))
	payload[0] = 'X'

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), got)

	got[0] = 'Y'
	again, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), again)
}

func TestMemoryStore_SeparateMediaAreIsolated(t *testing.T) {
	a := memory.NewStore(memory.NewMedium())
	b := memory.NewStore(memory.NewMedium())
	ctx := context.Background()

	require.NoError(t, a.Save(ctx, "s1", []byte("a")))
	require.True(t, a.Lock(ctx, "s1"))

	_, err := b.Get(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.True(t, b.Lock(ctx, "s1"))
}

func TestMemoryStore_ConcurrentSaveDuringSweep(t *testing.T) {
	store := memory.NewStore(nil)
	ctx := context.Background()
	const n = 200

	for i := 0; i < n; i++ {
		require.NoError(t, store.Save(ctx, "hot", []byte("v")))
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			_ = store.Save(ctx, "hot", []byte("v"))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			_ = store.ClearOld(ctx, time.Hour)
		}
	}()
	wg.Wait()

	// Nothing is an hour old, so no sweep may have removed the record.
	assert.True(t, store.SessionExists(ctx, "hot"))
}

func TestMemoryStore_WriteTimeNeverMovesBackwards(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := memory.NewStore(nil, memory.WithClock(clock.Now))
	ctx := context.Background()
	maxAge := time.Minute

	clock.Advance(time.Hour)
	require.NoError(t, store.Save(ctx, "s1", []byte("late-clock")))

	// A save whose clock read is older lands second, as a concurrent save could.
	clock.Advance(-time.Hour)
	require.NoError(t, store.Save(ctx, "s1", []byte("early-clock")))

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []byte("early-clock"), got, "the last save to land wins")

	// Still inside maxAge of the later stamp, so the record must survive.
	clock.Advance(time.Hour + maxAge - time.Microsecond)
	require.NoError(t, store.ClearOld(ctx, maxAge))
	assert.True(t, store.SessionExists(ctx, "s1"))
}

func TestMemoryStore_ConcurrentSaveDestroySameID(t *testing.T) {
	store := memory.NewStore(nil)
	ctx := context.Background()
	const workers = 16

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(n int) {
			defer wg.Done()
			if n%2 == 0 {
				assert.NoError(t, store.Save(ctx, "s1", []byte{byte(n)}))
				return
			}
			err := store.Destroy(ctx, "s1")
			if err != nil {
				assert.ErrorIs(t, err, domain.ErrSessionNotFound)
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, store.Medium().Len(), 1)
}
