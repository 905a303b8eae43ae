package ports

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/sessionvault/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ProviderFactory returns two handles opened on one fresh, shared medium.
type ProviderFactory func(t *testing.T) (StorageProvider, StorageProvider)

// RunStorageProviderContract runs a suite of tests to verify that a StorageProvider
// implementation adheres to the defined interface contract.
func RunStorageProviderContract(t *testing.T, factory ProviderFactory) {
	ctx := context.Background()

	t.Run("Save and Get", func(t *testing.T) {
		store, _ := factory(t)

		require.NoError(t, store.Save(ctx, "s1", []byte("data")))

		got, err := store.Get(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, []byte("data"), got)
		assert.True(t, store.SessionExists(ctx, "s1"))
	})

	t.Run("Save Overwrites", func(t *testing.T) {
		store, _ := factory(t)

		require.NoError(t, store.Save(ctx, "s1", []byte("first")))
		require.NoError(t, store.Save(ctx, "s1", []byte("second")))

		got, err := store.Get(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, []byte("second"), got)
	})

	t.Run("Payload Is Byte Exact", func(t *testing.T) {
		store, _ := factory(t)
		payload := []byte{0x00, 0xff, 0x10, '\n', 0xc3, 0x28, 0x00}

		require.NoError(t, store.Save(ctx, "binary", payload))

		got, err := store.Get(ctx, "binary")
		require.NoError(t, err)
		assert.Equal(t, payload, got)
	})

	t.Run("Unsafe Identifiers", func(t *testing.T) {
		store, _ := factory(t)
		ids := []string{"../escape", "a/b\\c", "with space", "ünïcødé", "dots..", "CON"}

		for _, id := range ids {
			require.NoError(t, store.Save(ctx, id, []byte(id)), "save %q", id)
		}
		for _, id := range ids {
			got, err := store.Get(ctx, id)
			require.NoError(t, err, "get %q", id)
			assert.Equal(t, []byte(id), got)
		}
	})

	t.Run("Empty Identifier", func(t *testing.T) {
		store, _ := factory(t)

		err := store.Save(ctx, "", []byte("x"))
		assert.ErrorIs(t, err, domain.ErrInvalidIdentifier)
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		store, _ := factory(t)

		_, err := store.Get(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
		assert.False(t, domain.IsStorageFailure(err))
		assert.False(t, store.SessionExists(ctx, "missing"))
	})

	t.Run("Destroy", func(t *testing.T) {
		store, _ := factory(t)

		require.NoError(t, store.Save(ctx, "s1", []byte("test")))
		require.True(t, store.SessionExists(ctx, "s1"))

		require.NoError(t, store.Destroy(ctx, "s1"))
		assert.False(t, store.SessionExists(ctx, "s1"))

		_, err := store.Get(ctx, "s1")
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)

		err = store.Destroy(ctx, "s1")
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Destroy Non-Existent", func(t *testing.T) {
		store, _ := factory(t)

		err := store.Destroy(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Destroy Keeps Lock", func(t *testing.T) {
		store, _ := factory(t)

		require.NoError(t, store.Save(ctx, "s1", []byte("test")))
		require.True(t, store.Lock(ctx, "s1"))
		require.NoError(t, store.Destroy(ctx, "s1"))

		assert.False(t, store.Lock(ctx, "s1"), "destroy must not release the lock")
		store.Unlock(ctx, "s1")
		assert.True(t, store.Lock(ctx, "s1"))
	})

	t.Run("Lock Once", func(t *testing.T) {
		store, _ := factory(t)

		assert.True(t, store.Lock(ctx, "s1"))
		assert.False(t, store.Lock(ctx, "s1"))
		store.Unlock(ctx, "s1")
		assert.True(t, store.Lock(ctx, "s1"))
	})

	t.Run("Lock Without Record", func(t *testing.T) {
		store, _ := factory(t)

		assert.True(t, store.Lock(ctx, "ghost"))
		assert.False(t, store.SessionExists(ctx, "ghost"))
	})

	t.Run("Unlock Non-Existent", func(t *testing.T) {
		store, _ := factory(t)

		assert.NotPanics(t, func() {
			store.Unlock(ctx, "never-locked")
			store.Unlock(ctx, "never-locked")
		})
		assert.True(t, store.Lock(ctx, "never-locked"))
	})

	t.Run("Concurrent Lock", func(t *testing.T) {
		store, other := factory(t)
		const workers = 32

		var acquired atomic.Int32
		var wg sync.WaitGroup
		wg.Add(workers)
		for i := 0; i < workers; i++ {
			p := store
			if i%2 == 1 {
				p = other
			}
			go func() {
				defer wg.Done()
				if p.Lock(ctx, "contended") {
					acquired.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), acquired.Load(), "exactly one caller must win the lock")
	})

	t.Run("Concurrent Save and Get", func(t *testing.T) {
		store, _ := factory(t)
		const workers = 10

		var wg sync.WaitGroup
		wg.Add(workers)
		for i := 0; i < workers; i++ {
			go func(n int) {
				defer wg.Done()
				id := fmt.Sprintf("id-%d", n)
				assert.NoError(t, store.Save(ctx, id, []byte(id)))
				got, err := store.Get(ctx, id)
				assert.NoError(t, err)
				assert.Equal(t, []byte(id), got)
			}(i)
		}
		wg.Wait()
	})

	t.Run("Concurrent Save and Get Same ID", func(t *testing.T) {
		store, other := factory(t)
		const writers, readers, rounds = 8, 8, 20

		payloads := make(map[string]bool, writers)
		for i := 0; i < writers; i++ {
			payloads[string(bytes.Repeat([]byte{byte('a' + i)}, 4096))] = true
		}

		var wg sync.WaitGroup
		wg.Add(writers + readers)
		for i := 0; i < writers; i++ {
			payload := bytes.Repeat([]byte{byte('a' + i)}, 4096)
			p := store
			if i%2 == 1 {
				p = other
			}
			go func() {
				defer wg.Done()
				for r := 0; r < rounds; r++ {
					assert.NoError(t, p.Save(ctx, "shared", payload))
				}
			}()
		}
		for i := 0; i < readers; i++ {
			p := other
			if i%2 == 1 {
				p = store
			}
			go func() {
				defer wg.Done()
				for r := 0; r < rounds; r++ {
					got, err := p.Get(ctx, "shared")
					if err != nil {
						assert.ErrorIs(t, err, domain.ErrSessionNotFound)
						continue
					}
					assert.True(t, payloads[string(got)], "read must return one whole saved payload")
				}
			}()
		}
		wg.Wait()

		got, err := store.Get(ctx, "shared")
		require.NoError(t, err)
		assert.True(t, payloads[string(got)])
	})

	t.Run("Concurrent Save and Destroy Same ID", func(t *testing.T) {
		store, other := factory(t)
		const workers = 16

		var wg sync.WaitGroup
		wg.Add(workers)
		for i := 0; i < workers; i++ {
			p := store
			if i%2 == 1 {
				p = other
			}
			go func(n int) {
				defer wg.Done()
				if n%2 == 0 {
					assert.NoError(t, p.Save(ctx, "shared", []byte{byte(n)}))
					return
				}
				if err := p.Destroy(ctx, "shared"); err != nil {
					assert.ErrorIs(t, err, domain.ErrSessionNotFound)
				}
			}(i)
		}
		wg.Wait()

		// Existence and Get agree, then the last operation decides.
		_, err := other.Get(ctx, "shared")
		assert.Equal(t, err == nil, store.SessionExists(ctx, "shared"))

		require.NoError(t, store.Save(ctx, "shared", []byte("last")))
		assert.True(t, other.SessionExists(ctx, "shared"))
		got, err := other.Get(ctx, "shared")
		require.NoError(t, err)
		assert.Equal(t, []byte("last"), got)

		require.NoError(t, other.Destroy(ctx, "shared"))
		assert.False(t, store.SessionExists(ctx, "shared"))
	})

	t.Run("Shared Medium", func(t *testing.T) {
		store, other := factory(t)

		require.NoError(t, store.Save(ctx, "s1", []byte("test_data")))

		got, err := other.Get(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, []byte("test_data"), got)

		require.True(t, store.Lock(ctx, "s1"))
		assert.False(t, other.Lock(ctx, "s1"), "lock state belongs to the medium")
		other.Unlock(ctx, "s1")
		assert.True(t, store.Lock(ctx, "s1"))
	})

	t.Run("ClearOld Removes Stale", func(t *testing.T) {
		store, _ := factory(t)

		require.NoError(t, store.Save(ctx, "s1", []byte("test")))
		time.Sleep(time.Millisecond)
		require.True(t, store.SessionExists(ctx, "s1"))

		require.NoError(t, store.ClearOld(ctx, 10*time.Microsecond))
		assert.False(t, store.SessionExists(ctx, "s1"))
	})

	t.Run("ClearOld Keeps Fresh", func(t *testing.T) {
		store, _ := factory(t)

		require.NoError(t, store.Save(ctx, "s1", []byte("test")))
		require.NoError(t, store.ClearOld(ctx, time.Second))

		assert.True(t, store.SessionExists(ctx, "s1"))
		got, err := store.Get(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, []byte("test"), got)
	})

	t.Run("ClearOld Keeps Locks", func(t *testing.T) {
		store, _ := factory(t)

		require.NoError(t, store.Save(ctx, "s1", []byte("test")))
		require.True(t, store.Lock(ctx, "s1"))
		time.Sleep(time.Millisecond)

		require.NoError(t, store.ClearOld(ctx, 0))
		assert.False(t, store.SessionExists(ctx, "s1"))
		assert.False(t, store.Lock(ctx, "s1"), "sweeps must not release locks")
	})

	t.Run("ClearOld Empty", func(t *testing.T) {
		store, _ := factory(t)

		assert.NoError(t, store.ClearOld(ctx, time.Hour))
		assert.NoError(t, store.ClearOld(ctx, 0))
	})
}
