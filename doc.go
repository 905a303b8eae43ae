/*
Package sessionvault stores opaque session payloads behind a small, pluggable contract.

A StorageProvider (see package ports) saves and loads payloads by session identifier,
keeps an advisory lock set over the same identifiers and evicts records older than a
given age. Three backends implement it:

  - memory: a process-local reference implementation over an explicit shared Medium.
  - file: one JSON file per session with atomic replace and lock marker files.
  - redis: one key per session, a sorted index for age-based eviction and SET NX locks.

# Concurrency

Providers never block. Lock is a single insert-if-absent attempt that reports whether it
won; callers that need to wait use session.Acquire or session.WithLock, which poll.
Destroy and ClearOld never touch the lock set.

# Usage

	medium := memory.NewMedium()
	store := memory.NewStore(medium)

	_ = store.Save(ctx, "sess-1", []byte(`{"user":42}`))
	payload, err := store.Get(ctx, "sess-1")

	err = session.WithLock(ctx, store, "sess-1", func(ctx context.Context) error {
		return store.Save(ctx, "sess-1", updated)
	})

	sweeper := &session.Sweeper{Provider: store, MaxAge: 24 * time.Hour, Interval: 10 * time.Minute}
	go sweeper.Run(ctx)

Decorators in persistence/middleware add logging and Prometheus metrics to any provider.
The sessionvault command exposes the same operations from the shell.
*/
package sessionvault
