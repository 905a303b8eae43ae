package ports

import (
	"context"
	"time"
)

// StorageProvider persists opaque session payloads keyed by identifier, keeps an
// advisory lock set over the same identifiers and evicts records by age.
//
// Implementations must be safe for concurrent use, and every handle opened on the
// same medium must observe the same records and locks.
type StorageProvider interface {
	// Save inserts or overwrites the payload for id and stamps its write time.
	Save(ctx context.Context, id string, payload []byte) error

	// Get returns the payload most recently saved for id.
	// Returns domain.ErrSessionNotFound if no record exists.
	Get(ctx context.Context, id string) ([]byte, error)

	// SessionExists reports whether a record exists for id. It never fails.
	SessionExists(ctx context.Context, id string) bool

	// Lock marks id as locked if it is not already, and reports whether this call did it.
	// It never blocks; a false result means "try later".
	Lock(ctx context.Context, id string) bool

	// Unlock clears the lock on id. Unlocking an unlocked id is a no-op.
	Unlock(ctx context.Context, id string)

	// Destroy removes the record for id without touching its lock.
	// Returns domain.ErrSessionNotFound if no record exists.
	Destroy(ctx context.Context, id string) error

	// ClearOld removes every record written at or before now-maxAge.
	// Locks are never removed.
	ClearOld(ctx context.Context, maxAge time.Duration) error
}

// Sweeper is implemented by providers that can report how many records a sweep removed.
type Sweeper interface {
	Sweep(ctx context.Context, maxAge time.Duration) (int, error)
}

// Sweep runs a sweep on p, reporting the removed count when p supports it.
// Providers without Sweeper report a count of zero.
func Sweep(ctx context.Context, p StorageProvider, maxAge time.Duration) (int, error) {
	if s, ok := p.(Sweeper); ok {
		return s.Sweep(ctx, maxAge)
	}
	return 0, p.ClearOld(ctx, maxAge)
}
