package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/sessionvault/internal/logging"
	"github.com/aretw0/sessionvault/pkg/ports"
)

// DefaultPollInterval is the wait between lock attempts.
const DefaultPollInterval = 50 * time.Millisecond

// UnlockFunc releases a lock taken by Acquire. Calling it more than once is harmless.
type UnlockFunc func()

type acquireConfig struct {
	pollInterval time.Duration
	logger       *slog.Logger
}

// Option configures Acquire and WithLock.
type Option func(*acquireConfig)

// WithPollInterval sets the wait between lock attempts.
func WithPollInterval(d time.Duration) Option {
	return func(c *acquireConfig) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithLogger configures a logger for lock waits.
func WithLogger(logger *slog.Logger) Option {
	return func(c *acquireConfig) {
		c.logger = logger
	}
}

// Acquire polls p.Lock until it succeeds or ctx is done.
// The returned UnlockFunc must be called to release the lock.
func Acquire(ctx context.Context, p ports.StorageProvider, id string, opts ...Option) (UnlockFunc, error) {
	cfg := acquireConfig{
		pollInterval: DefaultPollInterval,
		logger:       logging.NewNop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if p.Lock(ctx, id) {
		return unlocker(p, id), nil
	}

	cfg.logger.Debug("Waiting for session lock", "session_id", id)
	ticker := time.NewTicker(cfg.pollInterval)
	defer ticker.Stop()

	attempts := 1
	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("failed to acquire lock for session %q after %d attempts: %w", id, attempts, ctx.Err())
		case <-ticker.C:
			attempts++
			if p.Lock(ctx, id) {
				cfg.logger.Debug("Session lock acquired", "session_id", id, "attempts", attempts)
				return unlocker(p, id), nil
			}
		}
	}
}

func unlocker(p ports.StorageProvider, id string) UnlockFunc {
	var once sync.Once
	return func() {
		// The caller's context may already be cancelled; the unlock must still reach the medium.
		once.Do(func() { p.Unlock(context.Background(), id) })
	}
}

// WithLock executes fn while holding the advisory lock for the session.
func WithLock(ctx context.Context, p ports.StorageProvider, id string, fn func(context.Context) error, opts ...Option) error {
	unlock, err := Acquire(ctx, p, id, opts...)
	if err != nil {
		return err
	}
	defer unlock()

	return fn(ctx)
}
