package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/sessionvault/internal/logging"
	"github.com/aretw0/sessionvault/pkg/ports"
)

// Ticker is the subset of time.Ticker used by Sweeper.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct {
	*time.Ticker
}

func (t timeTicker) C() <-chan time.Time { return t.Ticker.C }

// Sweeper periodically removes stale sessions from a provider.
type Sweeper struct {
	Provider ports.StorageProvider
	MaxAge   time.Duration
	// Interval between sweeps. Zero runs a single sweep.
	Interval time.Duration
	// NewTicker overrides the ticker constructor, for tests.
	NewTicker func(time.Duration) Ticker
	Logger    *slog.Logger
}

// Run sweeps immediately and then once per Interval until ctx is cancelled.
// Sweep errors are logged and do not stop the loop.
func (s *Sweeper) Run(ctx context.Context) error {
	logger := s.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	s.sweepOnce(ctx, logger)
	if s.Interval <= 0 {
		return nil
	}

	newTicker := s.NewTicker
	if newTicker == nil {
		newTicker = func(d time.Duration) Ticker { return timeTicker{time.NewTicker(d)} }
	}
	ticker := newTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			s.sweepOnce(ctx, logger)
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context, logger *slog.Logger) {
	removed, err := ports.Sweep(ctx, s.Provider, s.MaxAge)
	if err != nil {
		logger.Error("Session sweep failed", "max_age", s.MaxAge, "removed", removed, "err", err)
		return
	}
	logger.Info("Session sweep completed", "max_age", s.MaxAge, "removed", removed)
}
