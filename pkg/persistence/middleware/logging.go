package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aretw0/sessionvault/pkg/domain"
	"github.com/aretw0/sessionvault/pkg/ports"
)

type loggingMiddleware struct {
	next   ports.StorageProvider
	logger *slog.Logger
}

// NewLoggingMiddleware logs every operation at Debug and medium failures at Warn.
// Payload contents are never logged, only their size.
func NewLoggingMiddleware(logger *slog.Logger) Middleware {
	return func(next ports.StorageProvider) ports.StorageProvider {
		return &loggingMiddleware{next: next, logger: logger}
	}
}

func (m *loggingMiddleware) logResult(ctx context.Context, op, id string, err error, attrs ...any) {
	attrs = append(attrs, "op", op)
	if id != "" {
		attrs = append(attrs, "session_id", id)
	}
	switch {
	case err == nil:
		m.logger.DebugContext(ctx, "Storage operation", attrs...)
	case errors.Is(err, domain.ErrSessionNotFound):
		m.logger.DebugContext(ctx, "Session not found", attrs...)
	default:
		m.logger.WarnContext(ctx, "Storage operation failed", append(attrs, "err", err)...)
	}
}

func (m *loggingMiddleware) Save(ctx context.Context, id string, payload []byte) error {
	err := m.next.Save(ctx, id, payload)
	m.logResult(ctx, "save", id, err, "bytes", len(payload))
	return err
}

func (m *loggingMiddleware) Get(ctx context.Context, id string) ([]byte, error) {
	payload, err := m.next.Get(ctx, id)
	m.logResult(ctx, "get", id, err, "bytes", len(payload))
	return payload, err
}

func (m *loggingMiddleware) SessionExists(ctx context.Context, id string) bool {
	exists := m.next.SessionExists(ctx, id)
	m.logResult(ctx, "exists", id, nil, "exists", exists)
	return exists
}

func (m *loggingMiddleware) Lock(ctx context.Context, id string) bool {
	acquired := m.next.Lock(ctx, id)
	m.logResult(ctx, "lock", id, nil, "acquired", acquired)
	return acquired
}

func (m *loggingMiddleware) Unlock(ctx context.Context, id string) {
	m.next.Unlock(ctx, id)
	m.logResult(ctx, "unlock", id, nil)
}

func (m *loggingMiddleware) Destroy(ctx context.Context, id string) error {
	err := m.next.Destroy(ctx, id)
	m.logResult(ctx, "destroy", id, err)
	return err
}

func (m *loggingMiddleware) ClearOld(ctx context.Context, maxAge time.Duration) error {
	_, err := m.Sweep(ctx, maxAge)
	return err
}

func (m *loggingMiddleware) Sweep(ctx context.Context, maxAge time.Duration) (int, error) {
	removed, err := ports.Sweep(ctx, m.next, maxAge)
	m.logResult(ctx, "clear_old", "", err, "max_age", maxAge, "removed", removed)
	return removed, err
}
