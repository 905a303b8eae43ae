package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/aretw0/sessionvault/pkg/domain"
	"github.com/aretw0/sessionvault/pkg/observability"
	"github.com/aretw0/sessionvault/pkg/ports"
)

type metricsMiddleware struct {
	next    ports.StorageProvider
	metrics *observability.Metrics
}

// NewMetricsMiddleware records every operation on metrics.
func NewMetricsMiddleware(metrics *observability.Metrics) Middleware {
	return func(next ports.StorageProvider) ports.StorageProvider {
		return &metricsMiddleware{next: next, metrics: metrics}
	}
}

func result(err error) string {
	switch {
	case err == nil:
		return observability.ResultOK
	case errors.Is(err, domain.ErrSessionNotFound):
		return observability.ResultNotFound
	default:
		return observability.ResultError
	}
}

func (m *metricsMiddleware) Save(ctx context.Context, id string, payload []byte) error {
	start := time.Now()
	err := m.next.Save(ctx, id, payload)
	m.metrics.Observe("save", result(err), start)
	return err
}

func (m *metricsMiddleware) Get(ctx context.Context, id string) ([]byte, error) {
	start := time.Now()
	payload, err := m.next.Get(ctx, id)
	m.metrics.Observe("get", result(err), start)
	return payload, err
}

func (m *metricsMiddleware) SessionExists(ctx context.Context, id string) bool {
	start := time.Now()
	exists := m.next.SessionExists(ctx, id)
	m.metrics.Observe("exists", observability.ResultOK, start)
	return exists
}

func (m *metricsMiddleware) Lock(ctx context.Context, id string) bool {
	start := time.Now()
	acquired := m.next.Lock(ctx, id)
	m.metrics.Observe("lock", observability.ResultOK, start)
	if !acquired {
		m.metrics.LockContention.Inc()
	}
	return acquired
}

func (m *metricsMiddleware) Unlock(ctx context.Context, id string) {
	start := time.Now()
	m.next.Unlock(ctx, id)
	m.metrics.Observe("unlock", observability.ResultOK, start)
}

func (m *metricsMiddleware) Destroy(ctx context.Context, id string) error {
	start := time.Now()
	err := m.next.Destroy(ctx, id)
	m.metrics.Observe("destroy", result(err), start)
	return err
}

func (m *metricsMiddleware) ClearOld(ctx context.Context, maxAge time.Duration) error {
	_, err := m.Sweep(ctx, maxAge)
	return err
}

func (m *metricsMiddleware) Sweep(ctx context.Context, maxAge time.Duration) (int, error) {
	start := time.Now()
	removed, err := ports.Sweep(ctx, m.next, maxAge)
	m.metrics.Observe("clear_old", result(err), start)
	m.metrics.Swept.Add(float64(removed))
	return removed, err
}
