package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Operation results used as the "result" label.
const (
	ResultOK       = "ok"
	ResultNotFound = "not_found"
	ResultError    = "error"
)

// Metrics holds the collectors describing storage provider activity.
type Metrics struct {
	Operations     *prometheus.CounterVec
	Duration       *prometheus.HistogramVec
	LockContention prometheus.Counter
	Swept          prometheus.Counter

	gatherer prometheus.Gatherer
}

// NewMetrics creates the collectors and registers them on reg.
// A nil reg uses a fresh private registry.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		Operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessionvault_operations_total",
				Help: "Total number of storage provider operations by result",
			},
			[]string{"op", "result"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sessionvault_operation_duration_seconds",
				Help:    "Duration of storage provider operations",
				Buckets: prometheus.ExponentialBuckets(0.00005, 4, 10),
			},
			[]string{"op"},
		),
		LockContention: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sessionvault_lock_contention_total",
			Help: "Number of lock attempts that found the session already locked",
		}),
		Swept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sessionvault_swept_sessions_total",
			Help: "Number of sessions removed by garbage collection",
		}),
	}

	for _, c := range []prometheus.Collector{m.Operations, m.Duration, m.LockContention, m.Swept} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	} else {
		m.gatherer = prometheus.DefaultGatherer
	}
	return m, nil
}

// Observe records one finished operation.
func (m *Metrics) Observe(op, result string, started time.Time) {
	m.Operations.WithLabelValues(op, result).Inc()
	m.Duration.WithLabelValues(op).Observe(time.Since(started).Seconds())
}

// Handler exposes the registry the metrics were registered on.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
