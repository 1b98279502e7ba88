package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for cart reconciliation. Consumers
// tolerate a nil *Metrics so tests can skip registration.
type Metrics struct {
	Mutations      *prometheus.CounterVec
	StoreFailures  prometheus.Counter
	NoIdentity     prometheus.Counter
	Reloads        prometheus.Counter
	StaleDiscarded prometheus.Counter
	StoreLatency   prometheus.Histogram
	CacheSize      prometheus.Gauge
}

// New creates and registers all cart metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		Mutations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cartsync_mutations_total",
			Help: "Cart mutations by operation (add, update, remove, clear)",
		}, []string{"op"}),
		StoreFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cartsync_store_failures_total",
			Help: "Remote cart store calls that failed",
		}),
		NoIdentity: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cartsync_no_identity_total",
			Help: "Persisted mutations attempted with no signed-in identity",
		}),
		Reloads: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cartsync_reloads_total",
			Help: "Cart reloads triggered by identity changes",
		}),
		StaleDiscarded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cartsync_stale_reloads_discarded_total",
			Help: "Reload results discarded because a newer identity change superseded them",
		}),
		StoreLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "cartsync_store_latency_seconds",
			Help:    "Latency of remote cart store calls",
			Buckets: prometheus.DefBuckets,
		}),
		CacheSize: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "cartsync_cache_items",
			Help: "Line items currently held in the local cart cache",
		}),
	}
}

// ObserveMutation records one engine mutation.
func (m *Metrics) ObserveMutation(op string) {
	if m == nil {
		return
	}
	m.Mutations.WithLabelValues(op).Inc()
}

// ObserveStoreCall records the latency of one remote store call and counts a
// failure when err is non-nil.
func (m *Metrics) ObserveStoreCall(start time.Time, err error) {
	if m == nil {
		return
	}
	m.StoreLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		m.StoreFailures.Inc()
	}
}

// IncNoIdentity counts a mutation blocked by a missing identity.
func (m *Metrics) IncNoIdentity() {
	if m == nil {
		return
	}
	m.NoIdentity.Inc()
}

// IncReload counts a reload start.
func (m *Metrics) IncReload() {
	if m == nil {
		return
	}
	m.Reloads.Inc()
}

// IncStaleDiscarded counts a superseded reload result thrown away.
func (m *Metrics) IncStaleDiscarded() {
	if m == nil {
		return
	}
	m.StaleDiscarded.Inc()
}

// SetCacheSize publishes the current cache length.
func (m *Metrics) SetCacheSize(n int) {
	if m == nil {
		return
	}
	m.CacheSize.Set(float64(n))
}
