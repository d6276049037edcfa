package authn

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus instruments for the token validation core.
// All Validator methods tolerate a nil Metrics so tests can opt out.
type Metrics struct {
	CacheHits           prometheus.Counter
	CacheMisses         prometheus.Counter
	CacheEntries        prometheus.Gauge
	RemoteAttempts      prometheus.Counter
	RemoteRetries       prometheus.Counter
	FallbackActivations prometheus.Counter
	Results             *prometheus.CounterVec
	BreakerState        prometheus.Gauge
}

// NewMetrics creates and registers the validation metrics on the given
// registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authn_cache_hits_total",
			Help: "Token validations served from the cache.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authn_cache_misses_total",
			Help: "Token validations that missed the cache.",
		}),
		CacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "authn_cache_entries",
			Help: "Current number of live cache entries.",
		}),
		RemoteAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authn_remote_attempts_total",
			Help: "Validation calls issued to the remote authority.",
		}),
		RemoteRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authn_remote_retries_total",
			Help: "Retried validation calls after transient failures.",
		}),
		FallbackActivations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authn_fallback_activations_total",
			Help: "Validations that fell back to local signature verification.",
		}),
		Results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authn_results_total",
			Help: "Final validation outcomes by result.",
		}, []string{"result"}),
		BreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "authn_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open).",
		}),
	}

	reg.MustRegister(
		m.CacheHits,
		m.CacheMisses,
		m.CacheEntries,
		m.RemoteAttempts,
		m.RemoteRetries,
		m.FallbackActivations,
		m.Results,
		m.BreakerState,
	)

	return m
}

func (m *Metrics) cacheHit() {
	if m != nil {
		m.CacheHits.Inc()
	}
}

func (m *Metrics) cacheMiss() {
	if m != nil {
		m.CacheMisses.Inc()
	}
}

func (m *Metrics) cacheSize(n int) {
	if m != nil {
		m.CacheEntries.Set(float64(n))
	}
}

func (m *Metrics) remoteAttempt() {
	if m != nil {
		m.RemoteAttempts.Inc()
	}
}

func (m *Metrics) remoteRetry() {
	if m != nil {
		m.RemoteRetries.Inc()
	}
}

func (m *Metrics) fallback() {
	if m != nil {
		m.FallbackActivations.Inc()
	}
}

func (m *Metrics) result(outcome string) {
	if m != nil {
		m.Results.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) breakerState(state float64) {
	if m != nil {
		m.BreakerState.Set(state)
	}
}
