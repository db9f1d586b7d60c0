package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wonho/pulserank/internal/domain"
)

// Metrics holds every prometheus collector the service exports. One
// instance is wired through the cache store, provider transports and
// the refresh job; all methods are safe for concurrent use.
type Metrics struct {
	registry *prometheus.Registry

	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec
	staleServes *prometheus.CounterVec
	cacheFills  *prometheus.CounterVec
	staleAge    prometheus.Histogram

	providerRequests *prometheus.CounterVec
	providerErrors   *prometheus.CounterVec

	refreshRuns *prometheus.CounterVec
	refreshKeys prometheus.Gauge
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pulserank_cache_hits_total",
			Help: "Cache reads answered by a live entry.",
		}, []string{"endpoint"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pulserank_cache_misses_total",
			Help: "Cache reads that required a computation.",
		}, []string{"endpoint"}),
		staleServes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pulserank_cache_stale_serves_total",
			Help: "Responses served from an expired entry after a failed refresh.",
		}, []string{"endpoint"}),
		cacheFills: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pulserank_cache_fills_total",
			Help: "Cache fill computations by outcome.",
		}, []string{"endpoint", "outcome"}),
		staleAge: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pulserank_stale_serve_age_seconds",
			Help:    "Age of entries at the moment they were served stale.",
			Buckets: []float64{60, 120, 180, 240, 300, 600},
		}),

		providerRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pulserank_provider_requests_total",
			Help: "Provider calls by outcome.",
		}, []string{"provider", "outcome"}),
		providerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pulserank_provider_errors_total",
			Help: "Provider failures by error class.",
		}, []string{"provider", "class"}),

		refreshRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pulserank_refresh_runs_total",
			Help: "Background refresh attempts by outcome.",
		}, []string{"outcome"}),
		refreshKeys: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pulserank_refresh_due_keys",
			Help: "Keys due for refresh at the last sweep.",
		}),
	}

	m.registry.MustRegister(
		m.cacheHits, m.cacheMisses, m.staleServes, m.cacheFills, m.staleAge,
		m.providerRequests, m.providerErrors,
		m.refreshRuns, m.refreshKeys,
	)
	return m
}

// Handler serves the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Hit implements cache.Recorder.
func (m *Metrics) Hit(endpoint string) { m.cacheHits.WithLabelValues(endpoint).Inc() }

// Miss implements cache.Recorder.
func (m *Metrics) Miss(endpoint string) { m.cacheMisses.WithLabelValues(endpoint).Inc() }

// StaleServe implements cache.Recorder.
func (m *Metrics) StaleServe(endpoint string, age time.Duration) {
	m.staleServes.WithLabelValues(endpoint).Inc()
	m.staleAge.Observe(age.Seconds())
}

// Fill implements cache.Recorder.
func (m *Metrics) Fill(endpoint string, ok bool) {
	m.cacheFills.WithLabelValues(endpoint, outcome(ok)).Inc()
}

// ProviderRequest counts one provider call classified by its error.
func (m *Metrics) ProviderRequest(provider string, err error) {
	m.providerRequests.WithLabelValues(provider, outcome(err == nil)).Inc()
	if err != nil {
		m.providerErrors.WithLabelValues(provider, errorClass(err)).Inc()
	}
}

// RefreshRun counts one background refresh attempt.
func (m *Metrics) RefreshRun(ok bool) { m.refreshRuns.WithLabelValues(outcome(ok)).Inc() }

// RefreshDue records how many keys the last sweep found due.
func (m *Metrics) RefreshDue(n int) { m.refreshKeys.Set(float64(n)) }

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

func errorClass(err error) string {
	switch {
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, domain.ErrInvalidInstrument):
		return "invalid_instrument"
	case errors.Is(err, domain.ErrProviderUnavailable):
		return "unavailable"
	default:
		return "other"
	}
}
