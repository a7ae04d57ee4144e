package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Backtest outcomes used as the "outcome" label.
const (
	OutcomeOK           = "ok"
	OutcomeInvalid      = "invalid"
	OutcomeNoData       = "no_data"
	OutcomeInsufficient = "insufficient_history"
	OutcomeFetchError   = "fetch_error"
	OutcomeTimeout      = "timeout"
)

// Metrics holds all Prometheus metrics for the backtest service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Pipeline
	BacktestsTotal   *prometheus.CounterVec // labels: outcome
	BacktestDuration prometheus.Histogram

	// Market data
	FetchDuration *prometheus.HistogramVec // labels: source
	FetchErrors   *prometheus.CounterVec   // labels: source
	BarsFetched   prometheus.Histogram

	// Redis bar cache
	CacheRequests            *prometheus.CounterVec // labels: result=hit|miss|error|bypass
	RedisCircuitBreakerState prometheus.Gauge       // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter

	// SQLite archive
	ArchiveWrites *prometheus.CounterVec // labels: result=ok|error

	// HTTP
	HTTPRequests *prometheus.CounterVec // labels: route, code
	HTTPDuration *prometheus.HistogramVec
}

// New creates all metrics and registers them on reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BacktestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backtests_total",
			Help: "Backtest pipeline runs by outcome",
		}, []string{"outcome"}),
		BacktestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "backtest_duration_seconds",
			Help:    "End-to-end backtest latency including the market data fetch",
			Buckets: prometheus.DefBuckets,
		}),

		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "marketdata_fetch_duration_seconds",
			Help:    "Daily bar fetch latency by source",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"source"}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketdata_fetch_errors_total",
			Help: "Daily bar fetch failures by source",
		}, []string{"source"}),
		BarsFetched: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "marketdata_bars_per_fetch",
			Help:    "Number of daily bars returned per fetch",
			Buckets: []float64{0, 10, 50, 250, 500, 1250, 2500, 5000, 10000},
		}),

		CacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bar_cache_requests_total",
			Help: "Redis bar cache lookups by result",
		}, []string{"result"}),
		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),

		ArchiveWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bar_archive_writes_total",
			Help: "SQLite bar archive writes by result",
		}, []string{"result"}),

		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"route", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	reg.MustRegister(
		m.BacktestsTotal,
		m.BacktestDuration,
		m.FetchDuration,
		m.FetchErrors,
		m.BarsFetched,
		m.CacheRequests,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
		m.ArchiveWrites,
		m.HTTPRequests,
		m.HTTPDuration,
	)

	return m
}

// ObserveBacktest records one pipeline run.
func (m *Metrics) ObserveBacktest(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.BacktestsTotal.WithLabelValues(outcome).Inc()
	m.BacktestDuration.Observe(d.Seconds())
}

// ObserveFetch records one market data fetch.
func (m *Metrics) ObserveFetch(source string, d time.Duration, bars int, err error) {
	if m == nil {
		return
	}
	m.FetchDuration.WithLabelValues(source).Observe(d.Seconds())
	if err != nil {
		m.FetchErrors.WithLabelValues(source).Inc()
		return
	}
	m.BarsFetched.Observe(float64(bars))
}

// CacheResult counts one Redis bar cache lookup.
func (m *Metrics) CacheResult(result string) {
	if m == nil {
		return
	}
	m.CacheRequests.WithLabelValues(result).Inc()
}

// BreakerTransition records a circuit breaker state change.
func (m *Metrics) BreakerTransition(to int, tripped bool) {
	if m == nil {
		return
	}
	m.RedisCircuitBreakerState.Set(float64(to))
	if tripped {
		m.RedisCircuitBreakerTrips.Inc()
	}
}

// ArchiveWrite counts one SQLite archive write.
func (m *Metrics) ArchiveWrite(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ArchiveWrites.WithLabelValues(result).Inc()
}

// ObserveHTTP records one HTTP request.
func (m *Metrics) ObserveHTTP(route, code string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, code).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(d.Seconds())
}
