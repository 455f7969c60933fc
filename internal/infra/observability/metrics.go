package observability

import (
	"time"

	"github.com/boddenberg/finance-dashboard-bfa/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
	"github.com/sony/gobreaker"
)

// Prediction outcomes recorded by the prediction gateway.
const (
	PredictionSuccess = "success"
	PredictionEmpty   = "empty"
	PredictionFailure = "failure"
)

// Metrics holds all Prometheus metrics for the BFA.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	storeErrors     *prometheus.CounterVec
	externalErrors  *prometheus.CounterVec
	predictions     *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	requestsTotal   *prometheus.CounterVec
	circuitState    *prometheus.GaugeVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bfa_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		storeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_store_errors_total",
				Help: "Total failed record store queries.",
			},
			[]string{"query"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		predictions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_prediction_total",
				Help: "Prediction gateway calls by outcome.",
			},
			[]string{"outcome"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_requests_total",
				Help: "Total dashboard reports processed.",
			},
			[]string{"status"},
		),
		circuitState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bfa_circuit_state",
				Help: "Circuit breaker state (0 closed, 1 half-open, 2 open).",
			},
			[]string{"name"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrStoreError increments the failed store query counter.
func (m *Metrics) IncrStoreError(query string) {
	m.storeErrors.WithLabelValues(query).Inc()
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrPrediction increments the prediction counter for an outcome.
func (m *Metrics) IncrPrediction(outcome string) {
	m.predictions.WithLabelValues(outcome).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrRequest increments the request counter with a status label.
func (m *Metrics) IncrRequest(status string) {
	m.requestsTotal.WithLabelValues(status).Inc()
}

// SetCircuitState records a breaker transition. Its signature matches
// resilience.StateListener.
func (m *Metrics) SetCircuitState(name string, _, to gobreaker.State) {
	m.circuitState.WithLabelValues(name).Set(float64(to))
}

// GetPredictionSnapshot returns a snapshot of prediction gateway metrics for
// the GET /v1/metrics/prediction endpoint. breaker names the circuit breaker
// guarding the predictor.
func (m *Metrics) GetPredictionSnapshot(breaker string) *domain.PredictionMetrics {
	succeeded := getCounterValue(m.predictions, PredictionSuccess)
	empty := getCounterValue(m.predictions, PredictionEmpty)
	failed := getCounterValue(m.predictions, PredictionFailure)
	total := succeeded + empty + failed

	failureRate := float64(0)
	if total > 0 {
		failureRate = failed / total
	}

	hits := getCounterValue(m.cacheHits, "category")
	misses := getCounterValue(m.cacheMisses, "category")
	cacheHitRate := float64(0)
	if hits+misses > 0 {
		cacheHitRate = hits / (hits + misses)
	}

	avgLatencyMs := float64(0)
	if count, sum := getHistogramValue(m.requestDuration, "prediction"); count > 0 {
		avgLatencyMs = sum / float64(count) * 1000
	}

	state := gobreaker.StateClosed
	if v := getGaugeValue(m.circuitState, breaker); v > 0 {
		state = gobreaker.State(int(v))
	}

	return &domain.PredictionMetrics{
		TotalCalls:   int64(total),
		Succeeded:    int64(succeeded),
		Empty:        int64(empty),
		Failed:       int64(failed),
		FailureRate:  failureRate,
		AvgLatencyMs: avgLatencyMs,
		CacheHitRate: cacheHitRate,
		CircuitState: state.String(),
		Period:       "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

func getGaugeValue(gv *prometheus.GaugeVec, label string) float64 {
	m := &dto.Metric{}
	if err := gv.WithLabelValues(label).Write(m); err != nil {
		return 0
	}
	if m.Gauge != nil && m.Gauge.Value != nil {
		return *m.Gauge.Value
	}
	return 0
}

func getHistogramValue(hv *prometheus.HistogramVec, label string) (uint64, float64) {
	m := &dto.Metric{}
	if err := hv.WithLabelValues(label).(prometheus.Metric).Write(m); err != nil {
		return 0, 0
	}
	if m.Histogram == nil {
		return 0, 0
	}
	return m.Histogram.GetSampleCount(), m.Histogram.GetSampleSum()
}
