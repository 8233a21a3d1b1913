// Package metrics provides the Prometheus metrics of the estimation cache and image library.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// EstimationMetrics contains all Prometheus metrics related to estimation lookups.
// A nil *EstimationMetrics is valid and records nothing.
type EstimationMetrics struct {
	CacheHits      *prometheus.CounterVec
	CacheMisses    *prometheus.CounterVec
	OracleCalls    *prometheus.CounterVec
	OracleErrors   *prometheus.CounterVec
	OracleDuration *prometheus.HistogramVec
	RowsWritten    prometheus.Counter
	registry       *prometheus.Registry
}

// NewEstimationMetrics creates the metrics and registers them with registry.
func NewEstimationMetrics(registry *prometheus.Registry) (*EstimationMetrics, error) {
	m := &EstimationMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register estimation metrics: %w", err)
	}
	return m, nil
}

func (m *EstimationMetrics) initMetrics() {
	m.CacheHits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "illustag_estimation_cache_hits_total",
		Help: "Total number of estimation lookups answered from the database.",
	}, []string{"mode"})

	m.CacheMisses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "illustag_estimation_cache_misses_total",
		Help: "Total number of estimation lookups that required the oracle.",
	}, []string{"mode"})

	m.OracleCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "illustag_oracle_calls_total",
		Help: "Total number of oracle invocations.",
	}, []string{"mode"})

	m.OracleErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "illustag_oracle_errors_total",
		Help: "Total number of failed oracle invocations.",
	}, []string{"mode"})

	m.OracleDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "illustag_oracle_duration_seconds",
		Help:    "Duration of oracle invocations in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"mode"})

	m.RowsWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "illustag_estimation_rows_written_total",
		Help: "Total number of estimation rows upserted.",
	})
}

func (m *EstimationMetrics) IncrementCacheHits(mode string) {
	if m == nil {
		return
	}
	m.CacheHits.WithLabelValues(mode).Inc()
}

func (m *EstimationMetrics) IncrementCacheMisses(mode string) {
	if m == nil {
		return
	}
	m.CacheMisses.WithLabelValues(mode).Inc()
}

// ObserveOracleCall records one oracle invocation, its duration in seconds and whether it failed.
func (m *EstimationMetrics) ObserveOracleCall(mode string, durationSeconds float64, err error) {
	if m == nil {
		return
	}
	m.OracleCalls.WithLabelValues(mode).Inc()
	m.OracleDuration.WithLabelValues(mode).Observe(durationSeconds)
	if err != nil {
		m.OracleErrors.WithLabelValues(mode).Inc()
	}
}

func (m *EstimationMetrics) AddRowsWritten(n int) {
	if m == nil {
		return
	}
	m.RowsWritten.Add(float64(n))
}

// Collect implements the prometheus.Collector interface.
func (m *EstimationMetrics) Collect(ch chan<- prometheus.Metric) {
	m.CacheHits.Collect(ch)
	m.CacheMisses.Collect(ch)
	m.OracleCalls.Collect(ch)
	m.OracleErrors.Collect(ch)
	m.OracleDuration.Collect(ch)
	ch <- m.RowsWritten
}

// Describe implements the prometheus.Collector interface.
func (m *EstimationMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.CacheHits.Describe(ch)
	m.CacheMisses.Describe(ch)
	m.OracleCalls.Describe(ch)
	m.OracleErrors.Describe(ch)
	m.OracleDuration.Describe(ch)
	ch <- m.RowsWritten.Desc()
}
