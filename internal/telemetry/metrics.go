package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the ELD gateway.
type Metrics struct {
	ProviderRequestTotal      *prometheus.CounterVec
	ProviderRequestDurationMs *prometheus.HistogramVec
	SyncTotal                 *prometheus.CounterVec
	SyncRecordsTotal          *prometheus.CounterVec
	RateLimitHitTotal         *prometheus.CounterVec
	ConnectionTestTotal       *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		ProviderRequestTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "eld_provider_request_total",
			Help: "Total requests forwarded to ELD providers.",
		}, []string{"provider", "operation", "outcome"}),

		ProviderRequestDurationMs: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "eld_provider_request_duration_ms",
			Help:    "Provider round-trip duration in milliseconds.",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		}, []string{"provider", "operation"}),

		SyncTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "eld_sync_total",
			Help: "Total sync runs by outcome.",
		}, []string{"provider", "trigger", "outcome"}),

		SyncRecordsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "eld_sync_records_total",
			Help: "Total records pulled from providers during syncs.",
		}, []string{"provider", "category"}),

		RateLimitHitTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "eld_rate_limit_hit_total",
			Help: "Total requests rejected by rate limiting.",
		}, []string{"dimension"}),

		ConnectionTestTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "eld_connection_test_total",
			Help: "Total connection tests by outcome.",
		}, []string{"provider", "outcome"}),
	}
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// RecordProviderRequest records one adapter operation.
func (m *Metrics) RecordProviderRequest(provider, operation string, success bool, durationMs float64) {
	m.ProviderRequestTotal.WithLabelValues(provider, operation, outcome(success)).Inc()
	m.ProviderRequestDurationMs.WithLabelValues(provider, operation).Observe(durationMs)
}

// RecordSync records one sync run and its per-category record counts.
func (m *Metrics) RecordSync(provider, trigger string, success bool, drivers, vehicles, logs, violations int) {
	m.SyncTotal.WithLabelValues(provider, trigger, outcome(success)).Inc()
	m.SyncRecordsTotal.WithLabelValues(provider, "drivers").Add(float64(drivers))
	m.SyncRecordsTotal.WithLabelValues(provider, "vehicles").Add(float64(vehicles))
	m.SyncRecordsTotal.WithLabelValues(provider, "logs").Add(float64(logs))
	m.SyncRecordsTotal.WithLabelValues(provider, "violations").Add(float64(violations))
}

// RecordRateLimitHit records a rejected request.
func (m *Metrics) RecordRateLimitHit(dimension string) {
	m.RateLimitHitTotal.WithLabelValues(dimension).Inc()
}

// RecordConnectionTest records a connection probe outcome.
func (m *Metrics) RecordConnectionTest(provider string, success bool) {
	m.ConnectionTestTotal.WithLabelValues(provider, outcome(success)).Inc()
}
