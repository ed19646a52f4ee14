// Package monitor exposes Prometheus metrics for the validation pipeline.
package monitor

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	validationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_validations_total",
			Help: "Total order validations by outcome",
		},
		[]string{"outcome"},
	)

	violationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_violations_total",
			Help: "Total risk violations by rule",
		},
		[]string{"rule"},
	)

	assetCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_asset_cache_lookups_total",
			Help: "Asset cache lookups by result (hit, miss, stale_fallback)",
		},
		[]string{"result"},
	)

	ordersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_orders_total",
			Help: "Order submissions by final status",
		},
		[]string{"status"},
	)

	brokerRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_broker_request_seconds",
			Help:    "Upstream broker request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

func init() {
	prometheus.MustRegister(
		validationsTotal,
		violationsTotal,
		assetCacheLookups,
		ordersTotal,
		brokerRequestDuration,
	)
}

// RecordValidation counts one completed validation.
func RecordValidation(violationCount int) {
	outcome := "approved"
	if violationCount > 0 {
		outcome = "rejected"
	}
	validationsTotal.WithLabelValues(outcome).Inc()
}

// RecordViolation counts one emitted violation for a rule.
func RecordViolation(rule string) {
	violationsTotal.WithLabelValues(rule).Inc()
}

// RecordCacheLookup counts an asset cache lookup result.
func RecordCacheLookup(result string) {
	assetCacheLookups.WithLabelValues(result).Inc()
}

// Cache lookup results.
const (
	CacheHit           = "hit"
	CacheMiss          = "miss"
	CacheStaleFallback = "stale_fallback"
)

// RecordOrder counts an order submission outcome.
func RecordOrder(status string) {
	ordersTotal.WithLabelValues(status).Inc()
}

// RecordBrokerRequest observes one upstream call's latency.
func RecordBrokerRequest(operation string, d time.Duration) {
	brokerRequestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
