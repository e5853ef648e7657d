// Package metrics registra os coletores Prometheus do gateway.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GovernorDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_governor_decisions_total",
			Help: "Governor decisions by kind",
		},
		[]string{"decision"},
	)

	GovernorBans = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_governor_bans_total",
			Help: "Bans triggered by clients exceeding the request limit",
		},
	)

	GovernorStoreErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_governor_store_errors_total",
			Help: "Client state store failures",
		},
	)

	GovernorTrackedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gateway_governor_tracked_clients",
			Help: "Client identifiers currently held by the state store",
		},
	)

	GateOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_client_gate_total",
			Help: "Client gate short-circuit responses by reason",
		},
		[]string{"reason"}, // "unidentified", "outdated", "unidentified_flood"
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_http_requests_total",
			Help: "HTTP requests by route, method and status",
		},
		[]string{"route", "method", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_upstream_requests_total",
			Help: "Upstream metadata requests by provider and outcome",
		},
		[]string{"provider", "outcome"}, // "success", "failure", "rejected"
	)

	UpstreamBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gateway_upstream_breaker_state",
			Help: "Circuit breaker state per provider (0=closed, 1=half-open, 2=open)",
		},
		[]string{"provider"},
	)

	TokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_upstream_token_refreshes_total",
			Help: "Upstream credential refreshes by outcome",
		},
		[]string{"outcome"},
	)
)

// RecordHTTPRequest records one served request.
func RecordHTTPRequest(route, method string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}
