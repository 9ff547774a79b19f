package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Login metrics
	LoginsTotal *prometheus.CounterVec

	// Reconciliation metrics
	ReconciliationsTotal   *prometheus.CounterVec
	ReconciliationDuration prometheus.Histogram
	RolesAddedTotal        prometheus.Counter
	RolesRemovedTotal      prometheus.Counter

	// Webhook metrics
	WebhookBatchesTotal  prometheus.Counter
	WebhookEventsTotal   *prometheus.CounterVec
	WebhookDroppedTotal  prometheus.Counter
	WebhookAuthFailures  prometheus.Counter

	// Provider metrics
	ProviderRequestsTotal   *prometheus.CounterVec
	ProviderRequestDuration *prometheus.HistogramVec

	// Poller metrics
	PollerAttemptsTotal prometheus.Counter
	PollerExhausted     prometheus.Counter

	// Store metrics
	IdentityLookupsTotal *prometheus.CounterVec
	UsersProvisioned     prometheus.Counter
	UsersMerged          prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "idbridge_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "idbridge_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "idbridge_logins_total",
				Help: "Total number of login callback attempts by result",
			},
			[]string{"result"},
		),

		ReconciliationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "idbridge_reconciliations_total",
				Help: "Total number of role reconciliations by result",
			},
			[]string{"result"},
		),
		ReconciliationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "idbridge_reconciliation_duration_seconds",
				Help:    "Role reconciliation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		RolesAddedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "idbridge_roles_added_total",
				Help: "Total number of local roles granted by reconciliation",
			},
		),
		RolesRemovedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "idbridge_roles_removed_total",
				Help: "Total number of local roles revoked by reconciliation",
			},
		),

		WebhookBatchesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "idbridge_webhook_batches_total",
				Help: "Total number of webhook batches received",
			},
		),
		WebhookEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "idbridge_webhook_events_total",
				Help: "Total number of recognized webhook events by canonical type",
			},
			[]string{"type"},
		),
		WebhookDroppedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "idbridge_webhook_dropped_total",
				Help: "Total number of webhook events dropped as unrecognized",
			},
		),
		WebhookAuthFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "idbridge_webhook_auth_failures_total",
				Help: "Total number of webhook requests rejected for bad credentials",
			},
		),

		ProviderRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "idbridge_provider_requests_total",
				Help: "Total number of identity provider API requests",
			},
			[]string{"operation", "status"},
		),
		ProviderRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "idbridge_provider_request_duration_seconds",
				Help:    "Identity provider API request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		PollerAttemptsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "idbridge_poller_attempts_total",
				Help: "Total number of role poll attempts",
			},
		),
		PollerExhausted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "idbridge_poller_exhausted_total",
				Help: "Total number of polls that exhausted all attempts without roles",
			},
		),

		IdentityLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "idbridge_identity_lookups_total",
				Help: "Total number of identity lookups by outcome",
			},
			[]string{"outcome"},
		),
		UsersProvisioned: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "idbridge_users_provisioned_total",
				Help: "Total number of local users created from provider logins",
			},
		),
		UsersMerged: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "idbridge_users_merged_total",
				Help: "Total number of existing local users bound to a provider subject",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.LoginsTotal,
		m.ReconciliationsTotal,
		m.ReconciliationDuration,
		m.RolesAddedTotal,
		m.RolesRemovedTotal,
		m.WebhookBatchesTotal,
		m.WebhookEventsTotal,
		m.WebhookDroppedTotal,
		m.WebhookAuthFailures,
		m.ProviderRequestsTotal,
		m.ProviderRequestDuration,
		m.PollerAttemptsTotal,
		m.PollerExhausted,
		m.IdentityLookupsTotal,
		m.UsersProvisioned,
		m.UsersMerged,
	)

	return m
}

// Handler returns an HTTP handler for the metrics endpoint
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// ObserveHTTPRequest records metrics for a completed HTTP request
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// ObserveProviderRequest records metrics for a completed provider API call
func (m *Metrics) ObserveProviderRequest(operation, status string, duration time.Duration) {
	m.ProviderRequestsTotal.WithLabelValues(operation, status).Inc()
	m.ProviderRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
