// Package observability provides structured logging, Prometheus metrics,
// health checks, and graceful shutdown for the identity bridge.
//
// # Structured Logging
//
// Create logger:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("subject", sub).Info("reconciled roles")
//
// # Prometheus Metrics
//
// Initialize metrics:
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.ReconciliationsTotal.WithLabelValues("applied").Inc()
//
// # Health Checks
//
// Configure health checker:
//
//	checker := observability.NewHealthChecker(db, redisClient)
//	mux.HandleFunc("/healthz", checker.Liveness)
//	mux.HandleFunc("/readyz", checker.Readiness)
//
// # Related Packages
//
//   - pkg/config: observability configuration
//   - pkg/api: request logging and metrics middleware
package observability
