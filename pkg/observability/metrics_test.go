package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewMetrics_RegistersAll(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	m.LoginsTotal.WithLabelValues("success").Inc()
	m.ReconciliationsTotal.WithLabelValues("applied").Inc()
	m.WebhookEventsTotal.WithLabelValues("user_added_to_role").Inc()
	m.ObserveHTTPRequest("GET", "/auth/callback", 302, 25*time.Millisecond)
	m.ObserveProviderRequest("get_user_roles", "ok", 100*time.Millisecond)

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}

	for _, want := range []string{
		"idbridge_logins_total",
		"idbridge_reconciliations_total",
		"idbridge_webhook_events_total",
		"idbridge_http_requests_total",
		"idbridge_http_request_duration_seconds",
		"idbridge_provider_requests_total",
		"idbridge_provider_request_duration_seconds",
	} {
		if !names[want] {
			t.Errorf("expected metric %s to be registered", want)
		}
	}
}

func TestNewMetrics_DoubleRegisterPanics(t *testing.T) {
	registry := prometheus.NewRegistry()
	NewMetrics(registry)

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	NewMetrics(registry)
}
