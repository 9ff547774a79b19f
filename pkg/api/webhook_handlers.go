package api

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/platinummonkey/idbridge/pkg/observability"
	"github.com/platinummonkey/idbridge/pkg/webhook"
)

// handleWebhook ingests a provider audit-log batch. The response is "ok"
// for any authenticated delivery. Normalization drops are per event and
// the provider retries whole batches, so a partial failure must not make
// it re-deliver everything.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	logger := observability.FromContext(r.Context())

	if !s.webhookAuthorized(r) {
		if s.metrics != nil {
			s.metrics.WebhookAuthFailures.Inc()
		}
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var batch []webhook.RawEvent
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		logger.WithError(err).Warn("failed to decode webhook batch")
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	for _, event := range s.normalizer.Normalize(batch) {
		if err := s.bus.PublishRole(r.Context(), event); err != nil {
			logger.WithError(err).WithField("kind", string(event.Kind)).
				Error("failed to dispatch role event")
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode("ok")
}

// webhookAuthorized compares the bearer token in constant time
func (s *Server) webhookAuthorized(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.webhookCfg.Token)) == 1
}
