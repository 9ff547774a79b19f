package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/platinummonkey/idbridge/pkg/observability"
)

// statusRecorder captures the response status for logging and metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// requestMiddleware assigns a request id and records logs and metrics for
// every request.
func (s *Server) requestMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		ctx := observability.WithRequestID(r.Context(), requestID)
		ctx = observability.WithLogger(ctx, s.logger)

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		defer observability.RecoverPanic(s.logger, "http "+r.Method+" "+r.URL.Path)
		next.ServeHTTP(recorder, r.WithContext(ctx))

		elapsed := time.Since(start)
		path := routePath(r)
		if s.metrics != nil {
			s.metrics.ObserveHTTPRequest(r.Method, path, recorder.status, elapsed)
		}
		observability.FromContext(ctx).WithFields(map[string]interface{}{
			"method":  r.Method,
			"path":    path,
			"status":  recorder.status,
			"elapsed": elapsed.String(),
		}).Info("request handled")
	})
}

// routePath returns the route template so metrics cardinality stays
// bounded regardless of path parameters.
func routePath(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}
