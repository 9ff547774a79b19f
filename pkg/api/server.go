package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/idbridge/pkg/config"
	"github.com/platinummonkey/idbridge/pkg/events"
	"github.com/platinummonkey/idbridge/pkg/observability"
	"github.com/platinummonkey/idbridge/pkg/provider"
	"github.com/platinummonkey/idbridge/pkg/session"
	"github.com/platinummonkey/idbridge/pkg/webhook"
)

// AuthStarter builds the provider authorization URL for a login attempt
type AuthStarter interface {
	AuthCodeURL(state string) string
}

// SessionEstablisher runs the callback state machine
type SessionEstablisher interface {
	Establish(ctx context.Context, code, destination, staleSessionID string) (*session.Result, error)
}

// SessionStore is the session persistence surface the handlers need
type SessionStore interface {
	Get(ctx context.Context, id string) (*session.Session, error)
	Delete(ctx context.Context, id string) error
}

// Server is the identity bridge HTTP server
type Server struct {
	router      *mux.Router
	auth        AuthStarter
	establisher SessionEstablisher
	sessions    SessionStore
	management  provider.Management
	normalizer  *webhook.Normalizer
	bus         *events.Bus
	cfg         config.ServerConfig
	webhookCfg  config.WebhookConfig
	metrics     *observability.Metrics
	logger      *observability.Logger
}

// NewServer creates the API server and registers all routes
func NewServer(
	auth AuthStarter,
	establisher SessionEstablisher,
	sessions SessionStore,
	management provider.Management,
	normalizer *webhook.Normalizer,
	bus *events.Bus,
	cfg config.ServerConfig,
	webhookCfg config.WebhookConfig,
	metrics *observability.Metrics,
	logger *observability.Logger,
) *Server {
	s := &Server{
		router:      mux.NewRouter(),
		auth:        auth,
		establisher: establisher,
		sessions:    sessions,
		management:  management,
		normalizer:  normalizer,
		bus:         bus,
		cfg:         cfg,
		webhookCfg:  webhookCfg,
		metrics:     metrics,
		logger:      logger,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.Use(s.requestMiddleware)

	// Login flow
	s.router.HandleFunc("/auth/login", s.handleLogin).Methods("GET")
	s.router.HandleFunc("/auth/callback", s.handleCallback).Methods("GET")
	s.router.HandleFunc("/auth/logout", s.handleLogout).Methods("GET")

	// Webhook ingress
	s.router.HandleFunc("/webhooks/provider", s.handleWebhook).Methods("POST")

	// Registration completion check
	s.router.HandleFunc("/registration/complete", s.handleRegistrationComplete).Methods("GET")
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
