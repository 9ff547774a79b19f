package session

import (
	"context"
	"fmt"

	"github.com/platinummonkey/idbridge/pkg/events"
	"github.com/platinummonkey/idbridge/pkg/identity"
	"github.com/platinummonkey/idbridge/pkg/observability"
	"github.com/platinummonkey/idbridge/pkg/provider"
)

// UserResolver resolves a verified identity to a local user
type UserResolver interface {
	Resolve(ctx context.Context, subjectID string, claims map[string]interface{}) (*identity.User, error)
}

// RoleReader fetches the provider's current roles for a subject
type RoleReader interface {
	GetUserRoles(ctx context.Context, subjectID string) ([]provider.Role, error)
}

// Publisher dispatches login events to subscribers
type Publisher interface {
	PublishLogin(ctx context.Context, event *events.LoginEvent) error
}

// Result is the outcome of a successful establishment
type Result struct {
	Session      *Session
	RedirectPath string
}

// Establisher drives the callback state machine end to end
type Establisher struct {
	exchanger provider.Exchanger
	resolver  UserResolver
	roles     RoleReader
	store     *RedisStore
	bus       Publisher
	metrics   *observability.Metrics
	logger    *observability.Logger
}

// NewEstablisher wires the establisher. roles may be nil when the
// management API is not configured.
func NewEstablisher(exchanger provider.Exchanger, res UserResolver, roles RoleReader, store *RedisStore, bus Publisher, metrics *observability.Metrics, logger *observability.Logger) *Establisher {
	return &Establisher{
		exchanger: exchanger,
		resolver:  res,
		roles:     roles,
		store:     store,
		bus:       bus,
		metrics:   metrics,
		logger:    logger,
	}
}

// Establish exchanges the authorization code, resolves the user,
// publishes the login event, and writes the authenticated session.
// staleSessionID, when non-empty, names a pre-existing session to discard
// before the exchange runs.
func (e *Establisher) Establish(ctx context.Context, code, destination, staleSessionID string) (*Result, error) {
	redirect, err := ResolveDestination(destination)
	if err != nil {
		e.count("invalid_destination")
		return nil, err
	}

	if staleSessionID != "" {
		if err := e.store.Delete(ctx, staleSessionID); err != nil {
			e.logger.WithError(err).Warn("failed to discard stale session")
		}
	}

	exchange, err := e.exchanger.Exchange(ctx, code)
	if err != nil {
		e.count("exchange_failed")
		return nil, fmt.Errorf("session establishment failed: %w", err)
	}

	logger := e.logger.WithSubject(exchange.SubjectID)

	user, err := e.resolver.Resolve(ctx, exchange.SubjectID, exchange.Claims)
	if err != nil {
		e.count("resolve_failed")
		return nil, fmt.Errorf("failed to resolve user for login: %w", err)
	}

	roles := exchange.RawRoles
	if len(roles) == 0 && e.roles != nil {
		roles, err = e.roles.GetUserRoles(ctx, exchange.SubjectID)
		if err != nil {
			// Role sync catches up asynchronously, login proceeds.
			logger.WithError(err).Warn("failed to fetch roles during login")
			roles = nil
		}
	}

	event := &events.LoginEvent{
		SubjectID:   exchange.SubjectID,
		Claims:      exchange.Claims,
		Roles:       roles,
		Destination: redirect,
	}
	if err := e.bus.PublishLogin(ctx, event); err != nil {
		e.count("subscriber_failed")
		return nil, fmt.Errorf("login event subscriber failed: %w", err)
	}

	sess := &Session{
		UserID:    user.ID,
		SubjectID: exchange.SubjectID,
		Email:     user.Email,
		State:     Authenticated,
	}
	if err := e.store.Create(ctx, sess); err != nil {
		e.count("session_store_failed")
		return nil, err
	}

	if event.RedirectPath != "" {
		redirect = event.RedirectPath
	}

	e.count("success")
	logger.WithFields(map[string]interface{}{
		"user_id":  user.ID,
		"redirect": redirect,
	}).Info("session established")

	return &Result{Session: sess, RedirectPath: redirect}, nil
}

func (e *Establisher) count(result string) {
	if e.metrics == nil {
		return
	}
	e.metrics.LoginsTotal.WithLabelValues(result).Inc()
}
