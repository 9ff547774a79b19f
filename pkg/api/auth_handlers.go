package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/platinummonkey/idbridge/pkg/observability"
	"github.com/platinummonkey/idbridge/pkg/session"
)

const (
	stateCookie       = "idbridge_state"
	destinationCookie = "idbridge_destination"
	stateCookieMaxAge = 600
)

// handleLogin starts the authorization-code flow. The caller may pass a
// relative destination to return to after login.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	destination := r.URL.Query().Get("destination")
	if _, err := session.ResolveDestination(destination); err != nil {
		http.Error(w, "invalid destination", http.StatusBadRequest)
		return
	}

	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   stateCookieMaxAge,
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	if destination != "" {
		http.SetCookie(w, &http.Cookie{
			Name:     destinationCookie,
			Value:    destination,
			Path:     "/",
			MaxAge:   stateCookieMaxAge,
			HttpOnly: true,
			Secure:   s.cfg.CookieSecure,
			SameSite: http.SameSiteLaxMode,
		})
	}

	http.Redirect(w, r, s.auth.AuthCodeURL(state), http.StatusFound)
}

// handleCallback completes the exchange and binds the session
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	logger := observability.FromContext(r.Context())

	state := r.URL.Query().Get("state")
	stateC, err := r.Cookie(stateCookie)
	if err != nil || state == "" || stateC.Value != state {
		logger.Warn("callback state mismatch")
		s.redirectToLogin(w, r)
		return
	}
	clearCookie(w, stateCookie, s.cfg.CookieSecure)

	destination := ""
	if destC, err := r.Cookie(destinationCookie); err == nil {
		destination = destC.Value
		clearCookie(w, destinationCookie, s.cfg.CookieSecure)
	}

	result, err := s.establisher.Establish(r.Context(), r.URL.Query().Get("code"), destination, s.sessionID(r))
	if errors.Is(err, session.ErrInvalidDestination) {
		http.Error(w, "invalid destination", http.StatusBadRequest)
		return
	}
	if err != nil {
		logger.WithError(err).Warn("login failed")
		s.redirectToLogin(w, r)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.SessionCookieName,
		Value:    result.Session.ID,
		Path:     "/",
		MaxAge:   int(s.cfg.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, result.RedirectPath, http.StatusFound)
}

// handleLogout discards the session and returns the caller to the root
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if id := s.sessionID(r); id != "" {
		if err := s.sessions.Delete(r.Context(), id); err != nil {
			observability.FromContext(r.Context()).WithError(err).Warn("failed to delete session on logout")
		}
	}
	clearCookie(w, s.cfg.SessionCookieName, s.cfg.CookieSecure)
	http.Redirect(w, r, "/", http.StatusFound)
}

// sessionID returns the session id from the request cookie, if any
func (s *Server) sessionID(r *http.Request) string {
	c, err := r.Cookie(s.cfg.SessionCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

func (s *Server) redirectToLogin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/auth/login", http.StatusFound)
}

func clearCookie(w http.ResponseWriter, name string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
	})
}
