package api

import (
	"errors"
	"net/http"

	"github.com/platinummonkey/idbridge/pkg/events"
	"github.com/platinummonkey/idbridge/pkg/observability"
	"github.com/platinummonkey/idbridge/pkg/session"
)

// handleRegistrationComplete reports whether the provider considers the
// current user's registration finished. A positive answer also triggers
// a role sync, since the roles granted at registration time may still be
// propagating inside the provider.
//
// The body is a bare "ok" or "no", the caller is a frontend poll loop.
func (s *Server) handleRegistrationComplete(w http.ResponseWriter, r *http.Request) {
	logger := observability.FromContext(r.Context())

	sess, err := s.currentSession(r)
	if err != nil {
		http.Redirect(w, r, "/auth/login", http.StatusFound)
		return
	}

	user, err := s.management.GetUser(r.Context(), sess.SubjectID)
	if err != nil {
		logger.WithError(err).WithSubject(sess.SubjectID).Warn("failed to fetch provider user for registration check")
		writePlain(w, "no")
		return
	}

	if !registrationComplete(user) {
		writePlain(w, "no")
		return
	}

	err = s.bus.PublishUserUpdated(r.Context(), events.UserUpdatedEvent{
		SubjectID: sess.SubjectID,
		Profile:   user,
	})
	if err != nil {
		logger.WithError(err).WithSubject(sess.SubjectID).Warn("registration-complete role sync failed")
		writePlain(w, "no")
		return
	}

	writePlain(w, "ok")
}

// currentSession loads the authenticated session for the request
func (s *Server) currentSession(r *http.Request) (*session.Session, error) {
	id := s.sessionID(r)
	if id == "" {
		return nil, session.ErrSessionNotFound
	}
	sess, err := s.sessions.Get(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if sess.State != session.Authenticated {
		return nil, errors.New("session not authenticated")
	}
	return sess, nil
}

func registrationComplete(user map[string]interface{}) bool {
	md, ok := user["app_metadata"].(map[string]interface{})
	if !ok {
		return false
	}
	_, present := md["registration_complete"]
	return present
}

func writePlain(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(body))
}
