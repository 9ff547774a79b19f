package session

import (
	"errors"
	"strings"
	"time"
)

// State is a phase of the login callback state machine
type State string

const (
	Anonymous       State = "anonymous"
	ExchangePending State = "exchange_pending"
	Authenticated   State = "authenticated"
	ExchangeFailed  State = "exchange_failed"
)

// ErrInvalidDestination indicates a post-login destination that could be
// abused as an open redirect.
var ErrInvalidDestination = errors.New("invalid post-login destination")

// ErrSessionNotFound indicates no session exists for the given id
var ErrSessionNotFound = errors.New("session not found")

// Session is an authenticated browser session
type Session struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	SubjectID string    `json:"subject_id"`
	Email     string    `json:"email"`
	State     State     `json:"state"`
	CreatedAt time.Time `json:"created_at"`
}

// ResolveDestination validates and canonicalizes the caller-supplied
// post-login destination. Absolute URLs are rejected, only site-relative
// paths survive. Empty input falls back to the site root.
func ResolveDestination(destination string) (string, error) {
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return "/", nil
	}

	lower := strings.ToLower(destination)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return "", ErrInvalidDestination
	}
	// Protocol-relative URLs redirect off-site just as well.
	if strings.HasPrefix(destination, "//") {
		return "", ErrInvalidDestination
	}

	if !strings.HasPrefix(destination, "/") {
		destination = "/" + destination
	}
	return destination, nil
}
