package provider

import (
	"context"
	"errors"
)

// ErrExchange marks a failed authorization-code exchange. It is terminal for
// the request that carried the code; callers surface it and never retry.
var ErrExchange = errors.New("authorization code exchange failed")

// Role is a role as reported by the provider
type Role struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ExchangeResult is the outcome of a successful authorization-code exchange
type ExchangeResult struct {
	// SubjectID is the provider's stable unique id for the principal
	SubjectID string
	// Claims holds the verified ID-token claims
	Claims map[string]interface{}
	// RawRoles holds the provider-reported roles at login time, when the
	// caller chose to fetch them alongside the exchange
	RawRoles []Role
}

// Exchanger performs the authorization-code exchange
type Exchanger interface {
	Exchange(ctx context.Context, code string) (*ExchangeResult, error)
}

// Management is the provider's management API surface
type Management interface {
	// GetUserRoles returns the full current role set for a subject
	GetUserRoles(ctx context.Context, subjectID string) ([]Role, error)
	// GetUser returns the provider's user record, including app metadata
	GetUser(ctx context.Context, subjectID string) (map[string]interface{}, error)
	// UpdateUserMetadata merges the given app metadata onto the provider's
	// user record. Best-effort from the caller's point of view.
	UpdateUserMetadata(ctx context.Context, subjectID string, metadata map[string]interface{}) error
}
