// Package session owns the login callback state machine and the Redis
// backed session records.
//
// A request moves Anonymous -> ExchangePending -> Authenticated, or ends
// in ExchangeFailed when the provider rejects the authorization code.
// ExchangeFailed is terminal for the request, the caller is sent back to
// the login entry point and no session is written.
package session
