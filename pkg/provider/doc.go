// Package provider talks to the external OAuth2/OIDC identity provider.
//
// Two surfaces are consumed:
//
//   - the authorization-code exchange (OIDC discovery, code exchange, and
//     ID-token verification via coreos/go-oidc), producing the subject id
//     and claims for a login;
//   - the management API (role reads, user profile reads, and best-effort
//     metadata writes) authenticated with client credentials.
//
// Every call carries a bounded timeout; a timed-out call is reported the
// same way as any other network error so callers can apply their abort
// semantics uniformly.
package provider
