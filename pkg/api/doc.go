// Package api provides the HTTP surface of the identity bridge.
//
// # Overview
//
// The API is built on gorilla/mux and exposes four groups of routes:
//
//   - Login flow: /auth/login redirects to the provider, /auth/callback
//     completes the code exchange and establishes the session,
//     /auth/logout tears the session down.
//   - Webhook ingress: POST /webhooks/provider accepts provider audit-log
//     batches, normalizes them, and feeds the reconciliation bus.
//   - Registration check: GET /registration/complete reports whether the
//     provider considers the current user fully registered, triggering a
//     role sync along the way.
//   - Health and metrics are served separately, see the observability
//     package.
//
// All handlers run behind request-id, logging, and metrics middleware.
package api
