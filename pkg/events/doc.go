// Package events is the in-process event bus connecting login, webhook,
// and profile flows to reconciliation.
//
// Dispatch is synchronous and in subscription order. Handlers run on the
// publisher's goroutine and may mutate pointer-typed events, which is how
// login subscribers rewrite the post-login redirect path.
package events
