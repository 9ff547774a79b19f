// Package identity persists local users, their role sets, and the binding
// between a local user and the external provider's subject id.
//
// The subject-id binding is the join key for everything else in the
// bridge: reconciliation, webhook fan-out, and session establishment all
// start from a subject-id lookup, so user_identities is indexed on both
// columns and each may appear at most once.
//
// Role mutation goes through ReplaceRoles, which locks the user row for
// the duration of the read-modify-write so concurrent reconciliations of
// the same user serialize instead of issuing duplicate writes.
package identity
