// Package resolver turns a verified external identity into exactly one
// local user.
//
// Resolution is idempotent: a subject already bound resolves to its
// existing user, an unbound subject whose email matches an existing user
// is merged onto that user, and only a subject with no match provisions a
// new account. Running resolution twice for the same identity never
// creates a second user.
package resolver
