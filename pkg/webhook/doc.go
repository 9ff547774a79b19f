// Package webhook normalizes provider audit-log deliveries into the
// canonical role-change events the bus understands.
//
// The provider's descriptions form a closed vocabulary. Anything not in
// the table is dropped, counted, and otherwise ignored, since audit logs
// carry far more event kinds than role membership changes.
package webhook
