// Package reconcile converges a user's managed local roles onto the
// provider's authoritative role set.
//
// Every trigger performs a full resync rather than applying the delta
// the trigger described. The provider is re-read, the target set is
// recomputed, and only the difference is written. Duplicate, reordered,
// or concurrent triggers for the same subject therefore converge to the
// same final state.
//
// Local roles outside the configured mapping are never touched. Other
// subsystems may grant them freely without the sync loop revoking them.
package reconcile
