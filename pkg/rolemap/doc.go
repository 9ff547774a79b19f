// Package rolemap loads the provider-role to local-role mapping from a
// YAML file and keeps it hot-reloadable.
//
// Only roles named in the mapping are managed. Reconciliation never
// touches a local role outside the managed set, so operators can grant
// out-of-band roles without the sync loop revoking them.
package rolemap
