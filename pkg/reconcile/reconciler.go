package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/platinummonkey/idbridge/pkg/identity"
	"github.com/platinummonkey/idbridge/pkg/observability"
	"github.com/platinummonkey/idbridge/pkg/provider"
	"github.com/platinummonkey/idbridge/pkg/rolemap"
)

// RoleStore is the identity persistence surface reconciliation needs
type RoleStore interface {
	UserBySubject(ctx context.Context, subjectID string) (*identity.User, error)
	Roles(ctx context.Context, userID int64) ([]string, error)
	ReplaceRoles(ctx context.Context, userID int64, add, remove []string) error
}

// RoleReader fetches the provider's current roles for a subject
type RoleReader interface {
	GetUserRoles(ctx context.Context, subjectID string) ([]provider.Role, error)
}

// Reconciler performs full-resync role reconciliation
type Reconciler struct {
	store   RoleStore
	roles   RoleReader
	mapping rolemap.Source
	group   singleflight.Group
	metrics *observability.Metrics
	logger  *observability.Logger
}

// NewReconciler wires a reconciler
func NewReconciler(store RoleStore, roles RoleReader, mapping rolemap.Source, metrics *observability.Metrics, logger *observability.Logger) *Reconciler {
	return &Reconciler{
		store:   store,
		roles:   roles,
		mapping: mapping,
		metrics: metrics,
		logger:  logger,
	}
}

// Reconcile converges the subject's managed local roles onto the
// provider's role set. It reports whether anything changed.
//
// A subject with no local user is not an error. Webhook deliveries
// routinely mention principals that were never provisioned here.
func (r *Reconciler) Reconcile(ctx context.Context, subjectID string) (bool, error) {
	type outcome struct {
		changed bool
	}

	// Concurrent triggers for one subject collapse into a single pass.
	// The result is identical either way, this only avoids duplicate
	// provider reads and wasted writes.
	v, err, _ := r.group.Do(subjectID, func() (interface{}, error) {
		changed, err := r.reconcile(ctx, subjectID)
		return outcome{changed: changed}, err
	})
	if err != nil {
		return false, err
	}
	return v.(outcome).changed, nil
}

func (r *Reconciler) reconcile(ctx context.Context, subjectID string) (bool, error) {
	start := time.Now()
	logger := r.logger.WithSubject(subjectID)

	user, err := r.store.UserBySubject(ctx, subjectID)
	if errors.Is(err, identity.ErrNotFound) {
		r.count("user_missing")
		logger.Debug("skipping reconciliation for subject with no local user")
		return false, nil
	}
	if err != nil {
		r.count("store_error")
		return false, err
	}

	providerRoles, err := r.roles.GetUserRoles(ctx, subjectID)
	if err != nil {
		r.count("fetch_failed")
		return false, fmt.Errorf("failed to fetch provider roles: %w", err)
	}

	mapping := r.mapping.Current()

	providerIDs := make([]string, 0, len(providerRoles))
	for _, role := range providerRoles {
		providerIDs = append(providerIDs, role.ID)
	}
	target := toSet(mapping.TargetRoles(providerIDs))
	managed := toSet(mapping.ManagedRoles())

	current, err := r.store.Roles(ctx, user.ID)
	if err != nil {
		r.count("store_error")
		return false, err
	}

	var add, remove []string
	currentSet := make(map[string]struct{}, len(current))
	for _, role := range current {
		currentSet[role] = struct{}{}
		_, isManaged := managed[role]
		_, wanted := target[role]
		if isManaged && !wanted {
			remove = append(remove, role)
		}
	}
	for role := range target {
		if _, has := currentSet[role]; !has {
			add = append(add, role)
		}
	}

	if len(add) == 0 && len(remove) == 0 {
		r.count("no_change")
		r.observe(start)
		return false, nil
	}

	if err := r.store.ReplaceRoles(ctx, user.ID, add, remove); err != nil {
		r.count("write_failed")
		return false, err
	}

	r.count("changed")
	r.observe(start)
	if r.metrics != nil {
		r.metrics.RolesAddedTotal.Add(float64(len(add)))
		r.metrics.RolesRemovedTotal.Add(float64(len(remove)))
	}
	logger.WithFields(map[string]interface{}{
		"user_id": user.ID,
		"added":   len(add),
		"removed": len(remove),
	}).Info("reconciled user roles")

	return true, nil
}

func (r *Reconciler) count(result string) {
	if r.metrics == nil {
		return
	}
	r.metrics.ReconciliationsTotal.WithLabelValues(result).Inc()
}

func (r *Reconciler) observe(start time.Time) {
	if r.metrics == nil {
		return
	}
	r.metrics.ReconciliationDuration.Observe(time.Since(start).Seconds())
}

func toSet(roles []string) map[string]struct{} {
	set := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		set[role] = struct{}{}
	}
	return set
}
