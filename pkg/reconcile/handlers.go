package reconcile

import (
	"context"
	"time"

	"github.com/platinummonkey/idbridge/pkg/async"
	"github.com/platinummonkey/idbridge/pkg/events"
	"github.com/platinummonkey/idbridge/pkg/observability"
)

// Subscribe wires reconciliation to every trigger on the bus.
//
// Login triggers reconcile in the background so the login response never
// waits on the provider. Registration-completion triggers poll first,
// since role assignment may still be propagating inside the provider.
// Webhook triggers reconcile each listed subject and swallow per-subject
// failures, the ingress endpoint acknowledges the batch regardless.
func Subscribe(bus *events.Bus, rec *Reconciler, poller *Poller, logger *observability.Logger) {
	bus.SubscribeLogin(func(_ context.Context, e *events.LoginEvent) error {
		subjectID := e.SubjectID
		async.SafeGo(context.Background(), time.Minute, "post-login reconcile", func(ctx context.Context) error {
			_, err := rec.Reconcile(ctx, subjectID)
			return err
		})
		return nil
	})

	bus.SubscribeUserUpdated(func(ctx context.Context, e events.UserUpdatedEvent) error {
		if poller != nil {
			if _, err := poller.PollRoles(ctx, e.SubjectID); err != nil {
				return err
			}
		}
		_, err := rec.Reconcile(ctx, e.SubjectID)
		return err
	})

	bus.SubscribeRole(func(ctx context.Context, e events.RoleEvent) error {
		for _, subjectID := range e.SubjectIDs {
			if _, err := rec.Reconcile(ctx, subjectID); err != nil {
				logger.WithSubject(subjectID).WithError(err).
					WithField("kind", string(e.Kind)).
					Error("webhook-triggered reconciliation failed")
			}
		}
		return nil
	})
}
