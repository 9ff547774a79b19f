package reconcile

import (
	"context"
	"time"

	"github.com/platinummonkey/idbridge/pkg/observability"
	"github.com/platinummonkey/idbridge/pkg/provider"
)

const (
	defaultPollAttempts = 5
	defaultPollDelay    = 2 * time.Second
)

// Poller re-reads a subject's provider roles until they show up.
//
// Registration completion races replica propagation in the provider: the
// roles may have been assigned an instant before the check runs. The
// poller absorbs that lag. Exhausting all attempts is not an error, the
// caller treats an empty result as zero managed roles.
type Poller struct {
	roles    RoleReader
	attempts int
	delay    time.Duration
	metrics  *observability.Metrics
	logger   *observability.Logger
}

// NewPoller creates a poller with the standard attempt budget
func NewPoller(roles RoleReader, metrics *observability.Metrics, logger *observability.Logger) *Poller {
	return &Poller{
		roles:    roles,
		attempts: defaultPollAttempts,
		delay:    defaultPollDelay,
		metrics:  metrics,
		logger:   logger,
	}
}

// PollRoles fetches the subject's roles, retrying on empty results.
// It returns the first non-empty result, or whatever the last attempt
// yielded once attempts run out. Cancellation stops the wait immediately.
func (p *Poller) PollRoles(ctx context.Context, subjectID string) ([]provider.Role, error) {
	var last []provider.Role

	for attempt := 1; attempt <= p.attempts; attempt++ {
		if p.metrics != nil {
			p.metrics.PollerAttemptsTotal.Inc()
		}

		roles, err := p.roles.GetUserRoles(ctx, subjectID)
		if err != nil {
			p.logger.WithSubject(subjectID).WithError(err).
				Warnf("role poll attempt %d/%d failed", attempt, p.attempts)
		} else {
			last = roles
			if len(roles) > 0 {
				return roles, nil
			}
		}

		if attempt == p.attempts {
			break
		}

		timer := time.NewTimer(p.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return last, ctx.Err()
		case <-timer.C:
		}
	}

	if p.metrics != nil {
		p.metrics.PollerExhausted.Inc()
	}
	return last, nil
}
