package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/idbridge/pkg/observability"
	"github.com/platinummonkey/idbridge/pkg/provider"
)

type scriptedRoles struct {
	results [][]provider.Role
	errs    []error
	calls   int
}

func (s *scriptedRoles) GetUserRoles(ctx context.Context, subjectID string) ([]provider.Role, error) {
	i := s.calls
	s.calls++
	if i >= len(s.results) {
		i = len(s.results) - 1
	}
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	return s.results[i], err
}

func newTestPoller(roles RoleReader) *Poller {
	p := NewPoller(roles, nil, observability.NewLogger(observability.ErrorLevel, nil))
	p.delay = time.Millisecond
	return p
}

func TestPollRoles_ReturnsFirstNonEmptyResult(t *testing.T) {
	roles := &scriptedRoles{results: [][]provider.Role{
		nil,
		nil,
		{{ID: "rol_admin"}},
	}}
	p := newTestPoller(roles)

	got, err := p.PollRoles(context.Background(), "auth0|abc")
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 3, roles.calls, "polling stops as soon as roles appear")
}

func TestPollRoles_ExhaustsAndReturnsEmpty(t *testing.T) {
	roles := &scriptedRoles{results: [][]provider.Role{nil}}
	p := newTestPoller(roles)

	start := time.Now()
	got, err := p.PollRoles(context.Background(), "auth0|abc")
	require.NoError(t, err, "exhaustion is not an error")
	assert.Empty(t, got)
	assert.Equal(t, defaultPollAttempts, roles.calls)
	assert.Less(t, time.Since(start), time.Second, "no delay after the final attempt")
}

func TestPollRoles_AttemptErrorsAreTolerated(t *testing.T) {
	roles := &scriptedRoles{
		results: [][]provider.Role{nil, {{ID: "rol_admin"}}},
		errs:    []error{errors.New("replica lag")},
	}
	p := newTestPoller(roles)

	got, err := p.PollRoles(context.Background(), "auth0|abc")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestPollRoles_CancellationStopsWaiting(t *testing.T) {
	roles := &scriptedRoles{results: [][]provider.Role{nil}}
	p := newTestPoller(roles)
	p.delay = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := p.PollRoles(ctx, "auth0|abc")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 5*time.Second)
}
