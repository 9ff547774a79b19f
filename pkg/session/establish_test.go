package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/idbridge/pkg/events"
	"github.com/platinummonkey/idbridge/pkg/identity"
	"github.com/platinummonkey/idbridge/pkg/observability"
	"github.com/platinummonkey/idbridge/pkg/provider"
)

type fakeExchanger struct {
	result *provider.ExchangeResult
	err    error
}

func (f *fakeExchanger) Exchange(ctx context.Context, code string) (*provider.ExchangeResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeResolver struct {
	user *identity.User
	err  error
}

func (f *fakeResolver) Resolve(ctx context.Context, subjectID string, claims map[string]interface{}) (*identity.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.user, nil
}

type fakeRoleReader struct {
	roles []provider.Role
	err   error
}

func (f *fakeRoleReader) GetUserRoles(ctx context.Context, subjectID string) ([]provider.Role, error) {
	return f.roles, f.err
}

func newTestEstablisher(t *testing.T, ex *fakeExchanger, res *fakeResolver, roles RoleReader, bus Publisher) (*Establisher, *RedisStore) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	store := NewRedisStore(client, time.Hour)

	if bus == nil {
		bus = events.NewBus()
	}
	logger := observability.NewLogger(observability.ErrorLevel, nil)
	return NewEstablisher(ex, res, roles, store, bus, nil, logger), store
}

func goodExchange() *fakeExchanger {
	return &fakeExchanger{result: &provider.ExchangeResult{
		SubjectID: "auth0|abc",
		Claims:    map[string]interface{}{"email": "jo@example.com"},
	}}
}

func goodResolver() *fakeResolver {
	return &fakeResolver{user: &identity.User{ID: 7, Email: "jo@example.com"}}
}

func TestEstablish_Success(t *testing.T) {
	e, store := newTestEstablisher(t, goodExchange(), goodResolver(), nil, nil)

	result, err := e.Establish(context.Background(), "code", "/account", "")
	require.NoError(t, err)

	assert.Equal(t, "/account", result.RedirectPath)
	assert.Equal(t, Authenticated, result.Session.State)
	assert.Equal(t, int64(7), result.Session.UserID)

	stored, err := store.Get(context.Background(), result.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, "auth0|abc", stored.SubjectID)
}

func TestEstablish_InvalidDestination(t *testing.T) {
	e, _ := newTestEstablisher(t, goodExchange(), goodResolver(), nil, nil)

	_, err := e.Establish(context.Background(), "code", "https://evil.example.com", "")
	assert.ErrorIs(t, err, ErrInvalidDestination)
}

func TestEstablish_ExchangeFailedIsTerminal(t *testing.T) {
	ex := &fakeExchanger{err: provider.ErrExchange}
	e, _ := newTestEstablisher(t, ex, goodResolver(), nil, nil)

	_, err := e.Establish(context.Background(), "bad-code", "", "")
	assert.ErrorIs(t, err, provider.ErrExchange)
}

func TestEstablish_SubscriberSetsRedirect(t *testing.T) {
	bus := events.NewBus()
	bus.SubscribeLogin(func(ctx context.Context, e *events.LoginEvent) error {
		e.RedirectPath = "/user/profile/edit"
		return nil
	})
	e, _ := newTestEstablisher(t, goodExchange(), goodResolver(), nil, bus)

	result, err := e.Establish(context.Background(), "code", "/account", "")
	require.NoError(t, err)
	assert.Equal(t, "/user/profile/edit", result.RedirectPath, "subscriber redirect overrides the requested destination")
}

func TestEstablish_SubscriberErrorFailsLogin(t *testing.T) {
	bus := events.NewBus()
	boom := errors.New("subscriber exploded")
	bus.SubscribeLogin(func(ctx context.Context, e *events.LoginEvent) error { return boom })
	e, _ := newTestEstablisher(t, goodExchange(), goodResolver(), nil, bus)

	_, err := e.Establish(context.Background(), "code", "", "")
	assert.ErrorIs(t, err, boom)
}

func TestEstablish_RoleFetchFailureIsNotFatal(t *testing.T) {
	roles := &fakeRoleReader{err: errors.New("provider down")}
	bus := events.NewBus()
	var seenRoles []provider.Role
	bus.SubscribeLogin(func(ctx context.Context, e *events.LoginEvent) error {
		seenRoles = e.Roles
		return nil
	})
	e, _ := newTestEstablisher(t, goodExchange(), goodResolver(), roles, bus)

	result, err := e.Establish(context.Background(), "code", "", "")
	require.NoError(t, err)
	assert.Equal(t, "/", result.RedirectPath)
	assert.Empty(t, seenRoles)
}

func TestEstablish_DiscardsStaleSession(t *testing.T) {
	e, store := newTestEstablisher(t, goodExchange(), goodResolver(), nil, nil)

	stale := &Session{UserID: 99, State: Authenticated}
	require.NoError(t, store.Create(context.Background(), stale))

	_, err := e.Establish(context.Background(), "code", "", stale.ID)
	require.NoError(t, err)

	_, err = store.Get(context.Background(), stale.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
