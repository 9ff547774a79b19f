package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, time.Hour), mr
}

func TestRedisStore_CreateAndGet(t *testing.T) {
	store, _ := newTestStore(t)

	sess := &Session{UserID: 7, SubjectID: "auth0|abc", Email: "jo@example.com", State: Authenticated}
	require.NoError(t, store.Create(context.Background(), sess))
	require.NotEmpty(t, sess.ID)

	got, err := store.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.UserID)
	assert.Equal(t, "auth0|abc", got.SubjectID)
	assert.Equal(t, Authenticated, got.State)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestRedisStore_GetMissing(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Get(context.Background(), "no-such-session")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisStore_Expiry(t *testing.T) {
	store, mr := newTestStore(t)

	sess := &Session{UserID: 7, State: Authenticated}
	require.NoError(t, store.Create(context.Background(), sess))

	mr.FastForward(2 * time.Hour)

	_, err := store.Get(context.Background(), sess.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisStore_Delete(t *testing.T) {
	store, _ := newTestStore(t)

	sess := &Session{UserID: 7, State: Authenticated}
	require.NoError(t, store.Create(context.Background(), sess))
	require.NoError(t, store.Delete(context.Background(), sess.ID))

	_, err := store.Get(context.Background(), sess.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	assert.NoError(t, store.Delete(context.Background(), sess.ID), "double delete is fine")
}
