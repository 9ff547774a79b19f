package identity

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachedStore_UserBySubjectHitsCacheOnSecondLookup(t *testing.T) {
	store, mock := newMockStore(t)
	cached, err := NewCachedStore(store, 8)
	require.NoError(t, err)

	now := time.Now()
	mock.ExpectQuery(`FROM users u`).
		WithArgs("auth0|abc").
		WillReturnRows(userRows(User{ID: 7, Email: "jo@example.com", CreatedAt: now, UpdatedAt: now}))

	u1, err := cached.UserBySubject(context.Background(), "auth0|abc")
	require.NoError(t, err)
	u2, err := cached.UserBySubject(context.Background(), "auth0|abc")
	require.NoError(t, err)

	assert.Equal(t, u1.ID, u2.ID)
	assert.NoError(t, mock.ExpectationsWereMet(), "second lookup must not reach the database")
}

func TestCachedStore_BindSubjectInvalidates(t *testing.T) {
	store, mock := newMockStore(t)
	cached, err := NewCachedStore(store, 8)
	require.NoError(t, err)

	now := time.Now()
	mock.ExpectQuery(`FROM users u`).
		WithArgs("auth0|abc").
		WillReturnRows(userRows(User{ID: 7, CreatedAt: now, UpdatedAt: now}))

	_, err = cached.UserBySubject(context.Background(), "auth0|abc")
	require.NoError(t, err)

	mock.ExpectExec(`INSERT INTO user_identities`).
		WithArgs("auth0|abc", int64(9)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, cached.BindSubject(context.Background(), "auth0|abc", 9))

	mock.ExpectQuery(`FROM users u`).
		WithArgs("auth0|abc").
		WillReturnRows(userRows(User{ID: 9, CreatedAt: now, UpdatedAt: now}))

	u, err := cached.UserBySubject(context.Background(), "auth0|abc")
	require.NoError(t, err)
	assert.Equal(t, int64(9), u.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
