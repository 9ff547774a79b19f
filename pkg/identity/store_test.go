package identity

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

func userRows(u User) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "email", "username", "password_hash", "locale", "active", "created_at", "updated_at",
	}).AddRow(u.ID, u.Email, u.Username, u.PasswordHash, u.Locale, u.Active, u.CreatedAt, u.UpdatedAt)
}

func TestStore_UserBySubject(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now()
	mock.ExpectQuery(`JOIN user_identities ui ON ui\.user_id = u\.id`).
		WithArgs("auth0|abc").
		WillReturnRows(userRows(User{
			ID: 7, Email: "jo@example.com", Username: "jo@example.com",
			Locale: "en", Active: true, CreatedAt: now, UpdatedAt: now,
		}))

	u, err := store.UserBySubject(context.Background(), "auth0|abc")
	require.NoError(t, err)
	assert.Equal(t, int64(7), u.ID)
	assert.Equal(t, "jo@example.com", u.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_UserBySubjectNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`FROM users u`).
		WithArgs("auth0|missing").
		WillReturnRows(sqlmock.NewRows(nil))

	_, err := store.UserBySubject(context.Background(), "auth0|missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStore_UserByEmailCaseInsensitive(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(`LOWER(email) = LOWER($1)`)).
		WithArgs("Jo@Example.COM").
		WillReturnRows(userRows(User{ID: 7, Email: "jo@example.com", CreatedAt: now, UpdatedAt: now}))

	u, err := store.UserByEmail(context.Background(), "Jo@Example.COM")
	require.NoError(t, err)
	assert.Equal(t, int64(7), u.ID)
}

func TestStore_CreateUser(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now()
	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("jo@example.com", "jo@example.com", "hash", "fr", true).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(11, now, now))

	u := &User{Email: "jo@example.com", Username: "jo@example.com", PasswordHash: "hash", Locale: "fr", Active: true}
	require.NoError(t, store.CreateUser(context.Background(), u))
	assert.Equal(t, int64(11), u.ID)
	assert.False(t, u.CreatedAt.IsZero())
}

func TestStore_BindSubject(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO user_identities`).
		WithArgs("auth0|abc", int64(11)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, store.BindSubject(context.Background(), "auth0|abc", 11))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_UpdateUserNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE users`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.UpdateUser(context.Background(), &User{ID: 404})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStore_Roles(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT role_id FROM user_roles`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"role_id"}).AddRow("rol_admin").AddRow("rol_member"))

	roles, err := store.Roles(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"rol_admin", "rol_member"}, roles)
}

func TestStore_ReplaceRoles(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM users WHERE id = \$1 FOR UPDATE`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectExec(`DELETE FROM user_roles`).
		WithArgs(int64(7), pq.Array([]string{"rol_old"})).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO user_roles`).
		WithArgs(int64(7), "rol_new").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := store.ReplaceRoles(context.Background(), 7, []string{"rol_new"}, []string{"rol_old"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ReplaceRolesNoChangesSkipsTransaction(t *testing.T) {
	store, mock := newMockStore(t)

	require.NoError(t, store.ReplaceRoles(context.Background(), 7, nil, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ReplaceRolesMissingUser(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows(nil))
	mock.ExpectRollback()

	err := store.ReplaceRoles(context.Background(), 404, []string{"rol_new"}, nil)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStore_ListSubjects(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT external_subject_id FROM user_identities`).
		WillReturnRows(sqlmock.NewRows([]string{"external_subject_id"}).
			AddRow("auth0|a").AddRow("auth0|b"))

	subjects, err := store.ListSubjects(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"auth0|a", "auth0|b"}, subjects)
}
