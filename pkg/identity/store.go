package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

var (
	// ErrNotFound indicates the requested user or binding does not exist
	ErrNotFound = errors.New("not found")
	// ErrStoreUnavailable indicates the backing database failed the call
	ErrStoreUnavailable = errors.New("identity store unavailable")
)

// User is a locally provisioned account
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Locale       string    `json:"locale"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Store persists users, subject bindings, and role grants in PostgreSQL
type Store struct {
	db *sql.DB
}

// NewStore creates an identity store backed by the given database
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const userColumns = `id, email, username, password_hash, locale, active, created_at, updated_at`

func scanUser(row *sql.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.Locale, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UserBySubject returns the user bound to an external subject id
func (s *Store) UserBySubject(ctx context.Context, subjectID string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT u.`+userColumns+`
		FROM users u
		JOIN user_identities ui ON ui.user_id = u.id
		WHERE ui.external_subject_id = $1`, subjectID)

	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user for subject %q: %w", subjectID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user by subject: %w: %w", ErrStoreUnavailable, err)
	}
	return u, nil
}

// UserByEmail returns the user with the given email, compared
// case-insensitively
func (s *Store) UserByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE LOWER(email) = LOWER($1)`, email)

	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user with email %q: %w", email, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user by email: %w: %w", ErrStoreUnavailable, err)
	}
	return u, nil
}

// CreateUser inserts a new user and fills in its id and timestamps
func (s *Store) CreateUser(ctx context.Context, u *User) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (email, username, password_hash, locale, active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`,
		u.Email, u.Username, u.PasswordHash, u.Locale, u.Active,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// UpdateUser persists mutable user fields
func (s *Store) UpdateUser(ctx context.Context, u *User) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET email = $2, username = $3, locale = $4, active = $5, updated_at = NOW()
		WHERE id = $1`,
		u.ID, u.Email, u.Username, u.Locale, u.Active)
	if err != nil {
		return fmt.Errorf("failed to update user %d: %w: %w", u.ID, ErrStoreUnavailable, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("user %d: %w", u.ID, ErrNotFound)
	}
	return nil
}

// BindSubject records the subject-to-user binding, moving the subject to a
// new user if it was previously bound elsewhere
func (s *Store) BindSubject(ctx context.Context, subjectID string, userID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_identities (external_subject_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (external_subject_id)
		DO UPDATE SET user_id = EXCLUDED.user_id, updated_at = NOW()`,
		subjectID, userID)
	if err != nil {
		return fmt.Errorf("failed to bind subject %q to user %d: %w: %w", subjectID, userID, ErrStoreUnavailable, err)
	}
	return nil
}

// Roles returns the role ids currently granted to a user
func (s *Store) Roles(ctx context.Context, userID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role_id FROM user_roles WHERE user_id = $1 ORDER BY role_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query roles for user %d: %w: %w", userID, ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w: %w", ErrStoreUnavailable, err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate roles: %w: %w", ErrStoreUnavailable, err)
	}
	return roles, nil
}

// ReplaceRoles applies the computed additions and removals for a user in a
// single transaction. The user row is locked first so concurrent
// reconciliations of the same user serialize.
func (s *Store) ReplaceRoles(ctx context.Context, userID int64, add, remove []string) error {
	if len(add) == 0 && len(remove) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin role update: %w: %w", ErrStoreUnavailable, err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("user %d: %w", userID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to lock user %d: %w: %w", userID, ErrStoreUnavailable, err)
	}

	if len(remove) > 0 {
		_, err = tx.ExecContext(ctx, `
			DELETE FROM user_roles WHERE user_id = $1 AND role_id = ANY($2)`,
			userID, pq.Array(remove))
		if err != nil {
			return fmt.Errorf("failed to remove roles for user %d: %w: %w", userID, ErrStoreUnavailable, err)
		}
	}

	for _, role := range add {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO user_roles (user_id, role_id)
			VALUES ($1, $2)
			ON CONFLICT (user_id, role_id) DO NOTHING`,
			userID, role)
		if err != nil {
			return fmt.Errorf("failed to grant role %q to user %d: %w: %w", role, userID, ErrStoreUnavailable, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit role update for user %d: %w: %w", userID, ErrStoreUnavailable, err)
	}
	return nil
}

// ListSubjects returns every bound external subject id, for full sweeps
func (s *Store) ListSubjects(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT external_subject_id FROM user_identities ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list subjects: %w: %w", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var subjects []string
	for rows.Next() {
		var subject string
		if err := rows.Scan(&subject); err != nil {
			return nil, fmt.Errorf("failed to scan subject: %w: %w", ErrStoreUnavailable, err)
		}
		subjects = append(subjects, subject)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate subjects: %w: %w", ErrStoreUnavailable, err)
	}
	return subjects, nil
}
