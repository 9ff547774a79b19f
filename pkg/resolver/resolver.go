package resolver

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/platinummonkey/idbridge/pkg/identity"
	"github.com/platinummonkey/idbridge/pkg/observability"
)

// ErrNoEmail indicates the provider identity carried no usable email
// claim, which blocks both the merge lookup and provisioning.
var ErrNoEmail = errors.New("identity has no email claim")

type localeKey struct{}

// WithLocale records the caller's preferred locale for newly provisioned
// users.
func WithLocale(ctx context.Context, locale string) context.Context {
	return context.WithValue(ctx, localeKey{}, locale)
}

// LocaleFromContext returns the locale recorded on the context, or def
func LocaleFromContext(ctx context.Context, def string) string {
	if locale, ok := ctx.Value(localeKey{}).(string); ok && locale != "" {
		return locale
	}
	return def
}

// Store is the identity persistence surface resolution needs
type Store interface {
	UserBySubject(ctx context.Context, subjectID string) (*identity.User, error)
	UserByEmail(ctx context.Context, email string) (*identity.User, error)
	CreateUser(ctx context.Context, u *identity.User) error
	UpdateUser(ctx context.Context, u *identity.User) error
	BindSubject(ctx context.Context, subjectID string, userID int64) error
}

// MetadataWriter pushes local account details back onto the provider's
// user record.
type MetadataWriter interface {
	UpdateUserMetadata(ctx context.Context, subjectID string, metadata map[string]interface{}) error
}

// Resolver resolves external identities to local users
type Resolver struct {
	store         Store
	metadata      MetadataWriter
	metrics       *observability.Metrics
	logger        *observability.Logger
	defaultLocale string
}

// NewResolver creates a resolver. metadata may be nil when write-back is
// disabled.
func NewResolver(store Store, metadata MetadataWriter, metrics *observability.Metrics, logger *observability.Logger, defaultLocale string) *Resolver {
	if defaultLocale == "" {
		defaultLocale = "en"
	}
	return &Resolver{
		store:         store,
		metadata:      metadata,
		metrics:       metrics,
		logger:        logger,
		defaultLocale: defaultLocale,
	}
}

// Resolve returns the local user for a subject, provisioning or merging
// as needed.
func (r *Resolver) Resolve(ctx context.Context, subjectID string, claims map[string]interface{}) (*identity.User, error) {
	email := emailClaim(claims)
	if email == "" {
		return nil, fmt.Errorf("cannot resolve subject %q: %w", subjectID, ErrNoEmail)
	}

	logger := r.logger.WithSubject(subjectID)

	user, err := r.store.UserBySubject(ctx, subjectID)
	switch {
	case err == nil:
		r.count("subject_hit")
		return r.finalize(ctx, subjectID, user, email)
	case !errors.Is(err, identity.ErrNotFound):
		return nil, err
	}

	user, err = r.store.UserByEmail(ctx, email)
	switch {
	case err == nil:
		r.count("email_merge")
		if r.metrics != nil {
			r.metrics.UsersMerged.Inc()
		}
		logger.WithField("user_id", user.ID).Info("merged external identity onto existing user by email")
		return r.finalize(ctx, subjectID, user, email)
	case !errors.Is(err, identity.ErrNotFound):
		return nil, err
	}

	user = &identity.User{
		Email:        email,
		Username:     email,
		PasswordHash: randomPasswordHash(),
		Locale:       LocaleFromContext(ctx, r.defaultLocale),
		Active:       true,
	}
	if err := r.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	if err := r.store.BindSubject(ctx, subjectID, user.ID); err != nil {
		return nil, err
	}
	r.count("provisioned")
	if r.metrics != nil {
		r.metrics.UsersProvisioned.Inc()
	}
	logger.WithField("user_id", user.ID).Info("provisioned new local user")

	r.writeBack(ctx, subjectID, user)
	return user, nil
}

// finalize runs the tail every resolution shares: align the user with
// the provider identity, rotate the placeholder credential, persist,
// re-upsert the subject binding, then push the local id back to the
// provider.
func (r *Resolver) finalize(ctx context.Context, subjectID string, user *identity.User, email string) (*identity.User, error) {
	user.Email = email
	user.Username = email
	user.PasswordHash = randomPasswordHash()
	user.Active = true
	if err := r.store.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	if err := r.store.BindSubject(ctx, subjectID, user.ID); err != nil {
		return nil, err
	}
	r.writeBack(ctx, subjectID, user)
	return user, nil
}

// writeBack pushes the local user id into the provider's app metadata.
// Failures are logged and swallowed, the login must not depend on it.
func (r *Resolver) writeBack(ctx context.Context, subjectID string, user *identity.User) {
	if r.metadata == nil {
		return
	}
	err := r.metadata.UpdateUserMetadata(ctx, subjectID, map[string]interface{}{
		"local_user_id": user.ID,
	})
	if err != nil {
		r.logger.WithSubject(subjectID).WithError(err).Warn("failed to write back local user id to provider")
	}
}

func (r *Resolver) count(outcome string) {
	if r.metrics == nil {
		return
	}
	r.metrics.IdentityLookupsTotal.WithLabelValues(outcome).Inc()
}

func emailClaim(claims map[string]interface{}) string {
	email, _ := claims["email"].(string)
	return strings.TrimSpace(email)
}

// randomPasswordHash fills the mandatory password column for accounts
// that only ever authenticate through the provider. The value is never
// verifiable as a password.
func randomPasswordHash() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the process is in a bad state anyway
		panic(fmt.Sprintf("failed to read random bytes: %v", err))
	}
	return hex.EncodeToString(buf)
}
