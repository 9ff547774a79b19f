package identity

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedStore wraps a Store with an LRU cache over subject lookups. Webhook
// bursts and post-login reconciliation hit the same subjects repeatedly, so
// caching the binding lookup keeps those paths off the database.
//
// Mutations write through and invalidate, so a cached entry is never stale
// relative to writes issued through the same CachedStore.
type CachedStore struct {
	*Store
	bySubject *lru.Cache[string, *User]
}

// NewCachedStore wraps store with a subject-lookup cache of the given size
func NewCachedStore(store *Store, size int) (*CachedStore, error) {
	cache, err := lru.New[string, *User](size)
	if err != nil {
		return nil, err
	}
	return &CachedStore{Store: store, bySubject: cache}, nil
}

// UserBySubject returns the cached user for a subject, falling back to the
// underlying store on miss. Not-found results are not cached so a subject
// provisioned moments later is visible immediately.
func (c *CachedStore) UserBySubject(ctx context.Context, subjectID string) (*User, error) {
	if u, ok := c.bySubject.Get(subjectID); ok {
		return u, nil
	}

	u, err := c.Store.UserBySubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	c.bySubject.Add(subjectID, u)
	return u, nil
}

// UpdateUser writes through and drops any cached entries for the user
func (c *CachedStore) UpdateUser(ctx context.Context, u *User) error {
	if err := c.Store.UpdateUser(ctx, u); err != nil {
		return err
	}
	c.invalidateUser(u.ID)
	return nil
}

// BindSubject writes through and drops the cached entry for the subject
func (c *CachedStore) BindSubject(ctx context.Context, subjectID string, userID int64) error {
	if err := c.Store.BindSubject(ctx, subjectID, userID); err != nil {
		return err
	}
	c.bySubject.Remove(subjectID)
	return nil
}

func (c *CachedStore) invalidateUser(userID int64) {
	for _, key := range c.bySubject.Keys() {
		if u, ok := c.bySubject.Peek(key); ok && u.ID == userID {
			c.bySubject.Remove(key)
		}
	}
}
