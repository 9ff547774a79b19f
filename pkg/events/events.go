package events

import (
	"context"
	"sync"

	"github.com/platinummonkey/idbridge/pkg/provider"
)

// RoleEventKind classifies a normalized provider role-change event
type RoleEventKind string

const (
	UserAddedToRole     RoleEventKind = "user_added_to_role"
	UserRemovedFromRole RoleEventKind = "user_removed_from_role"
	RoleGrantedToUser   RoleEventKind = "role_granted_to_user"
	RoleRevokedFromUser RoleEventKind = "role_revoked_from_user"
)

// LoginEvent is published after a successful code exchange, before the
// session is finalized. Subscribers may set RedirectPath to steer the
// post-login redirect.
type LoginEvent struct {
	SubjectID    string
	Claims       map[string]interface{}
	Roles        []provider.Role
	Destination  string
	RedirectPath string
}

// UserUpdatedEvent is published when the provider's view of a user changed
// outside a login, such as registration completion. Profile carries the
// provider's user record when the publisher already holds it, so
// subscribers need not re-fetch.
type UserUpdatedEvent struct {
	SubjectID string
	Profile   map[string]interface{}
}

// RoleEvent carries the subjects affected by one normalized role-change
// event from the provider.
type RoleEvent struct {
	Kind       RoleEventKind
	SubjectIDs []string
}

// LoginHandler handles a login event
type LoginHandler func(ctx context.Context, event *LoginEvent) error

// UserUpdatedHandler handles a user-updated event
type UserUpdatedHandler func(ctx context.Context, event UserUpdatedEvent) error

// RoleHandler handles a role-change event
type RoleHandler func(ctx context.Context, event RoleEvent) error

// Bus dispatches events synchronously to subscribers in subscription
// order. Publish stops at the first handler error and returns it.
type Bus struct {
	mu          sync.RWMutex
	login       []LoginHandler
	userUpdated []UserUpdatedHandler
	role        []RoleHandler
}

// NewBus creates an empty event bus
func NewBus() *Bus {
	return &Bus{}
}

// SubscribeLogin registers a handler for login events
func (b *Bus) SubscribeLogin(h LoginHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.login = append(b.login, h)
}

// SubscribeUserUpdated registers a handler for user-updated events
func (b *Bus) SubscribeUserUpdated(h UserUpdatedHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.userUpdated = append(b.userUpdated, h)
}

// SubscribeRole registers a handler for role-change events
func (b *Bus) SubscribeRole(h RoleHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.role = append(b.role, h)
}

// PublishLogin dispatches a login event
func (b *Bus) PublishLogin(ctx context.Context, event *LoginEvent) error {
	b.mu.RLock()
	handlers := b.login
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// PublishUserUpdated dispatches a user-updated event
func (b *Bus) PublishUserUpdated(ctx context.Context, event UserUpdatedEvent) error {
	b.mu.RLock()
	handlers := b.userUpdated
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// PublishRole dispatches a role-change event
func (b *Bus) PublishRole(ctx context.Context, event RoleEvent) error {
	b.mu.RLock()
	handlers := b.role
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, event); err != nil {
			return err
		}
	}
	return nil
}
