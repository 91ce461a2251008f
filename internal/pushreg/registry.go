// Package pushreg maintains the per-user push delivery token sets.
package pushreg

import (
	"context"
	"fmt"
	"log"

	"orghub/internal/common"
)

// Registry wraps the token store with registration validation and the
// delivery-failure eviction hook. Registration is purely additive, so
// concurrent registrations never conflict; eviction is the only pruning.
type Registry struct {
	store common.TokenStore
}

func NewRegistry(store common.TokenStore) *Registry {
	return &Registry{
		store: store,
	}
}

// RegisterToken adds token to the user's set. Duplicates are absorbed by
// the store's set-union write; a missing user record is created.
func (r *Registry) RegisterToken(ctx context.Context, userID, token, platform string) error {
	if userID == "" {
		return fmt.Errorf("user id is required")
	}
	if token == "" {
		return fmt.Errorf("token is required")
	}
	return r.store.AddToken(ctx, userID, token, platform)
}

// Tokens returns the user's current token set. Empty, not an error, when
// the user never registered a device.
func (r *Registry) Tokens(ctx context.Context, userID string) ([]string, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	return r.store.TokensByUser(ctx, userID)
}

// EvictToken removes a token the transport reported dead, so it stops
// accumulating failed sends.
func (r *Registry) EvictToken(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := r.store.RemoveToken(ctx, token); err != nil {
		return err
	}
	log.Printf("Evicted stale push token: %s", token)
	return nil
}
