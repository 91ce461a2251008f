package common

import (
	"context"
)

// Query selects one category's viewable window for an organization.
type Query struct {
	Category             Category
	OrganizationID       string
	UnpaidOnly           bool
	ExcludeAnnouncements bool
	Limit                int64
}

// Subscription is one live query handle. Cancel stops delivery and waits
// for the delivery loop to exit; Refresh asks for an out-of-band re-pull.
type Subscription interface {
	Refresh(ctx context.Context) error
	Cancel()
}

// EntityStore is the persistent document store the notification core
// depends on: live capped queries, one-shot reads, and the additive
// set-union write used for viewed marking.
type EntityStore interface {
	Subscribe(ctx context.Context, q Query, fn func(Snapshot)) (Subscription, error)
	Fetch(ctx context.Context, q Query) ([]Entity, error)
	MarkViewed(ctx context.Context, category Category, entityID, userID string) error
}

// TokenStore keeps the per-user push token sets. AddToken has set-union
// semantics and creates the user's record when missing.
type TokenStore interface {
	AddToken(ctx context.Context, userID, token, platform string) error
	TokensByUser(ctx context.Context, userID string) ([]string, error)
	RemoveToken(ctx context.Context, token string) error
}
