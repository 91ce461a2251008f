// Package viewed tracks which users have seen which entities: the unread
// predicate, best-effort mark-viewed writes, and the paced batch marker.
package viewed

import (
	"context"
	"errors"
	"log"
	"sync/atomic"

	"orghub/internal/common"
)

// IsUnread reports whether entity is unread for userID: the user is not
// the actor and has not acknowledged it. Direct messages carry sender and
// receiver instead of an actor: the sender is excluded like an actor, and
// a message addressed to someone else is never unread for you. A missing
// actorId means there is no actor to exclude; a missing viewedBy is an
// empty set.
func IsUnread(entity common.Entity, userID string) bool {
	if entity.ActorID != "" && entity.ActorID == userID {
		return false
	}
	if entity.SenderID != "" && entity.SenderID == userID {
		return false
	}
	if entity.ReceiverID != "" && entity.ReceiverID != userID {
		return false
	}
	for _, id := range entity.ViewedBy {
		if id == userID {
			return false
		}
	}
	return true
}

// Tracker performs mark-viewed writes. Viewed-marking is best-effort
// telemetry, so a permission-denied write is swallowed, only counted so
// systematic rule misconfiguration stays observable.
type Tracker struct {
	store  common.EntityStore
	denied atomic.Int64
}

func NewTracker(store common.EntityStore) *Tracker {
	return &Tracker{
		store: store,
	}
}

// MarkViewed appends userID to the entity's viewed set. Calling it twice
// for the same user is a no-op. Non-permission failures are returned so
// the entity stays eligible for retry on its next observation.
func (t *Tracker) MarkViewed(ctx context.Context, category common.Category, entityID, userID string) error {
	err := t.store.MarkViewed(ctx, category, entityID, userID)
	if err == nil {
		return nil
	}

	if errors.Is(err, common.ErrPermissionDenied) {
		t.denied.Add(1)
		log.Printf("Mark viewed denied for %s/%s: %v", category, entityID, err)
		return nil
	}

	log.Printf("Mark viewed failed for %s/%s: %v", category, entityID, err)
	return err
}

// DeniedWrites returns how many mark-viewed writes were rejected by
// access rules since startup.
func (t *Tracker) DeniedWrites() int64 {
	return t.denied.Load()
}
