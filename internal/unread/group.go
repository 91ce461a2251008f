package unread

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"

	"orghub/internal/common"
	"orghub/internal/viewed"
)

// Totals is one published state of an aggregation group.
type Totals struct {
	Counts map[common.Category]int `json:"counts"`
	Total  int                     `json:"total"`
}

// Group owns the per-category unread counts for one (user, organization)
// pair. Counts are mutated only by the group's own subscription callbacks;
// each category owns a disjoint map key, so categories update
// independently and the total is eventually consistent across them.
type Group struct {
	userID         string
	organizationID string

	// generation guards against callbacks from torn-down handles: each
	// callback captures the generation at subscribe time and compares it
	// before mutating shared state. Close bumps it before cancelling,
	// because live-query cancellation is not instantaneous.
	generation atomic.Uint64

	mu      sync.Mutex
	counts  map[common.Category]int
	subs    map[common.Category]common.Subscription
	closed  bool
	updates chan Totals

	marker *viewed.BatchMarker
}

func newGroup(userID, organizationID string, marker *viewed.BatchMarker) *Group {
	return &Group{
		userID:         userID,
		organizationID: organizationID,
		counts:         make(map[common.Category]int),
		subs:           make(map[common.Category]common.Subscription),
		updates:        make(chan Totals, 8),
		marker:         marker,
	}
}

func (g *Group) UserID() string { return g.userID }

func (g *Group) OrganizationID() string { return g.organizationID }

// Updates delivers a Totals after every category change. The channel is
// buffered latest-wins: a slow reader sees fewer intermediate states,
// never a stale final one. Closed when the group closes.
func (g *Group) Updates() <-chan Totals {
	return g.updates
}

// Counts returns a copy of the current state.
func (g *Group) Counts() Totals {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.totalsLocked()
}

// MarkObserved queues newly observed entities for viewed-marking through
// the group's own batch queue. Each group owns an independent queue;
// duplicate marks across groups are idempotent.
func (g *Group) MarkObserved(ctx context.Context, refs []viewed.EntityRef) {
	g.marker.MarkBatch(ctx, g.userID, refs)
}

// HandleRefresh re-pulls the matching category's snapshot. The live
// subscription remains authoritative; this only shortcuts its lag.
func (g *Group) HandleRefresh(sig common.RefreshSignal) {
	if sig.OrganizationID != "" && sig.OrganizationID != g.organizationID {
		return
	}

	g.mu.Lock()
	subs := make([]common.Subscription, 0, len(g.subs))
	for cat, sub := range g.subs {
		if sig.Category == "" || sig.Category == cat {
			subs = append(subs, sub)
		}
	}
	g.mu.Unlock()

	for _, sub := range subs {
		if err := sub.Refresh(context.Background()); err != nil {
			log.Printf("Refresh request failed for group %s/%s: %v", g.userID, g.organizationID, err)
		}
	}
}

// Close tears down all subscriptions atomically. Safe to call twice.
func (g *Group) Close() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	subs := make([]common.Subscription, 0, len(g.subs))
	for _, sub := range g.subs {
		subs = append(subs, sub)
	}
	g.subs = make(map[common.Category]common.Subscription)
	close(g.updates)
	g.mu.Unlock()

	// invalidate outstanding callbacks before cancelling, then cancel all
	g.generation.Add(1)
	for _, sub := range subs {
		sub.Cancel()
	}
}

func (g *Group) attach(category common.Category, sub common.Subscription) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		sub.Cancel()
		return
	}
	g.subs[category] = sub
	g.mu.Unlock()
}

// apply is the single write path for counts, called from subscription
// callbacks with the generation they captured.
func (g *Group) apply(gen uint64, snap common.Snapshot) {
	if gen != g.generation.Load() {
		// stale handle; expected race, not a fault
		return
	}

	count := 0
	if snap.Err != nil {
		// degraded category: count unknown, report zero; never let one
		// category's failure touch the others
		if errors.Is(snap.Err, common.ErrPermissionDenied) {
			log.Printf("Count subscription denied for %s, treating as zero: %v", snap.Category, snap.Err)
		} else {
			log.Printf("Count subscription degraded for %s: %v", snap.Category, snap.Err)
		}
	} else {
		for _, entity := range snap.Entities {
			if viewed.IsUnread(entity, g.userID) {
				count++
			}
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	g.counts[snap.Category] = count
	g.publishLocked(g.totalsLocked())
}

func (g *Group) totalsLocked() Totals {
	counts := make(map[common.Category]int, len(g.counts))
	total := 0
	for cat, n := range g.counts {
		counts[cat] = n
		total += n
	}
	return Totals{Counts: counts, Total: total}
}

func (g *Group) publishLocked(t Totals) {
	select {
	case g.updates <- t:
	default:
		// full: drop the oldest buffered state and try once more
		select {
		case <-g.updates:
		default:
		}
		select {
		case g.updates <- t:
		default:
		}
	}
}
