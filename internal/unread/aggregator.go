// Package unread computes live per-category unread counts for
// (user, organization) pairs over the five entity streams.
package unread

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"orghub/internal/common"
	"orghub/internal/config"
	"orghub/internal/viewed"
)

// Aggregator opens and supervises aggregation groups.
type Aggregator struct {
	store   common.EntityStore
	tracker *viewed.Tracker

	window     int64
	chunkSize  int
	chunkDelay time.Duration

	mu     sync.Mutex
	groups map[*Group]struct{}
}

func NewAggregator(store common.EntityStore, tracker *viewed.Tracker, cfg *config.Config) *Aggregator {
	return &Aggregator{
		store:      store,
		tracker:    tracker,
		window:     cfg.Notification.WindowSize,
		chunkSize:  cfg.Notification.ChunkSize,
		chunkDelay: time.Duration(cfg.Notification.ChunkDelayMS) * time.Millisecond,
		groups:     make(map[*Group]struct{}),
	}
}

// queries builds the five category windows for one organization.
func (a *Aggregator) queries(organizationID string) map[common.Category]common.Query {
	return map[common.Category]common.Query{
		common.CategoryChat: {
			Category:             common.CategoryChat,
			OrganizationID:       organizationID,
			ExcludeAnnouncements: true,
			Limit:                a.window,
		},
		common.CategoryAnnouncement: {
			Category:       common.CategoryAnnouncement,
			OrganizationID: organizationID,
			Limit:          a.window,
		},
		common.CategoryDocument: {
			Category:       common.CategoryDocument,
			OrganizationID: organizationID,
			Limit:          a.window,
		},
		common.CategoryBill: {
			Category:       common.CategoryBill,
			OrganizationID: organizationID,
			UnpaidOnly:     true,
			Limit:          a.window,
		},
		common.CategoryPayment: {
			Category:       common.CategoryPayment,
			OrganizationID: organizationID,
			Limit:          a.window,
		},
	}
}

// OpenAggregation opens one live subscription per category for the pair.
// A category whose subscription cannot be opened stays at zero and never
// disables the others.
func (a *Aggregator) OpenAggregation(ctx context.Context, userID, organizationID string) (*Group, error) {
	marker := viewed.NewBatchMarker(a.tracker, a.chunkSize, a.chunkDelay)
	group := newGroup(userID, organizationID, marker)
	gen := group.generation.Load()

	for category, query := range a.queries(organizationID) {
		sub, err := a.store.Subscribe(ctx, query, func(snap common.Snapshot) {
			group.apply(gen, snap)
		})
		if err != nil {
			log.Printf("Subscription for %s failed, category stays at zero: %v", category, err)
			continue
		}
		group.attach(category, sub)
	}

	a.mu.Lock()
	a.groups[group] = struct{}{}
	a.mu.Unlock()

	log.Printf("Aggregation opened for user=%s org=%s", userID, organizationID)
	return group, nil
}

// CloseAggregation cancels all of the group's subscriptions atomically.
func (a *Aggregator) CloseAggregation(group *Group) {
	a.mu.Lock()
	delete(a.groups, group)
	a.mu.Unlock()

	group.Close()
	log.Printf("Aggregation closed for user=%s org=%s", group.UserID(), group.OrganizationID())
}

// HandleRefresh fans a refresh signal out to every open group. Wired to
// the foreground delivery bridge.
func (a *Aggregator) HandleRefresh(sig common.RefreshSignal) {
	a.mu.Lock()
	groups := make([]*Group, 0, len(a.groups))
	for group := range a.groups {
		groups = append(groups, group)
	}
	a.mu.Unlock()

	for _, group := range groups {
		group.HandleRefresh(sig)
	}
}

// CountsOnce computes the five category counts with one-shot reads, no
// subscriptions. A failed category degrades to zero.
func (a *Aggregator) CountsOnce(ctx context.Context, userID, organizationID string) Totals {
	counts := make(map[common.Category]int, 5)
	total := 0

	for category, query := range a.queries(organizationID) {
		entities, err := a.store.Fetch(ctx, query)
		if err != nil {
			if errors.Is(err, common.ErrPermissionDenied) {
				log.Printf("Count read denied for %s, treating as zero: %v", category, err)
			} else {
				log.Printf("Count read failed for %s: %v", category, err)
			}
			counts[category] = 0
			continue
		}

		n := 0
		for _, entity := range entities {
			if viewed.IsUnread(entity, userID) {
				n++
			}
		}
		counts[category] = n
		total += n
	}

	return Totals{Counts: counts, Total: total}
}

// Shutdown closes every open group.
func (a *Aggregator) Shutdown() {
	a.mu.Lock()
	groups := make([]*Group, 0, len(a.groups))
	for group := range a.groups {
		groups = append(groups, group)
	}
	a.groups = make(map[*Group]struct{})
	a.mu.Unlock()

	for _, group := range groups {
		group.Close()
	}
	log.Println("Aggregator shutdown complete")
}
