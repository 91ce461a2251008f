// Package dispatch resolves an event's audience to push tokens and
// performs the multicast send with per-token outcome tracking.
package dispatch

import (
	"context"
	"fmt"
	"log"

	"firebase.google.com/go/v4/messaging"
	"github.com/google/uuid"

	"orghub/internal/common"
	"orghub/internal/dbmysql"
	"orghub/internal/pushreg"
)

// MulticastSender is the push transport: one send addressing many tokens,
// with independent per-token outcomes. *messaging.Client satisfies it.
type MulticastSender interface {
	SendMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// Dispatcher performs the fan-out. Delivery is at-most-once best-effort:
// callers never retry, partial failure is tolerated, and tokens the
// transport reports dead are evicted from the registry.
type Dispatcher struct {
	sender   MulticastSender
	registry *pushreg.Registry
	logs     dbmysql.DeliveryLogRepository

	// staleToken classifies a per-token send error as permanently dead.
	// Defaults to the FCM unregistered/invalid checks; injectable for tests.
	staleToken func(error) bool
}

func NewDispatcher(sender MulticastSender, registry *pushreg.Registry, logs dbmysql.DeliveryLogRepository) *Dispatcher {
	return &Dispatcher{
		sender:   sender,
		registry: registry,
		logs:     logs,
		staleToken: func(err error) bool {
			return messaging.IsRegistrationTokenNotRegistered(err) || messaging.IsInvalidArgument(err)
		},
	}
}

// Dispatch sends event to its audience minus the actor. An empty target
// list is a no-op, not an error. Returns the multicast outcome counts.
func (d *Dispatcher) Dispatch(ctx context.Context, event common.DispatchEvent) (common.DispatchResult, error) {
	recipients := excludeActor(event.AudienceUserIDs, event.ActorID)
	if len(recipients) == 0 {
		return common.DispatchResult{}, nil
	}

	tokens := d.collectTokens(ctx, recipients)
	if len(tokens) == 0 {
		log.Printf("No push tokens for event %s/%s, skipping dispatch", event.Category, event.OrganizationID)
		return common.DispatchResult{}, nil
	}

	if d.sender == nil {
		// transport disabled; counts stay live through store subscriptions
		log.Printf("Push transport disabled, dropping dispatch for %s/%s", event.Category, event.OrganizationID)
		return common.DispatchResult{}, nil
	}

	message := &messaging.MulticastMessage{
		Notification: &messaging.Notification{
			Title: event.Title,
			Body:  event.Body,
		},
		Data: map[string]string{
			"category":        string(event.Category),
			"organization_id": event.OrganizationID,
			"actor_id":        event.ActorID,
		},
		Tokens: tokens,
	}

	response, err := d.sender.SendMulticast(ctx, message)
	if err != nil {
		return common.DispatchResult{}, fmt.Errorf("%w: multicast send failed: %v", common.ErrUnavailable, err)
	}

	d.evictStaleTokens(ctx, tokens, response)
	d.recordOutcome(ctx, event, len(recipients), len(tokens), response)

	log.Printf("Dispatch %s/%s: %d success, %d failure",
		event.Category, event.OrganizationID, response.SuccessCount, response.FailureCount)

	return common.DispatchResult{
		SuccessCount: response.SuccessCount,
		FailureCount: response.FailureCount,
	}, nil
}

// collectTokens unions every recipient's token set. A failed lookup for
// one user never blocks delivery to the rest.
func (d *Dispatcher) collectTokens(ctx context.Context, recipients []string) []string {
	seen := make(map[string]struct{})
	var tokens []string

	for _, userID := range recipients {
		userTokens, err := d.registry.Tokens(ctx, userID)
		if err != nil {
			log.Printf("Failed to load tokens for user %s: %v", userID, err)
			continue
		}
		for _, token := range userTokens {
			if _, ok := seen[token]; ok {
				continue
			}
			seen[token] = struct{}{}
			tokens = append(tokens, token)
		}
	}
	return tokens
}

func (d *Dispatcher) evictStaleTokens(ctx context.Context, tokens []string, response *messaging.BatchResponse) {
	for i, result := range response.Responses {
		if result.Success || i >= len(tokens) {
			continue
		}
		if !d.staleToken(result.Error) {
			continue
		}
		if err := d.registry.EvictToken(ctx, tokens[i]); err != nil {
			log.Printf("Failed to evict stale token: %v", err)
		}
	}
}

func (d *Dispatcher) recordOutcome(
	ctx context.Context,
	event common.DispatchEvent,
	recipients, tokenCount int,
	response *messaging.BatchResponse,
) {
	if d.logs == nil {
		return
	}

	entry := &dbmysql.DeliveryLog{
		ID:             uuid.NewString(),
		Category:       string(event.Category),
		OrganizationID: event.OrganizationID,
		ActorID:        event.ActorID,
		Title:          event.Title,
		Recipients:     recipients,
		TokenCount:     tokenCount,
		SuccessCount:   response.SuccessCount,
		FailureCount:   response.FailureCount,
	}
	if err := d.logs.Create(ctx, entry); err != nil {
		log.Printf("Failed to record delivery log: %v", err)
	}
}

func excludeActor(audience []string, actorID string) []string {
	seen := make(map[string]struct{}, len(audience))
	out := make([]string, 0, len(audience))
	for _, userID := range audience {
		if userID == "" || userID == actorID {
			continue
		}
		if _, ok := seen[userID]; ok {
			continue
		}
		seen[userID] = struct{}{}
		out = append(out, userID)
	}
	return out
}
