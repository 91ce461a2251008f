// Package bridge reconciles foreground push deliveries with the live
// unread subscriptions.
package bridge

import (
	"log"
	"sync"
	"time"

	"orghub/internal/common"
)

// ForegroundMessage is a push delivered while the client is attached.
type ForegroundMessage struct {
	Category       common.Category `json:"category"`
	OrganizationID string          `json:"organization_id"`
	Title          string          `json:"title"`
	Body           string          `json:"body"`
}

// LocalNotifier raises a native-style notice on the attached client.
type LocalNotifier interface {
	Show(title, body string, dismissAfter time.Duration)
}

// LogNotifier is the default LocalNotifier.
type LogNotifier struct{}

func (LogNotifier) Show(title, body string, dismissAfter time.Duration) {
	log.Printf("Local notice: %s (dismissing in %s)", title, dismissAfter)
	time.AfterFunc(dismissAfter, func() {
		log.Printf("Local notice dismissed: %s", title)
	})
}

// Bridge turns a foreground delivery into (a) a local notice when the
// client is not focused and (b) always a refresh signal, because the live
// subscription may lag the push by the store's propagation delay. The
// subscriptions stay authoritative; this is a cross-check.
type Bridge struct {
	notifier     LocalNotifier
	dismissAfter time.Duration

	mu       sync.RWMutex
	handlers []func(common.RefreshSignal)
}

func NewBridge(notifier LocalNotifier, dismissAfter time.Duration) *Bridge {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	if dismissAfter <= 0 {
		dismissAfter = 6 * time.Second
	}
	return &Bridge{
		notifier:     notifier,
		dismissAfter: dismissAfter,
	}
}

// OnForegroundEvent registers a handler for refresh signals.
func (b *Bridge) OnForegroundEvent(handler func(common.RefreshSignal)) {
	b.mu.Lock()
	b.handlers = append(b.handlers, handler)
	b.mu.Unlock()
}

// Deliver processes one foreground push delivery.
func (b *Bridge) Deliver(msg ForegroundMessage, focused bool) {
	if !focused {
		b.notifier.Show(msg.Title, msg.Body, b.dismissAfter)
	}

	sig := common.RefreshSignal{
		Category:       msg.Category,
		OrganizationID: msg.OrganizationID,
	}

	b.mu.RLock()
	handlers := make([]func(common.RefreshSignal), len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, handler := range handlers {
		handler(sig)
	}
}
