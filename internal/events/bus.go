// Package events decouples the REST layer from live delivery. Handlers
// publish named events addressed to a user; whichever transport owns the
// live connections subscribes and delivers them.
package events

import (
	"context"
	"sync"
)

// Event is a push notification addressed to Target. An empty Target means
// every live connection.
type Event struct {
	Name    string `json:"name"`
	Target  string `json:"target,omitempty"`
	Payload any    `json:"payload"`
}

// Handler consumes published events.
type Handler func(ctx context.Context, ev Event)

// Bus is the publish/subscribe seam between persistence and delivery.
type Bus interface {
	Publish(ctx context.Context, ev Event) error
	Subscribe(name string, handler Handler)
}

// LocalBus dispatches synchronously, in subscription order, on the
// publisher's goroutine.
type LocalBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

// NewLocalBus creates an empty in-process bus.
func NewLocalBus() *LocalBus {
	return &LocalBus{handlers: make(map[string][]Handler)}
}

// Subscribe registers handler for events called name.
func (b *LocalBus) Subscribe(name string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], handler)
}

// Publish hands ev to every handler subscribed to its name.
func (b *LocalBus) Publish(ctx context.Context, ev Event) error {
	b.dispatch(ctx, ev)
	return nil
}

func (b *LocalBus) dispatch(ctx context.Context, ev Event) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[ev.Name]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, ev)
	}
}
