package events

import (
	"sync"
)

// VerifiedEvent is published when an email address passes verification.
// OwnerID is 0 for guest identities that verified before an account existed.
type VerifiedEvent struct {
	OwnerID int64
	Email   string
	Type    string
}

// VerifiedHandler reacts to a successful verification.
type VerifiedHandler func(VerifiedEvent)

// Bus is a minimal in-process event bus. Publish runs handlers synchronously
// in subscription order, so subscribers observe the event before the
// verification call returns.
type Bus struct {
	mu       sync.RWMutex
	handlers []VerifiedHandler
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a handler for VerifiedEvent.
func (b *Bus) Subscribe(h VerifiedHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Publish delivers the event to all subscribers.
func (b *Bus) Publish(ev VerifiedEvent) {
	b.mu.RLock()
	handlers := make([]VerifiedHandler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}
