package events

import (
	"sync"
	"time"
)

// Event types published by the reservation engine.
const (
	TypeReservationCreated  = "reservation.created"
	TypeReservationCanceled = "reservation.canceled"
)

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   any
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event Event)

// EventBus provides in-process pub/sub for events. Handlers run
// synchronously on the publisher's goroutine, so events published under a
// slot's critical section are observed in commit order.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(eventType string, payload any) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[eventType]...)
	b.mu.RUnlock()

	event := Event{Type: eventType, Payload: payload, CreatedAt: time.Now()}
	for _, handler := range handlers {
		handler(event)
	}
}
