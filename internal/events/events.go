package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types published by the scheduling engine.
const (
	BookingCreated   = "booking.created"
	BookingCancelled = "booking.cancelled"
	BookingMoved     = "booking.moved"
	BookingsSwapped  = "booking.swapped"
	BookingPaid      = "booking.paid"
	BookingUpdated   = "booking.updated"
	PackageGenerated = "package.generated"
)

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Date      string
	Slot      string
	BookingID uuid.UUID
	Client    string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	all         []EventHandler
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

// SubscribeAll registers a handler that receives every event.
func (b *EventBus) SubscribeAll(handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, handler)
}

// Publish notifies subscribers of the event type. It returns the first
// handler error; the remaining handlers still run.
func (b *EventBus) Publish(event Event) error {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	handlers = append(handlers, b.all...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	var first error
	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		if err := handler(event); err != nil && first == nil {
			first = err
		}
	}
	return first
}
