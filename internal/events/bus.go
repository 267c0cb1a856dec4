package events

import (
	"sync"
	"time"

	"github.com/XavierBriggs/fortuna/services/bet-engine/pkg/models"
)

// Subscriber receives engine events. Deliver must not block: slow consumers
// buffer or drop on their own side, never stall the scan path.
type Subscriber interface {
	Deliver(event models.Event)
}

// SubscriberFunc adapts a function to the Subscriber interface
type SubscriberFunc func(event models.Event)

// Deliver calls the wrapped function
func (f SubscriberFunc) Deliver(event models.Event) {
	f(event)
}

// Bus fans engine events out to all registered subscribers
type Bus struct {
	mu          sync.RWMutex
	subscribers []Subscriber
}

// NewBus creates an empty event bus
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a subscriber for all subsequent events
func (b *Bus) Subscribe(s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, s)
}

// Publish stamps and delivers an event to every subscriber
func (b *Bus) Publish(eventType models.EventType, payload interface{}) {
	event := models.Event{
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	b.mu.RLock()
	subscribers := make([]Subscriber, len(b.subscribers))
	copy(subscribers, b.subscribers)
	b.mu.RUnlock()

	for _, s := range subscribers {
		s.Deliver(event)
	}
}
