// Package events is an in-process pub/sub for booking and schedule changes.
package events

import (
	"errors"
	"sync"
	"time"
)

// Event types.
const (
	BookingCreated   = "booking.created"
	BookingCancelled = "booking.cancelled"
	BookingUpdated   = "booking.updated"
	ScheduleChanged  = "schedule.changed"
)

// Event describes a change that affects slot availability.
type Event struct {
	Type      string
	BookingID int64
	Start     time.Time // zero for schedule events
	Detail    string
	CreatedAt time.Time
}

// Handler reacts to an event.
type Handler func(event Event) error

// Bus delivers events to subscribers of their type.
type Bus struct {
	subscribers map[string][]Handler
	mu          sync.RWMutex
}

func NewBus() *Bus {
	return &Bus{subscribers: make(map[string][]Handler)}
}

// Subscribe registers a handler for one or more event types.
func (b *Bus) Subscribe(handler Handler, eventTypes ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range eventTypes {
		b.subscribers[t] = append(b.subscribers[t], handler)
	}
}

// Publish runs every handler for the event type synchronously and returns
// their joined errors. A failing handler does not stop the others.
func (b *Bus) Publish(event Event) error {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	var errs []error
	for _, handler := range handlers {
		if err := handler(event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
