package events

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishByType(t *testing.T) {
	bus := NewBus()

	var got []Event
	bus.Subscribe(func(e Event) error {
		got = append(got, e)
		return nil
	}, BookingCreated, BookingCancelled)

	require.NoError(t, bus.Publish(Event{Type: BookingCreated, BookingID: 1}))
	require.NoError(t, bus.Publish(Event{Type: ScheduleChanged}))
	require.NoError(t, bus.Publish(Event{Type: BookingCancelled, BookingID: 1}))

	require.Len(t, got, 2)
	assert.Equal(t, BookingCreated, got[0].Type)
	assert.Equal(t, BookingCancelled, got[1].Type)
	assert.False(t, got[0].CreatedAt.IsZero(), "CreatedAt is stamped on publish")
}

func TestBus_KeepsCreatedAt(t *testing.T) {
	bus := NewBus()
	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	var seen time.Time
	bus.Subscribe(func(e Event) error {
		seen = e.CreatedAt
		return nil
	}, ScheduleChanged)

	require.NoError(t, bus.Publish(Event{Type: ScheduleChanged, CreatedAt: at}))
	assert.Equal(t, at, seen)
}

func TestBus_HandlerErrors(t *testing.T) {
	bus := NewBus()
	errA := errors.New("a failed")

	calls := 0
	bus.Subscribe(func(Event) error { calls++; return errA }, BookingCreated)
	bus.Subscribe(func(Event) error { calls++; return nil }, BookingCreated)

	err := bus.Publish(Event{Type: BookingCreated})
	assert.ErrorIs(t, err, errA)
	assert.Equal(t, 2, calls, "later handlers still run")
}

func TestBus_NoSubscribers(t *testing.T) {
	assert.NoError(t, NewBus().Publish(Event{Type: BookingUpdated}))
}
