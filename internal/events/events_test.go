package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus()

	var created []Event
	bus.Subscribe(TypeReservationCreated, func(ev Event) {
		created = append(created, ev)
	})

	var canceled int
	bus.Subscribe(TypeReservationCanceled, func(Event) { canceled++ })

	bus.Publish(TypeReservationCreated, "payload-1")
	bus.Publish(TypeReservationCreated, "payload-2")
	bus.Publish(TypeReservationCanceled, nil)

	assert.Len(t, created, 2)
	assert.Equal(t, "payload-1", created[0].Payload)
	assert.Equal(t, "payload-2", created[1].Payload)
	assert.False(t, created[0].CreatedAt.IsZero())
	assert.Equal(t, 1, canceled)
}

func TestEventBus_NoSubscribers(t *testing.T) {
	bus := NewEventBus()
	// Publishing with no subscribers must not panic.
	bus.Publish(TypeReservationCreated, struct{}{})
}

func TestEventBus_HandlersRunInOrder(t *testing.T) {
	bus := NewEventBus()

	var order []int
	bus.Subscribe("x", func(Event) { order = append(order, 1) })
	bus.Subscribe("x", func(Event) { order = append(order, 2) })

	bus.Publish("x", nil)
	assert.Equal(t, []int{1, 2}, order)
}
