package service_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bivex/billing-bridge/internal/domain/service"
)

func TestEventBus(t *testing.T) {
	t.Run("subscribers receive events in subscription order", func(t *testing.T) {
		bus := service.NewEventBus()

		var order []string
		bus.Subscribe(func(ev service.BridgeEvent) {
			order = append(order, "first")
		})
		bus.Subscribe(func(ev service.BridgeEvent) {
			order = append(order, "second")
		})

		bus.Publish(service.BridgeEvent{Kind: service.EventConnected})
		assert.Equal(t, []string{"first", "second"}, order)
	})

	t.Run("unsubscribed listeners stop receiving", func(t *testing.T) {
		bus := service.NewEventBus()

		var count int
		unsubscribe := bus.Subscribe(func(ev service.BridgeEvent) {
			count++
		})

		bus.Publish(service.BridgeEvent{Kind: service.EventConnected})
		unsubscribe()
		bus.Publish(service.BridgeEvent{Kind: service.EventDisconnected})
		assert.Equal(t, 1, count)
	})
}
