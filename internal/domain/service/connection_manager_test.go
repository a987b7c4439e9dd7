package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	domainErrors "github.com/bivex/billing-bridge/internal/domain/errors"
	"github.com/bivex/billing-bridge/internal/domain/service"
	"github.com/bivex/billing-bridge/internal/domain/valueobject"
	"github.com/bivex/billing-bridge/tests/mocks"
)

func TestConnectionManager(t *testing.T) {
	ctx := context.Background()

	t.Run("connect transitions to connected and emits event", func(t *testing.T) {
		adapter := mocks.NewMockPlatformAdapter(valueobject.PlatformAndroid)
		bus := service.NewEventBus()
		manager := service.NewConnectionManager(adapter, bus, zap.NewNop())

		var events []service.BridgeEventKind
		bus.Subscribe(func(ev service.BridgeEvent) {
			events = append(events, ev.Kind)
		})

		adapter.On("InitConnection", ctx).Return(nil)

		res := manager.Connect(ctx)
		require.NoError(t, res.Err)
		assert.Equal(t, valueobject.ConnConnected, res.State)
		assert.Equal(t, valueobject.ConnConnected, manager.CurrentState())
		assert.Equal(t, []service.BridgeEventKind{service.EventConnected}, events)
	})

	t.Run("repeated connect coalesces without a second native call", func(t *testing.T) {
		adapter := mocks.NewMockPlatformAdapter(valueobject.PlatformAndroid)
		manager := service.NewConnectionManager(adapter, service.NewEventBus(), zap.NewNop())

		adapter.On("InitConnection", ctx).Return(nil)

		first := manager.Connect(ctx)
		second := manager.Connect(ctx)
		assert.Equal(t, first, second)
		adapter.AssertNumberOfCalls(t, "InitConnection", 1)
	})

	t.Run("native init failure lands on failed with reason", func(t *testing.T) {
		adapter := mocks.NewMockPlatformAdapter(valueobject.PlatformIOS)
		bus := service.NewEventBus()
		manager := service.NewConnectionManager(adapter, bus, zap.NewNop())

		var failure error
		bus.Subscribe(func(ev service.BridgeEvent) {
			if ev.Kind == service.EventConnectionFailed {
				failure = ev.Err
			}
		})

		boom := errors.New("billing service unavailable")
		adapter.On("InitConnection", ctx).Return(boom)

		res := manager.Connect(ctx)
		assert.Equal(t, valueobject.ConnFailed, res.State)

		var connErr *domainErrors.ConnectionError
		require.True(t, errors.As(res.Err, &connErr))
		assert.ErrorIs(t, failure, connErr)
	})

	t.Run("failed state allows a retry", func(t *testing.T) {
		adapter := mocks.NewMockPlatformAdapter(valueobject.PlatformAndroid)
		manager := service.NewConnectionManager(adapter, service.NewEventBus(), zap.NewNop())

		adapter.On("InitConnection", ctx).Return(errors.New("transient")).Once()
		adapter.On("InitConnection", ctx).Return(nil)

		assert.Equal(t, valueobject.ConnFailed, manager.Connect(ctx).State)
		assert.Equal(t, valueobject.ConnConnected, manager.Connect(ctx).State)
		adapter.AssertNumberOfCalls(t, "InitConnection", 2)
	})

	t.Run("disconnect detaches before teardown and is always observable", func(t *testing.T) {
		adapter := mocks.NewMockPlatformAdapter(valueobject.PlatformAndroid)
		manager := service.NewConnectionManager(adapter, service.NewEventBus(), zap.NewNop())

		var order []string
		manager.SetDetach(func() {
			order = append(order, "detach")
		})

		adapter.On("InitConnection", ctx).Return(nil)
		adapter.On("EndConnection", ctx).Return(errors.New("teardown failed"))

		manager.Connect(ctx)
		ok := manager.Disconnect(ctx)

		// Native teardown failed, but the transition happened anyway.
		assert.True(t, ok)
		assert.Equal(t, valueobject.ConnDisconnected, manager.CurrentState())
		assert.Equal(t, []string{"detach"}, order)
	})

	t.Run("operations are gated until connected", func(t *testing.T) {
		adapter := mocks.NewMockPlatformAdapter(valueobject.PlatformAndroid)
		manager := service.NewConnectionManager(adapter, service.NewEventBus(), zap.NewNop())

		assert.ErrorIs(t, manager.RequireConnected(), domainErrors.ErrNotConnected)

		adapter.On("InitConnection", ctx).Return(nil)
		manager.Connect(ctx)
		assert.NoError(t, manager.RequireConnected())
	})
}
