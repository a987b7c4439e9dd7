package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	domainErrors "github.com/bivex/billing-bridge/internal/domain/errors"
	"github.com/bivex/billing-bridge/internal/domain/platform"
	"github.com/bivex/billing-bridge/internal/domain/valueobject"
)

// ConnectionResult is what Connect reports: the state that was reached
// and, when that state is Failed, the underlying reason.
type ConnectionResult struct {
	State valueobject.ConnectionState
	Err   error
}

// ConnectionManager owns the single process-wide connection to the
// active billing backend.
//
// State machine: Disconnected → Connecting → {Connected, Failed};
// Connected → Disconnected via Disconnect; Failed → Connecting via a
// retried Connect. Retries are caller-driven; the manager applies no
// backoff of its own.
type ConnectionManager struct {
	mu         sync.Mutex
	adapter    platform.Adapter
	bus        *EventBus
	logger     *zap.Logger
	state      valueobject.ConnectionState
	lastResult ConnectionResult
	// detach removes native event subscriptions before teardown; set by
	// the owner of the dispatch loop.
	detach func()
}

// NewConnectionManager creates a manager in the Disconnected state
func NewConnectionManager(adapter platform.Adapter, bus *EventBus, logger *zap.Logger) *ConnectionManager {
	return &ConnectionManager{
		adapter: adapter,
		bus:     bus,
		logger:  logger,
		state:   valueobject.ConnDisconnected,
	}
}

// SetDetach registers the hook that removes native event subscriptions
// during Disconnect, before the native teardown call.
func (m *ConnectionManager) SetDetach(detach func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detach = detach
}

// Connect establishes the billing connection. Calls made while a
// connection attempt is in progress or already established return the
// existing result without re-issuing the native call: double-initializing
// the billing client is unsafe on both backends.
func (m *ConnectionManager) Connect(ctx context.Context) ConnectionResult {
	m.mu.Lock()
	if m.state == valueobject.ConnConnecting || m.state == valueobject.ConnConnected {
		res := m.lastResult
		m.mu.Unlock()
		return res
	}
	m.state = valueobject.ConnConnecting
	m.lastResult = ConnectionResult{State: valueobject.ConnConnecting}
	m.mu.Unlock()

	m.logger.Info("connecting to billing backend",
		zap.String("platform", m.adapter.Platform().String()))

	if err := m.adapter.InitConnection(ctx); err != nil {
		connErr := &domainErrors.ConnectionError{Op: "init", Err: err}
		m.mu.Lock()
		m.state = valueobject.ConnFailed
		m.lastResult = ConnectionResult{State: valueobject.ConnFailed, Err: connErr}
		res := m.lastResult
		m.mu.Unlock()

		m.logger.Error("billing connection failed", zap.Error(connErr))
		m.bus.Publish(BridgeEvent{Kind: EventConnectionFailed, Err: connErr})
		return res
	}

	m.mu.Lock()
	m.state = valueobject.ConnConnected
	m.lastResult = ConnectionResult{State: valueobject.ConnConnected}
	res := m.lastResult
	m.mu.Unlock()

	m.logger.Info("billing backend connected")
	m.bus.Publish(BridgeEvent{Kind: EventConnected})
	return res
}

// Disconnect tears the connection down. The transition to Disconnected
// is unconditional: a failed native teardown is logged, never surfaced
// as a failure to callers.
func (m *ConnectionManager) Disconnect(ctx context.Context) bool {
	m.mu.Lock()
	if m.state == valueobject.ConnDisconnected {
		m.mu.Unlock()
		return true
	}
	detach := m.detach
	m.mu.Unlock()

	if detach != nil {
		detach()
	}

	if err := m.adapter.EndConnection(ctx); err != nil {
		m.logger.Warn("native teardown failed", zap.Error(err))
	}

	m.mu.Lock()
	m.state = valueobject.ConnDisconnected
	m.lastResult = ConnectionResult{State: valueobject.ConnDisconnected}
	m.mu.Unlock()

	m.logger.Info("billing backend disconnected")
	m.bus.Publish(BridgeEvent{Kind: EventDisconnected})
	return true
}

// CurrentState returns the connection state
func (m *ConnectionManager) CurrentState() valueobject.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// RequireConnected returns ErrNotConnected unless the state is Connected.
// Product fetches, purchase requests and finish calls are gated on it.
func (m *ConnectionManager) RequireConnected() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != valueobject.ConnConnected {
		return domainErrors.ErrNotConnected
	}
	return nil
}
