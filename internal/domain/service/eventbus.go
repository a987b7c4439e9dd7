package service

import (
	"sync"

	"github.com/bivex/billing-bridge/internal/domain/entity"
)

type BridgeEventKind string

const (
	EventConnected               BridgeEventKind = "connected"
	EventConnectionFailed        BridgeEventKind = "connection_failed"
	EventDisconnected            BridgeEventKind = "disconnected"
	EventTransactionFinished     BridgeEventKind = "transaction_finished"
	EventTransactionFinishFailed BridgeEventKind = "transaction_finish_failed"
	EventPurchasePending         BridgeEventKind = "purchase_pending"
	EventPurchaseFailed          BridgeEventKind = "purchase_failed"
	EventProductsReady           BridgeEventKind = "products_ready"
)

// BridgeEvent is what the core fans out to application-level listeners.
type BridgeEvent struct {
	Kind     BridgeEventKind
	Purchase *entity.Purchase
	Batch    *entity.ProductBatch
	Err      error
}

// Subscriber receives bridge events. Subscribers run synchronously on
// the publishing goroutine; long work belongs on the subscriber's side.
type Subscriber func(BridgeEvent)

// EventBus is an ordered fan-out: subscribers are invoked in
// subscription order, one event at a time, on the publisher's context.
type EventBus struct {
	mu     sync.Mutex
	nextID int
	order  []int
	subs   map[int]Subscriber
}

// NewEventBus creates an empty event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subs: make(map[int]Subscriber),
	}
}

// Subscribe registers a subscriber and returns a function that removes it
func (b *EventBus) Subscribe(fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.order = append(b.order, id)
	b.subs[id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
		for i, v := range b.order {
			if v == id {
				b.order = append(b.order[:i], b.order[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers the event to every subscriber in subscription order
func (b *EventBus) Publish(ev BridgeEvent) {
	b.mu.Lock()
	order := make([]int, len(b.order))
	copy(order, b.order)
	subs := make(map[int]Subscriber, len(b.subs))
	for id, fn := range b.subs {
		subs[id] = fn
	}
	b.mu.Unlock()

	for _, id := range order {
		if fn, ok := subs[id]; ok {
			fn(ev)
		}
	}
}
