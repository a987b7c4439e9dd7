package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/bivex/billing-bridge/internal/domain/platform"
	"github.com/bivex/billing-bridge/internal/domain/valueobject"
)

// MockPlatformAdapter is a mock implementation of platform.Adapter
type MockPlatformAdapter struct {
	mock.Mock
	platform valueobject.Platform
	events   chan platform.Event
}

// NewMockPlatformAdapter creates a new mock adapter for the platform
func NewMockPlatformAdapter(p valueobject.Platform) *MockPlatformAdapter {
	return &MockPlatformAdapter{
		platform: p,
		events:   make(chan platform.Event, 16),
	}
}

// Emit delivers an event on the mock's event channel
func (m *MockPlatformAdapter) Emit(ev platform.Event) {
	m.events <- ev
}

func (m *MockPlatformAdapter) Platform() valueobject.Platform {
	return m.platform
}

func (m *MockPlatformAdapter) Events() <-chan platform.Event {
	return m.events
}

func (m *MockPlatformAdapter) InitConnection(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockPlatformAdapter) EndConnection(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockPlatformAdapter) FetchProducts(ctx context.Context, skus []string, kind valueobject.ProductKind) (*platform.RawProductBatch, platform.Token, error) {
	args := m.Called(ctx, skus, kind)
	var batch *platform.RawProductBatch
	if args.Get(0) != nil {
		batch = args.Get(0).(*platform.RawProductBatch)
	}
	return batch, args.Get(1).(platform.Token), args.Error(2)
}

func (m *MockPlatformAdapter) RequestPurchase(ctx context.Context, sku string, opts platform.PurchaseOptions) (*platform.RawPurchase, platform.Token, error) {
	args := m.Called(ctx, sku, opts)
	var raw *platform.RawPurchase
	if args.Get(0) != nil {
		raw = args.Get(0).(*platform.RawPurchase)
	}
	return raw, args.Get(1).(platform.Token), args.Error(2)
}

func (m *MockPlatformAdapter) GetAvailablePurchases(ctx context.Context) ([]platform.RawPurchase, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]platform.RawPurchase), args.Error(1)
}

func (m *MockPlatformAdapter) Acknowledge(ctx context.Context, purchaseToken string) error {
	args := m.Called(ctx, purchaseToken)
	return args.Error(0)
}

func (m *MockPlatformAdapter) Consume(ctx context.Context, purchaseToken string) error {
	args := m.Called(ctx, purchaseToken)
	return args.Error(0)
}

func (m *MockPlatformAdapter) FinishTransaction(ctx context.Context, transactionID string) error {
	args := m.Called(ctx, transactionID)
	return args.Error(0)
}
