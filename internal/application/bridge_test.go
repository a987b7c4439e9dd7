package application_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bivex/billing-bridge/internal/application"
	domainErrors "github.com/bivex/billing-bridge/internal/domain/errors"
	"github.com/bivex/billing-bridge/internal/domain/platform"
	"github.com/bivex/billing-bridge/internal/domain/service"
	"github.com/bivex/billing-bridge/internal/domain/valueobject"
	"github.com/bivex/billing-bridge/internal/infrastructure/config"
	"github.com/bivex/billing-bridge/internal/infrastructure/platform/simulated"
	"github.com/bivex/billing-bridge/tests/mocks"
)

func testConfig() *config.Config {
	return &config.Config{
		Environment: "development",
		Correlation: config.CorrelationConfig{Timeout: time.Second},
		Recovery:    config.RecoveryConfig{AutoRun: true},
	}
}

func classify(productID string) valueobject.ProductClass {
	if productID == "coins_100" {
		return valueobject.ClassConsumable
	}
	return valueobject.ClassNonConsumable
}

// eventRecorder collects bridge events safely across goroutines.
type eventRecorder struct {
	mu     sync.Mutex
	events []service.BridgeEvent
}

func (r *eventRecorder) record(ev service.BridgeEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) kinds() []service.BridgeEventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]service.BridgeEventKind, len(r.events))
	for i, ev := range r.events {
		kinds[i] = ev.Kind
	}
	return kinds
}

func simulatedCatalog() []simulated.CatalogEntry {
	coins := int64(990_000)
	premium := int64(4_990_000)
	return []simulated.CatalogEntry{
		{SKU: "coins_100", Title: "100 Coins", DisplayPrice: "$0.99", PriceMicros: &coins, Currency: "USD", Kind: valueobject.ProductInApp},
		{SKU: "premium_unlock", Title: "Premium", DisplayPrice: "$4.99", PriceMicros: &premium, Currency: "USD", Kind: valueobject.ProductInApp},
	}
}

func TestBillingBridgeSynchronousPlatform(t *testing.T) {
	ctx := context.Background()

	adapter := simulated.New(valueobject.PlatformAndroid, false)
	adapter.SetCatalog(simulatedCatalog()...)
	adapter.SeedOwnedPurchase(platform.RawPurchase{
		Platform:    valueobject.PlatformAndroid,
		AndroidJSON: `{"orderId":"SEED-1","productId":"coins_100","purchaseToken":"seed-token","purchaseState":1,"purchaseTime":1700000000000}`,
	})

	bridge := application.New(adapter, classify, testConfig(), zap.NewNop())
	recorder := &eventRecorder{}
	defer bridge.Subscribe(recorder.record)()

	t.Run("operations are gated before connect", func(t *testing.T) {
		_, err := bridge.FetchProducts(ctx, []string{"coins_100"}, valueobject.ProductInApp)
		assert.ErrorIs(t, err, domainErrors.ErrNotConnected)
		_, err = bridge.RequestPurchase(ctx, "coins_100")
		assert.ErrorIs(t, err, domainErrors.ErrNotConnected)
	})

	t.Run("connect recovers the seeded purchase", func(t *testing.T) {
		res, err := bridge.Connect(ctx)
		require.NoError(t, err)
		assert.Equal(t, valueobject.ConnConnected, res.State)

		assert.Equal(t, []string{"seed-token"}, adapter.Consumed())
		assert.Equal(t, 1, bridge.ProcessedCount())
	})

	t.Run("fetch resolves from the call return", func(t *testing.T) {
		batch, err := bridge.FetchProducts(ctx, []string{"coins_100", "premium_unlock"}, valueobject.ProductInApp)
		require.NoError(t, err)
		assert.Len(t, batch.Products, 2)

		product, ok := batch.Find("coins_100")
		require.True(t, ok)
		assert.Equal(t, "$0.99", product.DisplayPrice)
	})

	t.Run("purchase is reconciled in-line", func(t *testing.T) {
		purchase, err := bridge.RequestPurchase(ctx, "coins_100")
		require.NoError(t, err)
		assert.Equal(t, valueobject.PurchasePurchased, purchase.State)
		assert.Len(t, adapter.Consumed(), 2)
		assert.Equal(t, 2, bridge.ProcessedCount())
	})

	t.Run("manual recovery replays as already processed", func(t *testing.T) {
		outcomes, err := bridge.RecoverPendingPurchases(ctx)
		require.NoError(t, err)
		require.Len(t, outcomes, 1)
		assert.Equal(t, service.OutcomeAlreadyProcessed, outcomes[0].Status)

		// Still exactly one consume for the seeded token.
		assert.Len(t, adapter.Consumed(), 2)
	})

	t.Run("disconnect is observable and events were ordered", func(t *testing.T) {
		assert.True(t, bridge.Disconnect(ctx))
		assert.Equal(t, valueobject.ConnDisconnected, bridge.CurrentState())

		kinds := recorder.kinds()
		assert.Equal(t, service.EventConnected, kinds[0])
		assert.Contains(t, kinds, service.EventTransactionFinished)
		assert.Contains(t, kinds, service.EventDisconnected)
	})
}

func TestBillingBridgeAsynchronousPlatform(t *testing.T) {
	ctx := context.Background()

	adapter := simulated.New(valueobject.PlatformIOS, true)
	adapter.SetCatalog(simulatedCatalog()...)

	bridge := application.New(adapter, classify, testConfig(), zap.NewNop())

	_, err := bridge.Connect(ctx)
	require.NoError(t, err)

	t.Run("fetch resolves through the event channel", func(t *testing.T) {
		batch, err := bridge.FetchProducts(ctx, []string{"premium_unlock"}, valueobject.ProductInApp)
		require.NoError(t, err)
		require.Len(t, batch.Products, 1)
		assert.Equal(t, valueobject.PlatformIOS, batch.Platform)
	})

	t.Run("purchase resolves and is finished through the event channel", func(t *testing.T) {
		purchase, err := bridge.RequestPurchase(ctx, "premium_unlock")
		require.NoError(t, err)
		assert.Equal(t, valueobject.PurchasePurchased, purchase.State)
		assert.Equal(t, []string{purchase.TransactionID}, adapter.Finished())
	})

	bridge.Disconnect(ctx)
}

func TestBillingBridgeCorrelationPolicies(t *testing.T) {
	ctx := context.Background()

	newBridge := func(timeout time.Duration) (*application.BillingBridge, *mocks.MockPlatformAdapter) {
		adapter := mocks.NewMockPlatformAdapter(valueobject.PlatformIOS)
		cfg := &config.Config{
			Correlation: config.CorrelationConfig{Timeout: timeout},
			Recovery:    config.RecoveryConfig{AutoRun: false},
		}
		return application.New(adapter, classify, cfg, zap.NewNop()), adapter
	}

	t.Run("missing async response resolves to timeout", func(t *testing.T) {
		bridge, adapter := newBridge(30 * time.Millisecond)
		adapter.On("InitConnection", ctx).Return(nil)
		adapter.On("FetchProducts", ctx, []string{"x"}, valueobject.ProductInApp).
			Return(nil, platform.Token("tok-lost"), nil)

		_, err := bridge.Connect(ctx)
		require.NoError(t, err)

		_, err = bridge.FetchProducts(ctx, []string{"x"}, valueobject.ProductInApp)
		assert.ErrorIs(t, err, domainErrors.ErrRequestTimeout)
	})

	t.Run("colliding fetch is rejected while one is in flight", func(t *testing.T) {
		bridge, adapter := newBridge(200 * time.Millisecond)
		adapter.On("InitConnection", ctx).Return(nil)
		adapter.On("FetchProducts", ctx, []string{"x"}, valueobject.ProductInApp).
			Return(nil, platform.Token("tok-slow"), nil)

		_, err := bridge.Connect(ctx)
		require.NoError(t, err)

		firstDone := make(chan error, 1)
		go func() {
			_, err := bridge.FetchProducts(ctx, []string{"x"}, valueobject.ProductInApp)
			firstDone <- err
		}()

		// Wait until the first request holds the slot.
		require.Eventually(t, func() bool {
			_, err := bridge.FetchProducts(ctx, []string{"x"}, valueobject.ProductInApp)
			return err != nil && err == domainErrors.ErrRequestAlreadyInFlight
		}, 100*time.Millisecond, 5*time.Millisecond)

		assert.ErrorIs(t, <-firstDone, domainErrors.ErrRequestTimeout)
	})

	t.Run("user cancellation is surfaced but not a failure event", func(t *testing.T) {
		bridge, adapter := newBridge(time.Second)
		adapter.On("InitConnection", ctx).Return(nil)
		adapter.On("RequestPurchase", ctx, "coins_100", platform.PurchaseOptions{Quantity: 1}).
			Return(nil, platform.Token("tok-cancel"), nil)

		recorder := &eventRecorder{}
		defer bridge.Subscribe(recorder.record)()

		_, err := bridge.Connect(ctx)
		require.NoError(t, err)

		go func() {
			time.Sleep(10 * time.Millisecond)
			adapter.Emit(platform.Event{
				Kind:  platform.EventPurchaseError,
				Token: "tok-cancel",
				Err:   domainErrors.ErrUserCancelled,
			})
		}()

		_, err = bridge.RequestPurchase(ctx, "coins_100")
		assert.ErrorIs(t, err, domainErrors.ErrUserCancelled)
		assert.NotContains(t, recorder.kinds(), service.EventPurchaseFailed)
	})
}

// rejectingVerifier refuses every receipt.
type rejectingVerifier struct{}

func (rejectingVerifier) Verify(ctx context.Context, p valueobject.Platform, receiptData, productID string) (bool, error) {
	return false, nil
}

func TestBillingBridgeVerification(t *testing.T) {
	ctx := context.Background()

	adapter := simulated.New(valueobject.PlatformAndroid, false)
	adapter.SetCatalog(simulatedCatalog()...)

	cfg := testConfig()
	bridge := application.New(adapter, classify, cfg, zap.NewNop(),
		application.WithVerifier(rejectingVerifier{}))

	recorder := &eventRecorder{}
	defer bridge.Subscribe(recorder.record)()

	_, err := bridge.Connect(ctx)
	require.NoError(t, err)

	_, err = bridge.RequestPurchase(ctx, "coins_100")
	assert.ErrorIs(t, err, application.ErrReceiptRejected)

	// Rejected purchases are never settled with the store.
	assert.Empty(t, adapter.Consumed())
	assert.Equal(t, 0, bridge.ProcessedCount())
	assert.Contains(t, recorder.kinds(), service.EventPurchaseFailed)
}
