package application

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/bivex/billing-bridge/internal/domain/entity"
	domainErrors "github.com/bivex/billing-bridge/internal/domain/errors"
	"github.com/bivex/billing-bridge/internal/domain/platform"
	"github.com/bivex/billing-bridge/internal/domain/service"
	"github.com/bivex/billing-bridge/internal/domain/valueobject"
	"github.com/bivex/billing-bridge/internal/infrastructure/config"
	"github.com/bivex/billing-bridge/internal/infrastructure/logging"
)

var (
	// ErrReceiptRejected means the configured verifier refused the
	// purchase; it is never reconciled.
	ErrReceiptRejected = errors.New("receipt rejected by verification")
)

// ReceiptVerifier is the external verification collaborator. Optional:
// when absent, purchases are reconciled on the store's word alone.
type ReceiptVerifier interface {
	Verify(ctx context.Context, platform valueobject.Platform, receiptData, productID string) (bool, error)
}

// Option configures optional bridge collaborators
type Option func(*BillingBridge)

// WithVerifier installs a receipt verifier in the purchase path
func WithVerifier(v ReceiptVerifier) Option {
	return func(b *BillingBridge) {
		b.verifier = v
	}
}

// BillingBridge is the application-facing surface of the reconciliation
// core. One instance owns one connection, one ledger, and one dispatch
// goroutine draining the adapter's event channel; independent instances
// are fully isolated, which is what makes the core testable.
type BillingBridge struct {
	adapter    platform.Adapter
	classifier service.ProductClassifier
	logger     *zap.Logger
	verifier   ReceiptVerifier

	bus        *service.EventBus
	conn       *service.ConnectionManager
	correlator *service.RequestCorrelator
	ledger     *service.TransactionLedger
	normalizer *service.EventNormalizer
	reconciler *service.TransactionReconciler
	recovery   *service.PendingPurchaseRecovery

	autoRecover bool

	mu      sync.Mutex
	active  bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New wires a bridge around the given platform adapter. The classifier
// supplies the consumable/non-consumable/subscription decision for each
// product ID at reconcile time.
func New(
	adapter platform.Adapter,
	classifier service.ProductClassifier,
	cfg *config.Config,
	logger *zap.Logger,
	opts ...Option,
) *BillingBridge {
	bus := service.NewEventBus()
	ledger := service.NewTransactionLedger()
	normalizer := service.NewEventNormalizer()
	reconciler := service.NewTransactionReconciler(adapter, ledger, bus, logger.Named("reconciler"))

	b := &BillingBridge{
		adapter:     adapter,
		classifier:  classifier,
		logger:      logger,
		bus:         bus,
		conn:        service.NewConnectionManager(adapter, bus, logger.Named("connection")),
		correlator:  service.NewRequestCorrelator(cfg.Correlation.Timeout, logger.Named("correlator")),
		ledger:      ledger,
		normalizer:  normalizer,
		reconciler:  reconciler,
		recovery:    service.NewPendingPurchaseRecovery(adapter, normalizer, reconciler, classifier, logger.Named("recovery")),
		autoRecover: cfg.Recovery.AutoRun,
	}
	for _, opt := range opts {
		opt(b)
	}

	b.conn.SetDetach(b.detach)
	return b
}

// Connect establishes the billing connection. On the transition into
// Connected the dispatch loop starts and, when enabled, a recovery pass
// replays every purchase the store still considers unfinished.
func (b *BillingBridge) Connect(ctx context.Context) (service.ConnectionResult, error) {
	res := b.conn.Connect(ctx)
	if res.Err != nil {
		return res, res.Err
	}
	if !res.State.IsConnected() {
		return res, nil
	}

	b.mu.Lock()
	firstTransition := !b.active
	if firstTransition {
		b.active = true
		b.stopCh = make(chan struct{})
		b.doneCh = make(chan struct{})
		go b.dispatch(b.stopCh, b.doneCh)
	}
	b.mu.Unlock()

	if firstTransition && b.autoRecover {
		if _, err := b.recovery.Recover(ctx); err != nil {
			b.logger.Error("recovery pass failed", zap.Error(err))
			logging.CaptureError(err, map[string]string{"component": "recovery"})
		}
	}
	return res, nil
}

// Disconnect tears down the connection; always observable as Disconnected
func (b *BillingBridge) Disconnect(ctx context.Context) bool {
	return b.conn.Disconnect(ctx)
}

// CurrentState returns the connection state
func (b *BillingBridge) CurrentState() valueobject.ConnectionState {
	return b.conn.CurrentState()
}

// Subscribe registers an application-level event listener and returns
// its unsubscribe function. Delivery is in subscription order.
func (b *BillingBridge) Subscribe(fn service.Subscriber) func() {
	return b.bus.Subscribe(fn)
}

// FetchProducts resolves a catalog query through the correlator: a
// synchronous backend answers from the call return, an asynchronous one
// through the event channel within the configured window.
func (b *BillingBridge) FetchProducts(ctx context.Context, skus []string, kind valueobject.ProductKind) (*entity.ProductBatch, error) {
	if err := b.conn.RequireConnected(); err != nil {
		return nil, err
	}

	ch, err := b.correlator.Issue(service.RequestFetchProducts, func() (*service.RequestResult, platform.Token, error) {
		raw, token, err := b.adapter.FetchProducts(ctx, skus, kind)
		if err != nil {
			return nil, "", err
		}
		if raw == nil {
			return nil, token, nil
		}
		batch, err := b.normalizer.NormalizeProducts(*raw)
		if err != nil {
			return nil, "", err
		}
		b.bus.Publish(service.BridgeEvent{Kind: service.EventProductsReady, Batch: batch})
		return &service.RequestResult{Batch: batch}, "", nil
	})
	if err != nil {
		return nil, err
	}

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Batch, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// RequestPurchase starts the purchase flow for one SKU and resolves to
// the reconciled purchase, or to an error such as ErrUserCancelled.
func (b *BillingBridge) RequestPurchase(ctx context.Context, sku string) (*entity.Purchase, error) {
	if err := b.conn.RequireConnected(); err != nil {
		return nil, err
	}

	ch, err := b.correlator.Issue(service.RequestPurchase, func() (*service.RequestResult, platform.Token, error) {
		raw, token, err := b.adapter.RequestPurchase(ctx, sku, platform.PurchaseOptions{Quantity: 1})
		if err != nil {
			return nil, "", err
		}
		if raw == nil {
			return nil, token, nil
		}
		purchase, err := b.processPurchase(ctx, raw)
		if err != nil {
			return nil, "", err
		}
		return &service.RequestResult{Purchase: &purchase}, "", nil
	})
	if err != nil {
		return nil, err
	}

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Purchase, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Reconcile settles an already-normalized purchase with the store. The
// classification is the caller's: consumability is a product property.
func (b *BillingBridge) Reconcile(ctx context.Context, purchase entity.Purchase, class valueobject.ProductClass) (service.ReconcileOutcome, error) {
	if err := b.conn.RequireConnected(); err != nil {
		return service.ReconcileOutcome{}, err
	}
	return b.reconciler.Reconcile(ctx, entity.NewFinishRequest(purchase, class.IsConsumable())), nil
}

// RecoverPendingPurchases runs a manual recovery pass
func (b *BillingBridge) RecoverPendingPurchases(ctx context.Context) ([]service.ReconcileOutcome, error) {
	if err := b.conn.RequireConnected(); err != nil {
		return nil, err
	}
	return b.recovery.Recover(ctx)
}

// ProcessedCount exposes how many transactions this session has finished
func (b *BillingBridge) ProcessedCount() int {
	return b.ledger.ProcessedCount()
}

// detach stops the dispatch loop and fails outstanding correlated
// requests; runs before the native teardown call during Disconnect.
func (b *BillingBridge) detach() {
	b.mu.Lock()
	if !b.active {
		b.mu.Unlock()
		return
	}
	b.active = false
	close(b.stopCh)
	done := b.doneCh
	b.mu.Unlock()

	<-done
	b.correlator.FailAll(domainErrors.ErrNotConnected)
}

// dispatch is the single logical context of the core: it drains the
// adapter's event channel and serializes every reconcile invocation.
func (b *BillingBridge) dispatch(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		case ev, ok := <-b.adapter.Events():
			if !ok {
				return
			}
			b.handleEvent(ev)
		}
	}
}

func (b *BillingBridge) handleEvent(ev platform.Event) {
	ctx := context.Background()

	switch ev.Kind {
	case platform.EventProductsFetched:
		b.handleProductsFetched(ev)

	case platform.EventPurchaseUpdated:
		b.handlePurchaseUpdated(ctx, ev)

	case platform.EventPurchaseError:
		err := ev.Err
		if err == nil {
			err = domainErrors.ErrConnectionFailed
		}
		if !b.resolvePurchaseWaiter(ev.Token, service.RequestResult{Err: err}) {
			b.logger.Warn("unsolicited purchase error", zap.Error(err))
		}
		if domainErrors.IsUserFacing(err) {
			b.bus.Publish(service.BridgeEvent{Kind: service.EventPurchaseFailed, Err: err})
		}

	case platform.EventConnected, platform.EventDisconnected:
		b.logger.Debug("native connection event", zap.String("kind", string(ev.Kind)))
	}
}

func (b *BillingBridge) handleProductsFetched(ev platform.Event) {
	if ev.Err != nil {
		b.correlator.ResolveKind(service.RequestFetchProducts, service.RequestResult{Err: ev.Err})
		return
	}
	if ev.Products == nil {
		b.logger.Warn("products event without payload")
		return
	}

	batch, err := b.normalizer.NormalizeProducts(*ev.Products)
	if err != nil {
		b.logger.Error("failed to normalize product batch", zap.Error(err))
		logging.CaptureError(err, map[string]string{"component": "normalizer"})
		b.resolveFetchWaiter(ev.Token, service.RequestResult{Err: err})
		return
	}

	b.bus.Publish(service.BridgeEvent{Kind: service.EventProductsReady, Batch: batch})
	b.resolveFetchWaiter(ev.Token, service.RequestResult{Batch: batch})
}

func (b *BillingBridge) handlePurchaseUpdated(ctx context.Context, ev platform.Event) {
	if ev.Purchase == nil {
		b.logger.Warn("purchase event without payload")
		return
	}

	purchase, err := b.processPurchase(ctx, ev.Purchase)
	if err != nil {
		// One bad purchase never blocks the queue; waiters still get
		// their answer.
		b.resolvePurchaseWaiter(ev.Token, service.RequestResult{Err: err})
		return
	}

	b.resolvePurchaseWaiter(ev.Token, service.RequestResult{Purchase: &purchase})
}

// processPurchase is the shared purchase path for both delivery models:
// normalize, optionally verify, then reconcile.
func (b *BillingBridge) processPurchase(ctx context.Context, raw *platform.RawPurchase) (entity.Purchase, error) {
	purchase, err := b.normalizer.NormalizePurchase(*raw)
	if err != nil {
		b.logger.Error("failed to normalize purchase", zap.Error(err))
		logging.CaptureError(err, map[string]string{"component": "normalizer"})
		b.bus.Publish(service.BridgeEvent{Kind: service.EventPurchaseFailed, Err: err})
		return entity.Purchase{}, err
	}

	if b.verifier != nil && purchase.IsPurchased() {
		if err := b.verifyPurchase(ctx, raw, purchase); err != nil {
			b.bus.Publish(service.BridgeEvent{Kind: service.EventPurchaseFailed, Purchase: &purchase, Err: err})
			return entity.Purchase{}, err
		}
	}

	class := b.classifier(purchase.ProductID)
	outcome := b.reconciler.Reconcile(ctx, entity.NewFinishRequest(purchase, class.IsConsumable()))
	if outcome.Status == service.OutcomeAwaitingApproval {
		b.bus.Publish(service.BridgeEvent{Kind: service.EventPurchasePending, Purchase: &purchase})
	}
	return outcome.Purchase, nil
}

func (b *BillingBridge) verifyPurchase(ctx context.Context, raw *platform.RawPurchase, purchase entity.Purchase) error {
	receipt := raw.AndroidJSON
	if receipt == "" {
		receipt = raw.SignedTransaction
	}
	if receipt == "" {
		// Typed StoreKit payloads carry no verifiable envelope.
		return nil
	}

	ok, err := b.verifier.Verify(ctx, purchase.Platform, receipt, purchase.ProductID)
	if err != nil {
		b.logger.Error("receipt verification errored",
			zap.String("transaction_id", purchase.TransactionID), zap.Error(err))
		logging.CaptureError(err, map[string]string{"component": "verifier"})
		return err
	}
	if !ok {
		b.logger.Warn("receipt rejected",
			zap.String("transaction_id", purchase.TransactionID))
		return ErrReceiptRejected
	}
	return nil
}

func (b *BillingBridge) resolveFetchWaiter(token platform.Token, res service.RequestResult) bool {
	if token != "" && b.correlator.ResolveToken(token, res) {
		return true
	}
	return b.correlator.ResolveKind(service.RequestFetchProducts, res)
}

// resolvePurchaseWaiter answers an outstanding purchase request. Events
// without a token still resolve the in-flight request: on Android the
// purchase-updated stream is the only reply channel a purchase call has.
func (b *BillingBridge) resolvePurchaseWaiter(token platform.Token, res service.RequestResult) bool {
	if token != "" && b.correlator.ResolveToken(token, res) {
		return true
	}
	return b.correlator.ResolveKind(service.RequestPurchase, res)
}
