// Package simulated provides an in-memory billing backend so the whole
// purchase pipeline can be exercised without a device or a store
// account. It supports both delivery models: synchronous call returns
// and asynchronous out-of-band events.
package simulated

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bivex/billing-bridge/internal/domain/platform"
	"github.com/bivex/billing-bridge/internal/domain/valueobject"
)

// CatalogEntry describes one purchasable product of the simulated store.
type CatalogEntry struct {
	SKU          string
	Title        string
	Description  string
	DisplayPrice string
	PriceMicros  *int64
	Currency     string
	Kind         valueobject.ProductKind
}

// Adapter is a scriptable platform.Adapter.
type Adapter struct {
	platform valueobject.Platform
	// async makes fetch/purchase calls return a pending token and
	// deliver the real result on the event channel, like StoreKit 2.
	async bool
	delay time.Duration

	mu       sync.Mutex
	catalog  []CatalogEntry
	owned    []platform.RawPurchase
	events   chan platform.Event
	acks     []string
	consumes []string
	finishes []string
	nextTx   int

	// Fault injection
	InitErr     error
	FetchErr    error
	PurchaseErr error
	FinishErr   error
}

// New creates a simulated adapter for the given platform
func New(p valueobject.Platform, async bool) *Adapter {
	return &Adapter{
		platform: p,
		async:    async,
		delay:    10 * time.Millisecond,
		events:   make(chan platform.Event, 64),
	}
}

// Platform returns the simulated platform identity
func (a *Adapter) Platform() valueobject.Platform {
	return a.platform
}

// Events returns the shared event channel
func (a *Adapter) Events() <-chan platform.Event {
	return a.events
}

// SetCatalog replaces the simulated store catalog
func (a *Adapter) SetCatalog(entries ...CatalogEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.catalog = entries
}

// SeedOwnedPurchase adds a raw purchase to the owned-purchases query
// result, simulating a transaction left unfinished by a previous session.
func (a *Adapter) SeedOwnedPurchase(raw platform.RawPurchase) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.owned = append(a.owned, raw)
}

// InitConnection simulates a billing client handshake
func (a *Adapter) InitConnection(ctx context.Context) error {
	if a.InitErr != nil {
		return a.InitErr
	}
	a.events <- platform.Event{Kind: platform.EventConnected}
	return nil
}

// EndConnection simulates a billing client teardown
func (a *Adapter) EndConnection(ctx context.Context) error {
	a.events <- platform.Event{Kind: platform.EventDisconnected}
	return nil
}

// FetchProducts answers a catalog query in the configured delivery mode
func (a *Adapter) FetchProducts(ctx context.Context, skus []string, kind valueobject.ProductKind) (*platform.RawProductBatch, platform.Token, error) {
	if a.FetchErr != nil {
		return nil, "", a.FetchErr
	}

	batch := a.buildBatch(skus, kind)
	if !a.async {
		return batch, "", nil
	}

	token := platform.Token(uuid.NewString())
	go func() {
		time.Sleep(a.delay)
		a.events <- platform.Event{Kind: platform.EventProductsFetched, Token: token, Products: batch}
	}()
	return nil, token, nil
}

// RequestPurchase starts a purchase flow for the given SKU
func (a *Adapter) RequestPurchase(ctx context.Context, sku string, opts platform.PurchaseOptions) (*platform.RawPurchase, platform.Token, error) {
	if a.PurchaseErr != nil {
		return nil, "", a.PurchaseErr
	}

	raw := a.buildPurchase(sku, opts)
	if !a.async {
		return raw, "", nil
	}

	token := platform.Token(uuid.NewString())
	go func() {
		time.Sleep(a.delay)
		a.events <- platform.Event{Kind: platform.EventPurchaseUpdated, Token: token, Purchase: raw}
	}()
	return nil, token, nil
}

// GetAvailablePurchases returns the seeded owned purchases in seed order
func (a *Adapter) GetAvailablePurchases(ctx context.Context) ([]platform.RawPurchase, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]platform.RawPurchase, len(a.owned))
	copy(out, a.owned)
	return out, nil
}

// Acknowledge records a non-consumable settle call
func (a *Adapter) Acknowledge(ctx context.Context, purchaseToken string) error {
	if a.FinishErr != nil {
		return a.FinishErr
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acks = append(a.acks, purchaseToken)
	return nil
}

// Consume records a consumable settle call
func (a *Adapter) Consume(ctx context.Context, purchaseToken string) error {
	if a.FinishErr != nil {
		return a.FinishErr
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.consumes = append(a.consumes, purchaseToken)
	return nil
}

// FinishTransaction records an iOS finish call
func (a *Adapter) FinishTransaction(ctx context.Context, transactionID string) error {
	if a.FinishErr != nil {
		return a.FinishErr
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.finishes = append(a.finishes, transactionID)
	return nil
}

// Acknowledged returns the purchase tokens acknowledged so far
func (a *Adapter) Acknowledged() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.acks...)
}

// Consumed returns the purchase tokens consumed so far
func (a *Adapter) Consumed() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.consumes...)
}

// Finished returns the transaction IDs finished so far
func (a *Adapter) Finished() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.finishes...)
}

func (a *Adapter) buildBatch(skus []string, kind valueobject.ProductKind) *platform.RawProductBatch {
	a.mu.Lock()
	defer a.mu.Unlock()

	want := make(map[string]bool, len(skus))
	for _, sku := range skus {
		want[sku] = true
	}

	if a.platform.IsAndroid() {
		type productDoc struct {
			ProductID         string `json:"productId"`
			Title             string `json:"title"`
			Description       string `json:"description"`
			FormattedPrice    string `json:"formattedPrice"`
			PriceAmountMicros *int64 `json:"priceAmountMicros,omitempty"`
			PriceCurrencyCode string `json:"priceCurrencyCode"`
		}
		doc := struct {
			Products []productDoc `json:"products"`
		}{}
		for _, e := range a.catalog {
			if e.Kind == kind && want[e.SKU] {
				doc.Products = append(doc.Products, productDoc{
					ProductID:         e.SKU,
					Title:             e.Title,
					Description:       e.Description,
					FormattedPrice:    e.DisplayPrice,
					PriceAmountMicros: e.PriceMicros,
					PriceCurrencyCode: e.Currency,
				})
			}
		}
		data, _ := json.Marshal(doc)
		return &platform.RawProductBatch{
			Platform:    a.platform,
			Kind:        kind,
			AndroidJSON: string(data),
		}
	}

	batch := &platform.RawProductBatch{Platform: a.platform, Kind: kind}
	for _, e := range a.catalog {
		if e.Kind == kind && want[e.SKU] {
			var price *float64
			if e.PriceMicros != nil {
				v := float64(*e.PriceMicros) / 1e6
				price = &v
			}
			batch.IOSProducts = append(batch.IOSProducts, platform.StoreKitProduct{
				ID:           e.SKU,
				DisplayName:  e.Title,
				Description:  e.Description,
				DisplayPrice: e.DisplayPrice,
				Price:        price,
				CurrencyCode: e.Currency,
				Type:         kind.String(),
			})
		}
	}
	return batch
}

func (a *Adapter) buildPurchase(sku string, opts platform.PurchaseOptions) *platform.RawPurchase {
	a.mu.Lock()
	a.nextTx++
	seq := a.nextTx
	a.mu.Unlock()

	quantity := opts.Quantity
	if quantity == 0 {
		quantity = 1
	}

	if a.platform.IsAndroid() {
		doc := map[string]any{
			"orderId":       fmt.Sprintf("GPA.%04d-SIM", seq),
			"packageName":   "com.bivex.simulated",
			"productId":     sku,
			"purchaseToken": uuid.NewString(),
			"purchaseState": 1,
			"purchaseTime":  time.Now().UnixMilli(),
			"quantity":      quantity,
		}
		data, _ := json.Marshal(doc)
		return &platform.RawPurchase{
			Platform:    a.platform,
			AndroidJSON: string(data),
		}
	}

	return &platform.RawPurchase{
		Platform: a.platform,
		IOSTransaction: &platform.StoreKitTransaction{
			ID:                 fmt.Sprintf("%d", 2000000000+seq),
			ProductID:          sku,
			PurchaseDateMillis: time.Now().UnixMilli(),
			Quantity:           quantity,
			TransactionState:   "purchased",
		},
	}
}
