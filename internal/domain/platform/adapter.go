package platform

import (
	"context"

	"github.com/bivex/billing-bridge/internal/domain/valueobject"
)

// Token correlates an asynchronously delivered result with the logical
// request that triggered it. Adapters that resolve a call synchronously
// return an empty token.
type Token string

// PurchaseOptions carries per-platform knobs for a purchase request.
type PurchaseOptions struct {
	Quantity            int
	ObfuscatedAccountID string // Android
	AppAccountToken     string // iOS
}

// Adapter is the uniform call surface over the native billing backends.
// Implementations wrap Google Play Billing or StoreKit 2; the core never
// talks to a store SDK directly.
//
// Calls that the active platform answers synchronously return a resolved
// value and an empty Token. Calls the platform answers out-of-band
// return a nil value and a non-empty Token; the real result arrives
// later on the Events channel carrying the same token.
type Adapter interface {
	Platform() valueobject.Platform

	InitConnection(ctx context.Context) error
	EndConnection(ctx context.Context) error

	FetchProducts(ctx context.Context, skus []string, kind valueobject.ProductKind) (*RawProductBatch, Token, error)
	RequestPurchase(ctx context.Context, sku string, opts PurchaseOptions) (*RawPurchase, Token, error)
	GetAvailablePurchases(ctx context.Context) ([]RawPurchase, error)

	// Acknowledge confirms receipt of a non-consumable Android purchase.
	Acknowledge(ctx context.Context, purchaseToken string) error
	// Consume marks a consumable Android purchase as redeemed.
	Consume(ctx context.Context, purchaseToken string) error
	// FinishTransaction removes an iOS transaction from the pending queue.
	FinishTransaction(ctx context.Context, transactionID string) error

	Events() <-chan Event
}
