package platform

import (
	"github.com/bivex/billing-bridge/internal/domain/valueobject"
)

// RawPurchase is the tagged union of native purchase payload shapes.
// Exactly one of the payload fields is populated:
//
//   - AndroidJSON: the serialized Play Billing purchase document
//   - IOSTransaction: an already-typed StoreKit 2 transaction
//   - SignedTransaction: a StoreKit 2 JWS whose claims still need decoding
//
// Raw payloads never travel past the normalizer boundary.
type RawPurchase struct {
	Platform          valueobject.Platform
	AndroidJSON       string
	IOSTransaction    *StoreKitTransaction
	SignedTransaction string
}

// StoreKitTransaction is the typed shape StoreKit 2 hands over for a
// transaction the adapter already decoded.
type StoreKitTransaction struct {
	ID                 string
	ProductID          string
	OriginalID         string
	PurchaseDateMillis int64
	Quantity           int
	IsAutoRenewing     bool
	IsUpgraded         bool
	AppAccountToken    string
	Storefront         string
	TransactionState   string // "purchased", "pending", "failed"
}

// StoreKitProduct is the typed shape StoreKit 2 hands over for a
// catalog entry.
type StoreKitProduct struct {
	ID           string
	DisplayName  string
	Description  string
	DisplayPrice string
	Price        *float64
	CurrencyCode string
	Type         string // "inapp" or "subs"
	Storefront   string
}

// RawProductBatch is the tagged union of native catalog payload shapes.
type RawProductBatch struct {
	Platform    valueobject.Platform
	Kind        valueobject.ProductKind
	AndroidJSON string
	IOSProducts []StoreKitProduct
}
