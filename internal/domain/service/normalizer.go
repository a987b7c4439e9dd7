package service

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bivex/billing-bridge/internal/domain/entity"
	domainErrors "github.com/bivex/billing-bridge/internal/domain/errors"
	"github.com/bivex/billing-bridge/internal/domain/platform"
	"github.com/bivex/billing-bridge/internal/domain/valueobject"
)

// EventNormalizer turns opaque native payloads into canonical records.
// It is stateless: every method either returns a fully populated record
// or a *NormalizationError carrying the raw payload, never a partial
// record and never a panic across its boundary.
type EventNormalizer struct{}

// NewEventNormalizer creates a normalizer
func NewEventNormalizer() *EventNormalizer {
	return &EventNormalizer{}
}

// androidPurchaseDoc mirrors the serialized Play Billing purchase.
// Acknowledged is a pointer so a document that omits the field (or
// carries an explicit null) normalizes to "not acknowledged", which is
// the only safe reading, rather than to an unknown state.
type androidPurchaseDoc struct {
	OrderID       string `json:"orderId"`
	PackageName   string `json:"packageName"`
	ProductID     string `json:"productId"`
	PurchaseToken string `json:"purchaseToken"`
	PurchaseState int    `json:"purchaseState"`
	PurchaseTime  int64  `json:"purchaseTime"`
	Quantity      int    `json:"quantity"`
	AutoRenewing  bool   `json:"autoRenewing"`
	Acknowledged  *bool  `json:"acknowledged"`
}

// NormalizePurchase converts a raw native purchase payload into the
// canonical record, dispatching on which shape the adapter delivered.
func (n *EventNormalizer) NormalizePurchase(raw platform.RawPurchase) (entity.Purchase, error) {
	switch {
	case raw.AndroidJSON != "":
		return n.normalizeAndroidPurchase(raw.AndroidJSON)
	case raw.IOSTransaction != nil:
		return n.normalizeStoreKitTransaction(raw.IOSTransaction)
	case raw.SignedTransaction != "":
		return n.normalizeSignedTransaction(raw.SignedTransaction)
	default:
		return entity.Purchase{}, &domainErrors.NormalizationError{
			Shape: "purchase",
			Err:   errors.New("empty payload"),
		}
	}
}

func (n *EventNormalizer) normalizeAndroidPurchase(data string) (entity.Purchase, error) {
	var doc androidPurchaseDoc
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return entity.Purchase{}, &domainErrors.NormalizationError{
			Shape:      "android purchase",
			RawPayload: data,
			Err:        err,
		}
	}

	if doc.ProductID == "" || doc.PurchaseToken == "" {
		return entity.Purchase{}, &domainErrors.NormalizationError{
			Shape:      "android purchase",
			RawPayload: data,
			Err:        errors.New("missing productId or purchaseToken"),
		}
	}

	// Pending purchases have no order ID yet; the token is the only
	// stable identifier until the store assigns one.
	transactionID := doc.OrderID
	if transactionID == "" {
		transactionID = doc.PurchaseToken
	}

	quantity := doc.Quantity
	if quantity == 0 {
		quantity = 1
	}

	return entity.Purchase{
		ID:                  transactionID,
		ProductID:           doc.ProductID,
		TransactionID:       transactionID,
		PurchaseToken:       doc.PurchaseToken,
		State:               valueobject.PurchaseStateFromAndroid(doc.PurchaseState),
		TransactionDate:     doc.PurchaseTime,
		Quantity:            quantity,
		IsAutoRenewing:      doc.AutoRenewing,
		AcknowledgedAndroid: doc.Acknowledged != nil && *doc.Acknowledged,
		Platform:            valueobject.PlatformAndroid,
		Store:               valueobject.PlatformAndroid.Store(),
	}, nil
}

func (n *EventNormalizer) normalizeStoreKitTransaction(tx *platform.StoreKitTransaction) (entity.Purchase, error) {
	if tx.ID == "" || tx.ProductID == "" {
		return entity.Purchase{}, &domainErrors.NormalizationError{
			Shape:      "storekit transaction",
			RawPayload: fmt.Sprintf("%+v", *tx),
			Err:        errors.New("missing transaction id or product id"),
		}
	}

	state := valueobject.PurchaseUnknown
	switch tx.TransactionState {
	case "purchased", "":
		state = valueobject.PurchasePurchased
	case "pending":
		state = valueobject.PurchasePending
	case "failed":
		state = valueobject.PurchaseFailed
	}

	quantity := tx.Quantity
	if quantity == 0 {
		quantity = 1
	}

	return entity.Purchase{
		ID:              tx.ID,
		ProductID:       tx.ProductID,
		TransactionID:   tx.ID,
		State:           state,
		TransactionDate: tx.PurchaseDateMillis,
		Quantity:        quantity,
		IsAutoRenewing:  tx.IsAutoRenewing,
		Platform:        valueobject.PlatformIOS,
		Store:           valueobject.PlatformIOS.Store(),
	}, nil
}

// normalizeSignedTransaction decodes a StoreKit 2 JWS transaction
// payload. Only the claims are read here; signature verification is the
// receipt verifier's job, not the normalizer's.
func (n *EventNormalizer) normalizeSignedTransaction(signed string) (entity.Purchase, error) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(signed, claims); err != nil {
		return entity.Purchase{}, &domainErrors.NormalizationError{
			Shape:      "signed transaction",
			RawPayload: signed,
			Err:        err,
		}
	}

	transactionID, _ := claims["transactionId"].(string)
	productID, _ := claims["productId"].(string)
	if transactionID == "" || productID == "" {
		return entity.Purchase{}, &domainErrors.NormalizationError{
			Shape:      "signed transaction",
			RawPayload: signed,
			Err:        errors.New("missing transactionId or productId claim"),
		}
	}

	var purchaseDate int64
	if v, ok := claims["purchaseDate"].(float64); ok {
		purchaseDate = int64(v)
	}
	quantity := 1
	if v, ok := claims["quantity"].(float64); ok && v > 0 {
		quantity = int(v)
	}
	autoRenewing := false
	if v, ok := claims["type"].(string); ok {
		autoRenewing = v == "Auto-Renewable Subscription"
	}

	// A signed transaction only exists for a completed purchase.
	return entity.Purchase{
		ID:              transactionID,
		ProductID:       productID,
		TransactionID:   transactionID,
		State:           valueobject.PurchasePurchased,
		TransactionDate: purchaseDate,
		Quantity:        quantity,
		IsAutoRenewing:  autoRenewing,
		Platform:        valueobject.PlatformIOS,
		Store:           valueobject.PlatformIOS.Store(),
	}, nil
}

// androidProductDoc mirrors one entry of the serialized Play Billing
// product details response. PriceAmountMicros is a pointer: some
// subscription tiers come back without a numeric price at all.
type androidProductDoc struct {
	ProductID         string `json:"productId"`
	Title             string `json:"title"`
	Description       string `json:"description"`
	FormattedPrice    string `json:"formattedPrice"`
	PriceAmountMicros *int64 `json:"priceAmountMicros"`
	PriceCurrencyCode string `json:"priceCurrencyCode"`
}

type androidProductBatchDoc struct {
	Products []androidProductDoc `json:"products"`
}

// NormalizeProducts converts a raw native catalog payload into a
// canonical product batch.
func (n *EventNormalizer) NormalizeProducts(raw platform.RawProductBatch) (*entity.ProductBatch, error) {
	if raw.AndroidJSON != "" {
		return n.normalizeAndroidProducts(raw)
	}
	return n.normalizeStoreKitProducts(raw)
}

func (n *EventNormalizer) normalizeAndroidProducts(raw platform.RawProductBatch) (*entity.ProductBatch, error) {
	var doc androidProductBatchDoc
	if err := json.Unmarshal([]byte(raw.AndroidJSON), &doc); err != nil {
		return nil, &domainErrors.NormalizationError{
			Shape:      "android product batch",
			RawPayload: raw.AndroidJSON,
			Err:        err,
		}
	}

	batch := &entity.ProductBatch{Platform: valueobject.PlatformAndroid}
	for _, p := range doc.Products {
		if p.ProductID == "" {
			return nil, &domainErrors.NormalizationError{
				Shape:      "android product batch",
				RawPayload: raw.AndroidJSON,
				Err:        errors.New("product entry without productId"),
			}
		}
		var price *float64
		if p.PriceAmountMicros != nil {
			v := float64(*p.PriceAmountMicros) / 1e6
			price = &v
		}
		batch.Products = append(batch.Products, entity.Product{
			ID:           p.ProductID,
			Title:        p.Title,
			Description:  p.Description,
			DisplayPrice: p.FormattedPrice,
			Price:        price,
			Currency:     p.PriceCurrencyCode,
			Kind:         raw.Kind,
			Platform:     valueobject.PlatformAndroid,
		})
	}
	return batch, nil
}

func (n *EventNormalizer) normalizeStoreKitProducts(raw platform.RawProductBatch) (*entity.ProductBatch, error) {
	batch := &entity.ProductBatch{Platform: valueobject.PlatformIOS}
	for _, p := range raw.IOSProducts {
		if p.ID == "" {
			return nil, &domainErrors.NormalizationError{
				Shape:      "storekit product batch",
				RawPayload: fmt.Sprintf("%+v", raw.IOSProducts),
				Err:        errors.New("product entry without id"),
			}
		}
		batch.Products = append(batch.Products, entity.Product{
			ID:           p.ID,
			Title:        p.DisplayName,
			Description:  p.Description,
			DisplayPrice: p.DisplayPrice,
			Price:        p.Price,
			Currency:     p.CurrencyCode,
			Kind:         raw.Kind,
			Platform:     valueobject.PlatformIOS,
			Storefront:   p.Storefront,
		})
	}
	return batch, nil
}
