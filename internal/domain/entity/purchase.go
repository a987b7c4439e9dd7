package entity

import (
	"time"

	"github.com/bivex/billing-bridge/internal/domain/valueobject"
)

// Purchase is the canonical record of a store transaction. It has value
// semantics: records are replaced wholesale, never mutated in place, and
// once the transaction is finished the record is retired from working
// memory.
type Purchase struct {
	ID                  string
	ProductID           string
	TransactionID       string
	PurchaseToken       string // Android only; credential for acknowledge/consume
	State               valueobject.PurchaseState
	TransactionDate     int64 // epoch milliseconds
	Quantity            int
	IsAutoRenewing      bool
	AcknowledgedAndroid bool
	Platform            valueobject.Platform
	Store               string
}

// NewPurchase creates a canonical purchase record
func NewPurchase(id, productID, transactionID string, state valueobject.PurchaseState, platform valueobject.Platform) Purchase {
	return Purchase{
		ID:              id,
		ProductID:       productID,
		TransactionID:   transactionID,
		State:           state,
		TransactionDate: time.Now().UnixMilli(),
		Quantity:        1,
		Platform:        platform,
		Store:           platform.Store(),
	}
}

// IsPurchased returns true if the purchase completed successfully
func (p Purchase) IsPurchased() bool {
	return p.State.IsPurchased()
}

// IsPending returns true if the purchase is awaiting store approval
func (p Purchase) IsPending() bool {
	return p.State.IsPending()
}

// NeedsNativeFinish returns true if a native acknowledge/consume/finish
// call is still required. Android purchases restored from a previous
// session may already be acknowledged.
func (p Purchase) NeedsNativeFinish() bool {
	if p.Platform.IsAndroid() && p.AcknowledgedAndroid {
		return false
	}
	return true
}
