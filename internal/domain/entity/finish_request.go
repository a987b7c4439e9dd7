package entity

// FinishRequest is the transient command consumed once by the
// reconciler: settle this purchase with the store.
type FinishRequest struct {
	Purchase     Purchase
	IsConsumable bool
}

// NewFinishRequest creates a finish request for a purchase
func NewFinishRequest(purchase Purchase, isConsumable bool) FinishRequest {
	return FinishRequest{
		Purchase:     purchase,
		IsConsumable: isConsumable,
	}
}
