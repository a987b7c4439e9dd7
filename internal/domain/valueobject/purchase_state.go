package valueobject

import (
	"errors"
)

var (
	ErrInvalidPurchaseState = errors.New("invalid purchase state")
)

type PurchaseState string

const (
	PurchasePending   PurchaseState = "pending"
	PurchasePurchased PurchaseState = "purchased"
	PurchaseFailed    PurchaseState = "failed"
	PurchaseUnknown   PurchaseState = "unknown"
)

// NewPurchaseState creates a new PurchaseState value object
func NewPurchaseState(state string) (PurchaseState, error) {
	s := PurchaseState(state)
	switch s {
	case PurchasePending, PurchasePurchased, PurchaseFailed, PurchaseUnknown:
		return s, nil
	default:
		return "", ErrInvalidPurchaseState
	}
}

// PurchaseStateFromAndroid maps the Play Billing integer purchase state.
// 0 = unspecified, 1 = purchased, 2 = pending.
func PurchaseStateFromAndroid(state int) PurchaseState {
	switch state {
	case 1:
		return PurchasePurchased
	case 2:
		return PurchasePending
	default:
		return PurchaseUnknown
	}
}

// String returns the string representation of the state
func (s PurchaseState) String() string {
	return string(s)
}

// IsPurchased returns true if the purchase completed successfully
func (s PurchaseState) IsPurchased() bool {
	return s == PurchasePurchased
}

// IsPending returns true if the purchase is awaiting approval
func (s PurchaseState) IsPending() bool {
	return s == PurchasePending
}

// IsTerminalFailure returns true if the purchase can never complete
func (s PurchaseState) IsTerminalFailure() bool {
	return s == PurchaseFailed || s == PurchaseUnknown
}
