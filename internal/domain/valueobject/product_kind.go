package valueobject

import (
	"errors"
)

var (
	ErrInvalidProductKind = errors.New("invalid product kind")
)

type ProductKind string

const (
	ProductInApp        ProductKind = "inapp"
	ProductSubscription ProductKind = "subs"
)

// NewProductKind creates a new ProductKind value object
func NewProductKind(kind string) (ProductKind, error) {
	k := ProductKind(kind)
	switch k {
	case ProductInApp, ProductSubscription:
		return k, nil
	default:
		return "", ErrInvalidProductKind
	}
}

// String returns the string representation of the kind
func (k ProductKind) String() string {
	return string(k)
}

// IsSubscription returns true if the kind is a subscription
func (k ProductKind) IsSubscription() bool {
	return k == ProductSubscription
}
