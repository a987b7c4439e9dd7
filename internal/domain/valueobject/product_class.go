package valueobject

import (
	"errors"
)

var (
	ErrInvalidProductClass = errors.New("invalid product class")
)

// ProductClass is the caller-supplied classification that decides how a
// finished transaction is settled with the store: consumables are
// consumed, everything else is acknowledged (Android) or finished (iOS).
// It is a property of the product, not of the purchase.
type ProductClass string

const (
	ClassConsumable    ProductClass = "consumable"
	ClassNonConsumable ProductClass = "non_consumable"
	ClassSubscription  ProductClass = "subscription"
)

// NewProductClass creates a new ProductClass value object
func NewProductClass(class string) (ProductClass, error) {
	c := ProductClass(class)
	switch c {
	case ClassConsumable, ClassNonConsumable, ClassSubscription:
		return c, nil
	default:
		return "", ErrInvalidProductClass
	}
}

// String returns the string representation of the class
func (c ProductClass) String() string {
	return string(c)
}

// IsConsumable returns true if purchases of this product must be consumed
func (c ProductClass) IsConsumable() bool {
	return c == ClassConsumable
}
