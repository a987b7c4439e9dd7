package entity

import (
	"github.com/bivex/billing-bridge/internal/domain/valueobject"
)

// Product is an immutable store catalog entry.
type Product struct {
	ID           string
	Title        string
	Description  string
	DisplayPrice string
	// Price is nil for items the store reports without a numeric price,
	// e.g. some subscription tiers.
	Price      *float64
	Currency   string
	Kind       valueobject.ProductKind
	Platform   valueobject.Platform
	Storefront string
}

// ProductBatch is the result of a catalog fetch.
type ProductBatch struct {
	Products []Product
	Platform valueobject.Platform
}

// Find returns the product with the given SKU, if present
func (b *ProductBatch) Find(sku string) (Product, bool) {
	for _, p := range b.Products {
		if p.ID == sku {
			return p, true
		}
	}
	return Product{}, false
}
