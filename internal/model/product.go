package model

import "time"

// Product is a catalog entry as stored in the `products` table.  Prices are
// kept in cents to avoid floating point drift; the price a buyer actually
// pays is captured on the order item at checkout time, so later edits to
// this record never change an existing order's total.
type Product struct {
	ID          uint64    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	PriceCents  uint32    `json:"price_cents"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PriceAndStock is the slice of catalog data the checkout flow needs for a
// single product: the current unit price and how many units are sellable
// right now.  It is the payload of the catalog service's availability
// endpoint and of the CatalogClient consumed by the order service.
type PriceAndStock struct {
	ProductID  uint64 `json:"product_id"`
	PriceCents uint32 `json:"price_cents"`
	Available  uint32 `json:"available"`
}
