package model

import "time"

// InventoryRecord mirrors one row of the `inventory` table.  There is exactly
// one record per product.  AvailableQty counts units sellable right now;
// ReservedQty counts units held against in-flight orders that have not been
// paid for yet.  Their sum equals the last known total stock and only shrinks
// when a reservation is converted into a permanent deduction after payment.
//
// Rows are mutated exclusively through the reserve/release/confirm statements
// in the inventory repository; nothing else in the system performs a
// read-then-write on these counters.
type InventoryRecord struct {
	ProductID    uint64    `json:"product_id"`
	AvailableQty uint32    `json:"available_qty"`
	ReservedQty  uint32    `json:"reserved_qty"`
	UpdatedAt    time.Time `json:"updated_at"`
}
