package model

import "time"

// Order status values.  PENDING is the state an order is first persisted in;
// AWAITING_PAYMENT means stock is reserved and the payment gateway has been
// handed the order; CONFIRMED, CANCELLED and FAILED are terminal.
const (
	OrderStatusPending         = "PENDING"
	OrderStatusAwaitingPayment = "AWAITING_PAYMENT"
	OrderStatusConfirmed       = "CONFIRMED"
	OrderStatusCancelled       = "CANCELLED"
	OrderStatusFailed          = "FAILED"
)

// orderTransitions is the complete set of allowed status transitions.  The
// order repository enforces this table inside a conditional UPDATE, so a
// stray caller cannot force an invalid transition even under concurrent
// update attempts.
var orderTransitions = map[string][]string{
	OrderStatusPending:         {OrderStatusAwaitingPayment, OrderStatusCancelled, OrderStatusFailed},
	OrderStatusAwaitingPayment: {OrderStatusConfirmed, OrderStatusCancelled, OrderStatusFailed},
}

// CanTransition reports whether an order may move from one status to another.
// Terminal statuses have no outgoing transitions.
func CanTransition(from, to string) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionSources returns every status from which `to` is reachable.  The
// order repository uses this to build the status guard of its conditional
// UPDATE.
func TransitionSources(to string) []string {
	var from []string
	for src, nexts := range orderTransitions {
		for _, next := range nexts {
			if next == to {
				from = append(from, src)
			}
		}
	}
	return from
}

// IsTerminalStatus reports whether a status permits no further transitions.
func IsTerminalStatus(s string) bool {
	return len(orderTransitions[s]) == 0
}

// Order mirrors the `orders` table plus its `order_items` rows.  Items are an
// immutable snapshot taken at checkout: unit prices are captured from the
// catalog at validation time and the total is fixed from them, so catalog
// price changes never alter an existing order.  Status is the only field
// mutated after creation.
type Order struct {
	ID              uint64      `json:"id"`
	UserID          uint64      `json:"user_id"`
	Status          string      `json:"status"`
	TotalCents      uint64      `json:"total_cents"`
	ShippingAddress string      `json:"shipping_address"`
	PaymentMethod   string      `json:"payment_method"`
	PaymentRef      *string     `json:"payment_ref,omitempty"`
	Items           []OrderItem `json:"items"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// OrderItem is one line of an order.  PriceCents is the unit price at order
// time, not a reference into the catalog.
type OrderItem struct {
	ID         uint64 `json:"id"`
	OrderID    uint64 `json:"order_id"`
	ProductID  uint64 `json:"product_id"`
	Quantity   uint32 `json:"quantity"`
	PriceCents uint32 `json:"price_cents"`
}
