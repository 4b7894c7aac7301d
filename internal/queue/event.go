// Package queue defines message payloads exchanged over the message broker
// and the publisher/consumer plumbing around them.
package queue

// Queue names used with the default exchange.
const (
	PaymentOutcomeQueue = "payment.outcomes"
	OrderConfirmedQueue = "order.confirmed"
)

// PaymentOutcomeEvent is the payment provider's final verdict on a charge.
// Deliveries may arrive more than once; consumers must tolerate duplicates.
type PaymentOutcomeEvent struct {
	TransactionRef string `json:"transaction_ref"`
	OrderID        uint64 `json:"order_id"`
	Success        bool   `json:"success"`
	Reason         string `json:"reason,omitempty"`
	OccurredAt     string `json:"occurred_at"`
}

// OrderConfirmedEvent is published once an order reaches CONFIRMED.  It
// carries enough for downstream consumers to notify or run analytics without
// querying the primary database.
type OrderConfirmedEvent struct {
	OrderID     uint64               `json:"order_id"`
	UserID      uint64               `json:"user_id"`
	TotalCents  uint64               `json:"total_cents"`
	Items       []OrderConfirmedItem `json:"items"`
	ConfirmedAt string               `json:"confirmed_at"`
}

type OrderConfirmedItem struct {
	ProductID  uint64 `json:"product_id"`
	Quantity   uint32 `json:"quantity"`
	PriceCents uint32 `json:"price_cents"`
}
