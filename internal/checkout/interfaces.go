// Package checkout implements the order checkout flow: validating and
// pricing requested items against the catalog, reserving stock per product,
// persisting the order, handing off to the payment gateway and finally
// committing or compensating the reservation when the payment outcome
// arrives.  The flow is written as an explicit sequence of states with a
// compensation rule per step rather than nested callbacks, which keeps every
// failure branch visible and testable.
package checkout

import (
	"context"
	"errors"

	"github.com/shopmesh/marketplace/internal/model"
)

// ErrCatalogUnavailable signals that the catalog service itself is
// unreachable, as opposed to a product that does not exist.  The checkout
// aborts before reserving anything, because proceeding with stale pricing is
// unacceptable; the whole checkout is safe to retry later.
var ErrCatalogUnavailable = errors.New("catalog service unavailable")

// InventoryStore is the durable per-product counter store.  Implementations
// must make each call atomic with respect to concurrent callers on the same
// product: two Reserve calls may never both succeed when their combined
// quantity exceeds what is available.  repository.InventoryRepo satisfies
// this with single conditional UPDATE statements.
type InventoryStore interface {
	Reserve(ctx context.Context, productID uint64, qty uint32) error
	Release(ctx context.Context, productID uint64, qty uint32) error
	ConfirmDeduct(ctx context.Context, productID uint64, qty uint32) error
}

// OrderStore persists orders and enforces the status state machine.
// repository.OrderRepo is the production implementation.
type OrderStore interface {
	Create(ctx context.Context, order *model.Order) error
	UpdateStatus(ctx context.Context, orderID uint64, next string) error
	SetPaymentRef(ctx context.Context, orderID uint64, ref string) error
	Get(ctx context.Context, orderID uint64) (*model.Order, error)
}

// CatalogClient answers price and availability questions about a product.
// A missing product yields repository.ErrProductNotFound; an unreachable
// catalog yields ErrCatalogUnavailable.
type CatalogClient interface {
	PriceAndStock(ctx context.Context, productID uint64) (*model.PriceAndStock, error)
}

// PaymentGateway starts a payment for an order and returns the gateway's
// transaction reference.  The outcome arrives later as an asynchronous
// signal; Initiate never blocks waiting for it.
type PaymentGateway interface {
	Initiate(ctx context.Context, orderID uint64, amountCents uint64) (string, error)
}

// ConfirmedPublisher emits a notification once an order is confirmed.
// Publishing is best-effort: a failure is logged, never propagated, since
// the order itself is already committed.
type ConfirmedPublisher interface {
	PublishOrderConfirmed(ctx context.Context, order *model.Order) error
}
