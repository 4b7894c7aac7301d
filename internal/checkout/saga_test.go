package checkout

import (
	"context"
	"errors"
	"testing"

	"github.com/shopmesh/marketplace/internal/model"
	"github.com/shopmesh/marketplace/internal/repository"
)

func basicRequest() Request {
	return Request{
		UserID:          7,
		Items:           []RequestedItem{{ProductID: 1, Quantity: 2}},
		ShippingAddress: "12 Harbor Lane",
		PaymentMethod:   "card",
	}
}

func TestCheckoutReachesAwaitingPayment(t *testing.T) {
	env := newTestEnv()
	env.addProduct(1, 500, 10)

	order, err := env.saga.Checkout(context.Background(), basicRequest())
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if order.Status != model.OrderStatusAwaitingPayment {
		t.Errorf("status = %s, want AWAITING_PAYMENT", order.Status)
	}
	if order.TotalCents != 1000 {
		t.Errorf("total = %d, want 1000", order.TotalCents)
	}
	if order.PaymentRef == nil || *order.PaymentRef == "" {
		t.Error("payment ref not set")
	}
	if env.orders.status(order.ID) != model.OrderStatusAwaitingPayment {
		t.Errorf("persisted status = %s", env.orders.status(order.ID))
	}
	if avail, res := env.inv.counts(1); avail != 8 || res != 2 {
		t.Errorf("inventory: avail=%d res=%d, want 8/2", avail, res)
	}
}

func TestCheckoutMergesDuplicateItems(t *testing.T) {
	env := newTestEnv()
	env.addProduct(1, 300, 10)

	req := basicRequest()
	req.Items = []RequestedItem{
		{ProductID: 1, Quantity: 1},
		{ProductID: 1, Quantity: 2},
	}
	order, err := env.saga.Checkout(context.Background(), req)
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if len(order.Items) != 1 {
		t.Fatalf("got %d items, want 1 merged line", len(order.Items))
	}
	if order.Items[0].Quantity != 3 {
		t.Errorf("merged quantity = %d, want 3", order.Items[0].Quantity)
	}
	if order.TotalCents != 900 {
		t.Errorf("total = %d, want 900", order.TotalCents)
	}
}

func TestCheckoutUnknownProduct(t *testing.T) {
	env := newTestEnv()
	env.addProduct(1, 500, 10)

	req := basicRequest()
	req.Items = append(req.Items, RequestedItem{ProductID: 42, Quantity: 1})
	_, err := env.saga.Checkout(context.Background(), req)
	if !errors.Is(err, repository.ErrProductNotFound) {
		t.Fatalf("got %v, want ErrProductNotFound", err)
	}
	if avail, res := env.inv.counts(1); avail != 10 || res != 0 {
		t.Errorf("validation failure must not reserve: avail=%d res=%d", avail, res)
	}
	if len(env.orders.orders) != 0 {
		t.Error("no order should be persisted")
	}
}

func TestCheckoutShortStockFailsEarly(t *testing.T) {
	env := newTestEnv()
	env.addProduct(1, 500, 1)

	_, err := env.saga.Checkout(context.Background(), basicRequest()) // wants 2
	if !errors.Is(err, repository.ErrInsufficientStock) {
		t.Fatalf("got %v, want ErrInsufficientStock", err)
	}
	if avail, res := env.inv.counts(1); avail != 1 || res != 0 {
		t.Errorf("inventory touched: avail=%d res=%d", avail, res)
	}
}

func TestCheckoutReserveRaceReleasesPartialReservation(t *testing.T) {
	env := newTestEnv()
	// Catalog believes both are in stock; the second sold out between
	// validation and reserve.
	env.catalog.add(1, 500, 10)
	env.catalog.add(2, 700, 10)
	env.inv.setStock(1, 10)
	env.inv.setStock(2, 0)

	req := basicRequest()
	req.Items = []RequestedItem{
		{ProductID: 1, Quantity: 2},
		{ProductID: 2, Quantity: 1},
	}
	_, err := env.saga.Checkout(context.Background(), req)
	if !errors.Is(err, repository.ErrInsufficientStock) {
		t.Fatalf("got %v, want ErrInsufficientStock", err)
	}
	if avail, res := env.inv.counts(1); avail != 10 || res != 0 {
		t.Errorf("partial reservation not released: avail=%d res=%d", avail, res)
	}
	if len(env.orders.orders) != 0 {
		t.Error("no order should be persisted")
	}
}

func TestCheckoutPersistFailureReleasesReservation(t *testing.T) {
	env := newTestEnv()
	env.addProduct(1, 500, 10)
	env.orders.failCreate = errors.New("db down")

	_, err := env.saga.Checkout(context.Background(), basicRequest())
	if err == nil {
		t.Fatal("expected persist failure")
	}
	if avail, res := env.inv.counts(1); avail != 10 || res != 0 {
		t.Errorf("reservation leaked: avail=%d res=%d", avail, res)
	}
}

func TestCheckoutPaymentInitiateFailure(t *testing.T) {
	env := newTestEnv()
	env.addProduct(1, 500, 10)
	env.gateway.failing = true

	_, err := env.saga.Checkout(context.Background(), basicRequest())
	if err == nil {
		t.Fatal("expected gateway failure")
	}
	if avail, res := env.inv.counts(1); avail != 10 || res != 0 {
		t.Errorf("reservation leaked: avail=%d res=%d", avail, res)
	}
	// The order exists as an audit record of the failed attempt.
	if got := env.orders.status(1); got != model.OrderStatusFailed {
		t.Errorf("order status = %s, want FAILED", got)
	}
}

func TestPaymentSuccessConfirmsOrder(t *testing.T) {
	env := newTestEnv()
	env.addProduct(1, 500, 10)

	order, err := env.saga.Checkout(context.Background(), basicRequest())
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if err := env.saga.HandlePaymentOutcome(context.Background(), order.ID, true); err != nil {
		t.Fatalf("HandlePaymentOutcome: %v", err)
	}
	if got := env.orders.status(order.ID); got != model.OrderStatusConfirmed {
		t.Errorf("status = %s, want CONFIRMED", got)
	}
	// Stock is permanently gone, not returned.
	if avail, res := env.inv.counts(1); avail != 8 || res != 0 {
		t.Errorf("inventory: avail=%d res=%d, want 8/0", avail, res)
	}
	if len(env.pub.published) != 1 || env.pub.published[0] != order.ID {
		t.Errorf("published = %v, want [%d]", env.pub.published, order.ID)
	}
}

func TestPaymentFailureCancelsAndReleases(t *testing.T) {
	env := newTestEnv()
	env.addProduct(1, 500, 10)

	order, err := env.saga.Checkout(context.Background(), basicRequest())
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if err := env.saga.HandlePaymentOutcome(context.Background(), order.ID, false); err != nil {
		t.Fatalf("HandlePaymentOutcome: %v", err)
	}
	if got := env.orders.status(order.ID); got != model.OrderStatusCancelled {
		t.Errorf("status = %s, want CANCELLED", got)
	}
	if avail, res := env.inv.counts(1); avail != 10 || res != 0 {
		t.Errorf("inventory: avail=%d res=%d, want 10/0", avail, res)
	}
	if len(env.pub.published) != 0 {
		t.Error("cancelled order must not be announced")
	}
}

func TestDuplicateOutcomeIsNoOp(t *testing.T) {
	env := newTestEnv()
	env.addProduct(1, 500, 10)

	order, err := env.saga.Checkout(context.Background(), basicRequest())
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if err := env.saga.HandlePaymentOutcome(context.Background(), order.ID, true); err != nil {
		t.Fatalf("first outcome: %v", err)
	}
	// Same outcome again, and a contradictory one; both are ignored.
	if err := env.saga.HandlePaymentOutcome(context.Background(), order.ID, true); err != nil {
		t.Fatalf("duplicate outcome: %v", err)
	}
	if err := env.saga.HandlePaymentOutcome(context.Background(), order.ID, false); err != nil {
		t.Fatalf("contradictory outcome: %v", err)
	}
	if got := env.orders.status(order.ID); got != model.OrderStatusConfirmed {
		t.Errorf("status = %s, want CONFIRMED", got)
	}
	if avail, res := env.inv.counts(1); avail != 8 || res != 0 {
		t.Errorf("deduction applied more than once: avail=%d res=%d", avail, res)
	}
	if len(env.pub.published) != 1 {
		t.Errorf("published %d times, want once", len(env.pub.published))
	}
}

func TestOutcomeForUnknownOrder(t *testing.T) {
	env := newTestEnv()
	err := env.saga.HandlePaymentOutcome(context.Background(), 404, true)
	if !errors.Is(err, repository.ErrOrderNotFound) {
		t.Fatalf("got %v, want ErrOrderNotFound", err)
	}
}

func TestOutcomeAfterRestartRebuildsTicket(t *testing.T) {
	env := newTestEnv()
	env.addProduct(1, 500, 10)

	order, err := env.saga.Checkout(context.Background(), basicRequest())
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	// Fresh saga over the same stores: the in-memory ticket is gone.
	restarted := NewSaga(env.catalog, env.inv, env.orders, env.gateway, env.pub)
	if err := restarted.HandlePaymentOutcome(context.Background(), order.ID, true); err != nil {
		t.Fatalf("HandlePaymentOutcome after restart: %v", err)
	}
	if got := env.orders.status(order.ID); got != model.OrderStatusConfirmed {
		t.Errorf("status = %s, want CONFIRMED", got)
	}
	if avail, res := env.inv.counts(1); avail != 8 || res != 0 {
		t.Errorf("inventory: avail=%d res=%d, want 8/0", avail, res)
	}
}

func TestConfirmFailureKeepsOrderAwaitingPayment(t *testing.T) {
	env := newTestEnv()
	env.addProduct(1, 500, 10)

	order, err := env.saga.Checkout(context.Background(), basicRequest())
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	env.inv.failConfirm[1] = errors.New("store down")

	if err := env.saga.HandlePaymentOutcome(context.Background(), order.ID, true); err == nil {
		t.Fatal("expected confirm failure")
	}
	if got := env.orders.status(order.ID); got != model.OrderStatusAwaitingPayment {
		t.Errorf("status = %s, want AWAITING_PAYMENT", got)
	}

	// A later retry, after the store recovers, completes the order.
	delete(env.inv.failConfirm, 1)
	if err := env.saga.HandlePaymentOutcome(context.Background(), order.ID, true); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if got := env.orders.status(order.ID); got != model.OrderStatusConfirmed {
		t.Errorf("status after retry = %s, want CONFIRMED", got)
	}
	if avail, res := env.inv.counts(1); avail != 8 || res != 0 {
		t.Errorf("inventory: avail=%d res=%d, want 8/0", avail, res)
	}
}

func TestCancelReleasesReservation(t *testing.T) {
	env := newTestEnv()
	env.addProduct(1, 500, 10)

	order, err := env.saga.Checkout(context.Background(), basicRequest())
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if err := env.saga.Cancel(context.Background(), order.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if got := env.orders.status(order.ID); got != model.OrderStatusCancelled {
		t.Errorf("status = %s, want CANCELLED", got)
	}
	if avail, res := env.inv.counts(1); avail != 10 || res != 0 {
		t.Errorf("inventory: avail=%d res=%d, want 10/0", avail, res)
	}
}

func TestCheckoutRejectsInvalidRequests(t *testing.T) {
	env := newTestEnv()
	env.addProduct(1, 500, 10)

	cases := []struct {
		name string
		mut  func(*Request)
	}{
		{"no user", func(r *Request) { r.UserID = 0 }},
		{"no items", func(r *Request) { r.Items = nil }},
		{"zero quantity", func(r *Request) { r.Items[0].Quantity = 0 }},
		{"zero product", func(r *Request) { r.Items[0].ProductID = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := basicRequest()
			tc.mut(&req)
			if _, err := env.saga.Checkout(context.Background(), req); err == nil {
				t.Error("expected validation error")
			}
		})
	}
	if avail, res := env.inv.counts(1); avail != 10 || res != 0 {
		t.Errorf("inventory touched by invalid requests: avail=%d res=%d", avail, res)
	}
}
