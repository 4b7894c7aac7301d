package checkout

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/shopmesh/marketplace/internal/model"
)

// CheckoutSuite runs a multi-customer storefront scenario end to end against
// the in-memory fakes.
type CheckoutSuite struct {
	suite.Suite
	env *testEnv
}

func (s *CheckoutSuite) SetupTest() {
	s.env = newTestEnv()
	s.env.addProduct(1, 1999, 20) // headphones
	s.env.addProduct(2, 4999, 5)  // keyboard
	s.env.addProduct(3, 999, 0)   // sold out
}

func (s *CheckoutSuite) TestStorefrontScenario() {
	ctx := context.Background()

	// First customer buys headphones and a keyboard and pays.
	first, err := s.env.saga.Checkout(ctx, Request{
		UserID:          1,
		Items:           []RequestedItem{{ProductID: 1, Quantity: 2}, {ProductID: 2, Quantity: 1}},
		ShippingAddress: "1 First St",
		PaymentMethod:   "card",
	})
	s.Require().NoError(err)
	s.Equal(model.OrderStatusAwaitingPayment, first.Status)
	s.Equal(uint64(2*1999+4999), first.TotalCents)

	s.Require().NoError(s.env.saga.HandlePaymentOutcome(ctx, first.ID, true))
	s.Equal(model.OrderStatusConfirmed, s.env.orders.status(first.ID))

	// Second customer's payment bounces; their keyboard goes back on the
	// shelf.
	second, err := s.env.saga.Checkout(ctx, Request{
		UserID:          2,
		Items:           []RequestedItem{{ProductID: 2, Quantity: 4}},
		ShippingAddress: "2 Second St",
		PaymentMethod:   "card",
	})
	s.Require().NoError(err)
	s.Require().NoError(s.env.saga.HandlePaymentOutcome(ctx, second.ID, false))
	s.Equal(model.OrderStatusCancelled, s.env.orders.status(second.ID))

	// Third customer cannot buy the sold-out product.
	_, err = s.env.saga.Checkout(ctx, Request{
		UserID:          3,
		Items:           []RequestedItem{{ProductID: 3, Quantity: 1}},
		ShippingAddress: "3 Third St",
		PaymentMethod:   "card",
	})
	s.Error(err)

	// Final shelf state: only the first order's goods left the building.
	avail1, res1 := s.env.inv.counts(1)
	s.Equal(uint32(18), avail1)
	s.Equal(uint32(0), res1)
	avail2, res2 := s.env.inv.counts(2)
	s.Equal(uint32(4), avail2)
	s.Equal(uint32(0), res2)

	s.Equal([]uint64{first.ID}, s.env.pub.published)
}

func TestCheckoutSuite(t *testing.T) {
	suite.Run(t, new(CheckoutSuite))
}
