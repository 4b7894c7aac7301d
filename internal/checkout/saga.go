package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/shopmesh/marketplace/internal/model"
	"github.com/shopmesh/marketplace/internal/repository"
)

// RequestedItem is one line of an inbound checkout request.
type RequestedItem struct {
	ProductID uint64 `json:"product_id"`
	Quantity  uint32 `json:"quantity"`
}

// Request is a checkout as it arrives from the HTTP layer, already
// authenticated; UserID is trusted as given.
type Request struct {
	UserID          uint64
	Items           []RequestedItem
	ShippingAddress string
	PaymentMethod   string
}

// Saga orchestrates the checkout end to end.  Checkout drives
// validate -> reserve -> persist -> hand off to payment; the flow then
// suspends (the method simply returns) and resumes in HandlePaymentOutcome
// when the gateway's asynchronous outcome signal arrives.
//
// The only state held between the two halves is the reservation ticket,
// indexed by order ID.  A ticket missing at resume time -- the process
// restarted while the order was awaiting payment -- is rebuilt from the
// persisted order items, which carry exactly the reserved quantities.
type Saga struct {
	catalog  CatalogClient
	coord    *Coordinator
	orders   OrderStore
	payments PaymentGateway
	events   ConfirmedPublisher // optional; nil disables notifications

	// outcomeMu serializes payment-outcome handling.  Outcomes are rare and
	// duplicate webhook deliveries race against each other; holding one lock
	// across status check and inventory confirm keeps the duplicate a no-op.
	outcomeMu sync.Mutex

	ticketMu sync.Mutex
	tickets  map[uint64]*Ticket
}

// NewSaga wires the saga's collaborators. events may be nil.
func NewSaga(catalog CatalogClient, inv InventoryStore, orders OrderStore, payments PaymentGateway, events ConfirmedPublisher) *Saga {
	return &Saga{
		catalog:  catalog,
		coord:    NewCoordinator(inv),
		orders:   orders,
		payments: payments,
		events:   events,
		tickets:  make(map[uint64]*Ticket),
	}
}

// Checkout runs the synchronous half of the flow and returns the persisted
// order in AWAITING_PAYMENT, or an error with nothing left reserved.
// Failure handling per step:
//
//	validation      -> no side effects yet, propagate
//	reservation     -> ReserveAll self-cleans, propagate
//	persist/payment -> release the reservation, mark FAILED, propagate
//
// A reservation must never outlive its order, so every exit after a
// successful ReserveAll either keeps the order alive or releases the ticket.
func (s *Saga) Checkout(ctx context.Context, req Request) (*model.Order, error) {
	lines, err := s.validate(ctx, req)
	if err != nil {
		return nil, err
	}

	ticket, err := s.coord.ReserveAll(ctx, lines)
	if err != nil {
		return nil, err
	}

	order := buildOrder(req, lines)
	if err := s.orders.Create(ctx, order); err != nil {
		// The single most important failure path: the order never became
		// visible, so the reservation has to go too.
		if relErr := s.coord.ReleaseAll(ctx, ticket); relErr != nil {
			log.Printf("checkout: FATAL compensation after failed persist: %v", relErr)
		}
		return nil, fmt.Errorf("persist order: %w", err)
	}
	ticket.OrderID = order.ID

	if err := s.orders.UpdateStatus(ctx, order.ID, model.OrderStatusAwaitingPayment); err != nil {
		s.abandon(ctx, ticket, order.ID)
		return nil, fmt.Errorf("order %d to awaiting payment: %w", order.ID, err)
	}
	order.Status = model.OrderStatusAwaitingPayment

	ref, err := s.payments.Initiate(ctx, order.ID, order.TotalCents)
	if err != nil {
		s.abandon(ctx, ticket, order.ID)
		return nil, fmt.Errorf("initiate payment for order %d: %w", order.ID, err)
	}
	if err := s.orders.SetPaymentRef(ctx, order.ID, ref); err != nil {
		// The outcome signal carries the order ID as well, so a missing ref
		// is an annoyance, not a broken order.
		log.Printf("checkout: store payment ref for order %d failed: %v", order.ID, err)
	}
	order.PaymentRef = &ref

	s.storeTicket(ticket)
	log.Printf("checkout: order %d awaiting payment, txn=%s, total=%d cents", order.ID, ref, order.TotalCents)
	return order, nil
}

// HandlePaymentOutcome resumes a suspended checkout when the gateway
// reports.  Safe to invoke more than once per order: a terminal order is a
// no-op, enforced under outcomeMu so concurrent duplicate deliveries cannot
// both act.
func (s *Saga) HandlePaymentOutcome(ctx context.Context, orderID uint64, success bool) error {
	s.outcomeMu.Lock()
	defer s.outcomeMu.Unlock()

	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if model.IsTerminalStatus(order.Status) {
		log.Printf("checkout: duplicate payment outcome for order %d (status %s), ignoring", orderID, order.Status)
		s.dropTicket(orderID)
		return nil
	}
	if order.Status != model.OrderStatusAwaitingPayment {
		return fmt.Errorf("payment outcome for order %d in status %s", orderID, order.Status)
	}

	ticket := s.takeTicket(orderID)
	if ticket == nil {
		ticket = ticketFromOrder(order)
	}

	if success {
		return s.confirm(ctx, order, ticket)
	}
	return s.compensate(ctx, order, ticket)
}

// Cancel forces the compensating transition for an order still awaiting
// payment, used for explicit cancellations and by the stale-order
// reconciler.  Semantically identical to a failed payment outcome.
func (s *Saga) Cancel(ctx context.Context, orderID uint64) error {
	return s.HandlePaymentOutcome(ctx, orderID, false)
}

// validate prices every requested item against the catalog.  Nothing is
// reserved yet, so any failure aborts with no side effects.  Duplicate
// product IDs are merged, preserving first-seen order.
func (s *Saga) validate(ctx context.Context, req Request) ([]Line, error) {
	if req.UserID == 0 {
		return nil, errors.New("checkout requires a user")
	}
	merged := make([]RequestedItem, 0, len(req.Items))
	seen := make(map[uint64]int)
	for _, it := range req.Items {
		if it.ProductID == 0 || it.Quantity == 0 {
			return nil, fmt.Errorf("invalid item: product %d quantity %d", it.ProductID, it.Quantity)
		}
		if idx, ok := seen[it.ProductID]; ok {
			merged[idx].Quantity += it.Quantity
			continue
		}
		seen[it.ProductID] = len(merged)
		merged = append(merged, it)
	}
	if len(merged) == 0 {
		return nil, errors.New("checkout requires at least one item")
	}

	lines := make([]Line, 0, len(merged))
	for _, it := range merged {
		ps, err := s.catalog.PriceAndStock(ctx, it.ProductID)
		if err != nil {
			return nil, fmt.Errorf("validate product %d: %w", it.ProductID, err)
		}
		// Fast-fail on obviously short stock; the reserve step remains the
		// authoritative check.
		if ps.Available < it.Quantity {
			return nil, fmt.Errorf("validate product %d: %w", it.ProductID, repository.ErrInsufficientStock)
		}
		lines = append(lines, Line{
			ProductID:  it.ProductID,
			Quantity:   it.Quantity,
			PriceCents: ps.PriceCents,
		})
	}
	return lines, nil
}

// confirm commits the reservation and completes the order.  A ConfirmAll
// failure means the inventory books diverged from the ticket; the order is
// left AWAITING_PAYMENT, the ticket is put back so a retry can reach the
// remaining lines, and the error is surfaced for operator attention.
func (s *Saga) confirm(ctx context.Context, order *model.Order, ticket *Ticket) error {
	if err := s.coord.ConfirmAll(ctx, ticket); err != nil {
		log.Printf("checkout: FATAL confirm failed for order %d, operator attention required: %v", order.ID, err)
		s.storeTicket(ticket)
		return err
	}
	if err := s.orders.UpdateStatus(ctx, order.ID, model.OrderStatusConfirmed); err != nil {
		log.Printf("checkout: FATAL order %d stock deducted but status update failed: %v", order.ID, err)
		return err
	}
	order.Status = model.OrderStatusConfirmed
	log.Printf("checkout: order %d confirmed", order.ID)
	if s.events != nil {
		if err := s.events.PublishOrderConfirmed(ctx, order); err != nil {
			log.Printf("checkout: publish confirmation for order %d failed: %v", order.ID, err)
		}
	}
	return nil
}

// compensate releases the reservation and cancels the order.
func (s *Saga) compensate(ctx context.Context, order *model.Order, ticket *Ticket) error {
	if err := s.coord.ReleaseAll(ctx, ticket); err != nil {
		log.Printf("checkout: FATAL compensation failed for order %d, manual reconciliation required: %v", order.ID, err)
		s.storeTicket(ticket)
		return err
	}
	if err := s.orders.UpdateStatus(ctx, order.ID, model.OrderStatusCancelled); err != nil {
		log.Printf("checkout: order %d released but status update failed: %v", order.ID, err)
		return err
	}
	order.Status = model.OrderStatusCancelled
	log.Printf("checkout: order %d cancelled, reservation released", order.ID)
	return nil
}

// abandon is the compensation path for failures between a successful
// reservation and the payment handoff: release the stock, then mark the
// persisted order FAILED.
func (s *Saga) abandon(ctx context.Context, ticket *Ticket, orderID uint64) {
	if err := s.coord.ReleaseAll(ctx, ticket); err != nil {
		log.Printf("checkout: FATAL compensation failed for order %d, manual reconciliation required: %v", orderID, err)
	}
	if err := s.orders.UpdateStatus(ctx, orderID, model.OrderStatusFailed); err != nil {
		log.Printf("checkout: mark order %d failed: %v", orderID, err)
	}
}

func buildOrder(req Request, lines []Line) *model.Order {
	order := &model.Order{
		UserID:          req.UserID,
		Status:          model.OrderStatusPending,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		Items:           make([]model.OrderItem, 0, len(lines)),
	}
	var total uint64
	for _, l := range lines {
		order.Items = append(order.Items, model.OrderItem{
			ProductID:  l.ProductID,
			Quantity:   l.Quantity,
			PriceCents: l.PriceCents,
		})
		total += uint64(l.Quantity) * uint64(l.PriceCents)
	}
	order.TotalCents = total
	return order
}

func (s *Saga) storeTicket(t *Ticket) {
	if t.OrderID == 0 {
		return
	}
	s.ticketMu.Lock()
	s.tickets[t.OrderID] = t
	s.ticketMu.Unlock()
}

func (s *Saga) takeTicket(orderID uint64) *Ticket {
	s.ticketMu.Lock()
	defer s.ticketMu.Unlock()
	t := s.tickets[orderID]
	delete(s.tickets, orderID)
	return t
}

func (s *Saga) dropTicket(orderID uint64) {
	s.ticketMu.Lock()
	delete(s.tickets, orderID)
	s.ticketMu.Unlock()
}
