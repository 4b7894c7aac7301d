package checkout

import (
	"github.com/google/uuid"

	"github.com/shopmesh/marketplace/internal/model"
)

// Line is one requested product inside a reservation attempt.  Reserved
// flips to true once the inventory store has accepted the hold and back to
// false once the hold has been released or converted into a deduction.
type Line struct {
	ProductID  uint64
	Quantity   uint32
	PriceCents uint32
	Reserved   bool
}

// Ticket tracks the reservation state of a single checkout attempt.  It is
// keyed by a correlation ID until the order is persisted, after which
// OrderID is filled in.  A ticket is either fully reserved or fully
// released; the line-by-line intermediate states exist only while
// ReserveAll or ReleaseAll is running and are never persisted.
type Ticket struct {
	CheckoutID uuid.UUID
	OrderID    uint64
	Lines      []Line
}

// NewTicket builds an unreserved ticket for the given lines.
func NewTicket(lines []Line) *Ticket {
	t := &Ticket{CheckoutID: uuid.New(), Lines: make([]Line, len(lines))}
	copy(t.Lines, lines)
	for i := range t.Lines {
		t.Lines[i].Reserved = false
	}
	return t
}

// ticketFromOrder rebuilds a fully-reserved ticket from a persisted order.
// Used when the payment outcome arrives after a restart and the in-memory
// ticket is gone: an order sitting in AWAITING_PAYMENT holds exactly one
// live reservation per item.
func ticketFromOrder(order *model.Order) *Ticket {
	t := &Ticket{OrderID: order.ID, CheckoutID: uuid.New(), Lines: make([]Line, 0, len(order.Items))}
	for _, it := range order.Items {
		t.Lines = append(t.Lines, Line{
			ProductID:  it.ProductID,
			Quantity:   it.Quantity,
			PriceCents: it.PriceCents,
			Reserved:   true,
		})
	}
	return t
}

// FullyReserved reports whether every line currently holds a reservation.
func (t *Ticket) FullyReserved() bool {
	for _, l := range t.Lines {
		if !l.Reserved {
			return false
		}
	}
	return len(t.Lines) > 0
}

// Released reports whether no line holds a reservation.
func (t *Ticket) Released() bool {
	for _, l := range t.Lines {
		if l.Reserved {
			return false
		}
	}
	return true
}
