package checkout

import (
	"context"
	"fmt"
	"log"
)

// Coordinator reserves a list of lines against the inventory store with
// all-or-nothing semantics.  Reservations for different products cannot be
// wrapped in one database transaction -- the store may be remote -- so the
// guarantee is built from per-product atomic operations plus compensation:
// on the first failed line, every line already reserved in the attempt is
// released again before the error is returned.
type Coordinator struct {
	inv InventoryStore
}

// NewCoordinator returns a Coordinator backed by the given inventory store.
func NewCoordinator(inv InventoryStore) *Coordinator {
	return &Coordinator{inv: inv}
}

// ReserveAll reserves the lines one at a time, in the order given.  On the
// first failure it releases the lines already reserved in this attempt, in
// reverse order, and returns an error identifying the failing product.
// Release order does not affect correctness -- each per-product call is
// independent and atomic -- it just unwinds tidily.
func (c *Coordinator) ReserveAll(ctx context.Context, lines []Line) (*Ticket, error) {
	t := NewTicket(lines)
	for i := range t.Lines {
		l := &t.Lines[i]
		if err := c.inv.Reserve(ctx, l.ProductID, l.Quantity); err != nil {
			c.rollback(ctx, t, i)
			return nil, fmt.Errorf("reserve product %d: %w", l.ProductID, err)
		}
		l.Reserved = true
	}
	return t, nil
}

// rollback releases lines [0, upto) in reverse order after a failed
// ReserveAll.  A release failure here is logged as fatal: it means a hold we
// just placed cannot be undone and an operator has to reconcile by hand.
func (c *Coordinator) rollback(ctx context.Context, t *Ticket, upto int) {
	for i := upto - 1; i >= 0; i-- {
		l := &t.Lines[i]
		if !l.Reserved {
			continue
		}
		if err := c.inv.Release(ctx, l.ProductID, l.Quantity); err != nil {
			log.Printf("checkout: FATAL rollback release failed for product %d qty %d: %v",
				l.ProductID, l.Quantity, err)
			continue
		}
		l.Reserved = false
	}
}

// ReleaseAll releases every line still marked reserved.  It is idempotent:
// releasing an already-released ticket is a no-op, so compensation can be
// retried safely after a crash.  All lines are attempted even when one
// fails; the first error is returned.
func (c *Coordinator) ReleaseAll(ctx context.Context, t *Ticket) error {
	var firstErr error
	for i := len(t.Lines) - 1; i >= 0; i-- {
		l := &t.Lines[i]
		if !l.Reserved {
			continue
		}
		if err := c.inv.Release(ctx, l.ProductID, l.Quantity); err != nil {
			log.Printf("checkout: FATAL release failed for product %d qty %d: %v",
				l.ProductID, l.Quantity, err)
			if firstErr == nil {
				firstErr = fmt.Errorf("release product %d: %w", l.ProductID, err)
			}
			continue
		}
		l.Reserved = false
	}
	return firstErr
}

// ConfirmAll converts every reserved line into a permanent deduction.  A
// failure partway through is reported as-is and nothing else is attempted:
// one line confirming while the next refuses means the inventory books have
// diverged, which no automatic action can repair.  ConfirmDeduct is
// idempotent per still-reserved line, so a caller with operator visibility
// may retry.
func (c *Coordinator) ConfirmAll(ctx context.Context, t *Ticket) error {
	for i := range t.Lines {
		l := &t.Lines[i]
		if !l.Reserved {
			continue
		}
		if err := c.inv.ConfirmDeduct(ctx, l.ProductID, l.Quantity); err != nil {
			return fmt.Errorf("confirm product %d: %w", l.ProductID, err)
		}
		l.Reserved = false
	}
	return nil
}
