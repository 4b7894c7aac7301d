package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopmesh/marketplace/internal/repository"
)

func TestReserveAllMovesStockIntoReservation(t *testing.T) {
	inv := newMemInventory()
	inv.setStock(1, 10)
	inv.setStock(2, 5)
	coord := NewCoordinator(inv)

	ticket, err := coord.ReserveAll(context.Background(), []Line{
		{ProductID: 1, Quantity: 3},
		{ProductID: 2, Quantity: 5},
	})
	if err != nil {
		t.Fatalf("ReserveAll: %v", err)
	}
	if !ticket.FullyReserved() {
		t.Error("ticket should be fully reserved")
	}
	if avail, res := inv.counts(1); avail != 7 || res != 3 {
		t.Errorf("product 1: got avail=%d res=%d, want 7/3", avail, res)
	}
	if avail, res := inv.counts(2); avail != 0 || res != 5 {
		t.Errorf("product 2: got avail=%d res=%d, want 0/5", avail, res)
	}
}

func TestReserveAllRollsBackOnFailure(t *testing.T) {
	inv := newMemInventory()
	inv.setStock(1, 10)
	inv.setStock(2, 2)
	coord := NewCoordinator(inv)

	_, err := coord.ReserveAll(context.Background(), []Line{
		{ProductID: 1, Quantity: 4},
		{ProductID: 2, Quantity: 3}, // over stock
	})
	if !errors.Is(err, repository.ErrInsufficientStock) {
		t.Fatalf("got %v, want ErrInsufficientStock", err)
	}
	// The partial reservation on product 1 must be gone.
	if avail, res := inv.counts(1); avail != 10 || res != 0 {
		t.Errorf("product 1 not rolled back: avail=%d res=%d", avail, res)
	}
	if avail, res := inv.counts(2); avail != 2 || res != 0 {
		t.Errorf("product 2 touched: avail=%d res=%d", avail, res)
	}
}

func TestReserveAllUnknownProduct(t *testing.T) {
	inv := newMemInventory()
	inv.setStock(1, 10)
	coord := NewCoordinator(inv)

	_, err := coord.ReserveAll(context.Background(), []Line{
		{ProductID: 1, Quantity: 1},
		{ProductID: 99, Quantity: 1},
	})
	if !errors.Is(err, repository.ErrProductNotFound) {
		t.Fatalf("got %v, want ErrProductNotFound", err)
	}
	if avail, res := inv.counts(1); avail != 10 || res != 0 {
		t.Errorf("product 1 not rolled back: avail=%d res=%d", avail, res)
	}
}

func TestReleaseAllIsIdempotent(t *testing.T) {
	inv := newMemInventory()
	inv.setStock(1, 10)
	coord := NewCoordinator(inv)

	ticket, err := coord.ReserveAll(context.Background(), []Line{{ProductID: 1, Quantity: 4}})
	if err != nil {
		t.Fatalf("ReserveAll: %v", err)
	}
	if err := coord.ReleaseAll(context.Background(), ticket); err != nil {
		t.Fatalf("first ReleaseAll: %v", err)
	}
	if !ticket.Released() {
		t.Error("ticket should be released")
	}
	if avail, res := inv.counts(1); avail != 10 || res != 0 {
		t.Errorf("after release: avail=%d res=%d", avail, res)
	}
	// Second release must not move counters again.
	if err := coord.ReleaseAll(context.Background(), ticket); err != nil {
		t.Fatalf("second ReleaseAll: %v", err)
	}
	if avail, res := inv.counts(1); avail != 10 || res != 0 {
		t.Errorf("double release moved counters: avail=%d res=%d", avail, res)
	}
}

func TestReleaseAllAttemptsEveryLine(t *testing.T) {
	inv := newMemInventory()
	inv.setStock(1, 5)
	inv.setStock(2, 5)
	inv.failRelease[2] = errors.New("store down")
	coord := NewCoordinator(inv)

	ticket, err := coord.ReserveAll(context.Background(), []Line{
		{ProductID: 1, Quantity: 2},
		{ProductID: 2, Quantity: 2},
	})
	if err != nil {
		t.Fatalf("ReserveAll: %v", err)
	}
	if err := coord.ReleaseAll(context.Background(), ticket); err == nil {
		t.Fatal("expected error from failing line")
	}
	// Product 1 released despite product 2 failing.
	if avail, res := inv.counts(1); avail != 5 || res != 0 {
		t.Errorf("product 1: avail=%d res=%d", avail, res)
	}
	if ticket.Lines[1].Reserved != true {
		t.Error("failed line should stay marked reserved for retry")
	}

	// Retry after the store recovers only touches the remaining line.
	delete(inv.failRelease, 2)
	if err := coord.ReleaseAll(context.Background(), ticket); err != nil {
		t.Fatalf("retry ReleaseAll: %v", err)
	}
	if avail, res := inv.counts(2); avail != 5 || res != 0 {
		t.Errorf("product 2: avail=%d res=%d", avail, res)
	}
}

func TestConfirmAllDeductsReservedStock(t *testing.T) {
	inv := newMemInventory()
	inv.setStock(1, 10)
	coord := NewCoordinator(inv)

	ticket, err := coord.ReserveAll(context.Background(), []Line{{ProductID: 1, Quantity: 4}})
	if err != nil {
		t.Fatalf("ReserveAll: %v", err)
	}
	if err := coord.ConfirmAll(context.Background(), ticket); err != nil {
		t.Fatalf("ConfirmAll: %v", err)
	}
	// Available untouched by confirm; the reservation simply disappears.
	if avail, res := inv.counts(1); avail != 6 || res != 0 {
		t.Errorf("after confirm: avail=%d res=%d, want 6/0", avail, res)
	}
}

func TestConfirmAllStopsAtFirstFailure(t *testing.T) {
	inv := newMemInventory()
	inv.setStock(1, 5)
	inv.setStock(2, 5)
	inv.failConfirm[2] = errors.New("store down")
	coord := NewCoordinator(inv)

	ticket, err := coord.ReserveAll(context.Background(), []Line{
		{ProductID: 1, Quantity: 2},
		{ProductID: 2, Quantity: 2},
	})
	if err != nil {
		t.Fatalf("ReserveAll: %v", err)
	}
	if err := coord.ConfirmAll(context.Background(), ticket); err == nil {
		t.Fatal("expected confirm failure")
	}
	if ticket.Lines[0].Reserved {
		t.Error("confirmed line should be unmarked")
	}
	if !ticket.Lines[1].Reserved {
		t.Error("unconfirmed line should stay reserved")
	}
}

func TestConcurrentReserveNeverOversells(t *testing.T) {
	inv := newMemInventory()
	inv.setStock(1, 30)
	coord := NewCoordinator(inv)

	const attempts = 50
	var wg sync.WaitGroup
	successes := make(chan *Ticket, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ticket, err := coord.ReserveAll(context.Background(), []Line{{ProductID: 1, Quantity: 1}}); err == nil {
				successes <- ticket
			}
		}()
	}
	wg.Wait()
	close(successes)

	won := 0
	for range successes {
		won++
	}
	if won != 30 {
		t.Errorf("got %d successful reservations, want exactly 30", won)
	}
	if avail, res := inv.counts(1); avail != 0 || res != 30 {
		t.Errorf("counters drifted: avail=%d res=%d", avail, res)
	}
}
