// Package reconcile sweeps orders stuck in AWAITING_PAYMENT.  A payment
// outcome that never arrives would otherwise pin reserved stock forever; the
// reconciler treats sufficiently old orders as failed payments and runs the
// normal compensation path for them.
package reconcile

import (
	"context"
	"log"
	"time"
)

// StaleLister reports order IDs that have sat in the given status since
// before the cutoff.  Satisfied by repository.OrderRepo.
type StaleLister interface {
	ListStale(ctx context.Context, status string, before time.Time) ([]uint64, error)
}

// Canceller forces the compensating transition for one order.  Satisfied by
// checkout.Saga.
type Canceller interface {
	Cancel(ctx context.Context, orderID uint64) error
}

// Reconciler periodically cancels orders awaiting payment past MaxAge.
type Reconciler struct {
	orders   StaleLister
	saga     Canceller
	status   string
	maxAge   time.Duration
	interval time.Duration
}

func New(orders StaleLister, saga Canceller, status string, maxAge, interval time.Duration) *Reconciler {
	return &Reconciler{
		orders:   orders,
		saga:     saga,
		status:   status,
		maxAge:   maxAge,
		interval: interval,
	}
}

// Run sweeps once per interval until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep cancels every stale order it can and logs the ones it cannot.  One
// failing order does not stop the sweep.
func (r *Reconciler) Sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-r.maxAge)
	ids, err := r.orders.ListStale(ctx, r.status, cutoff)
	if err != nil {
		log.Printf("reconcile: list stale orders: %v", err)
		return
	}
	if len(ids) == 0 {
		return
	}
	log.Printf("reconcile: %d orders stale since %s", len(ids), cutoff.Format(time.RFC3339))
	for _, id := range ids {
		if err := r.saga.Cancel(ctx, id); err != nil {
			log.Printf("reconcile: cancel order %d: %v", id, err)
			continue
		}
		log.Printf("reconcile: order %d cancelled after payment timeout", id)
	}
}
