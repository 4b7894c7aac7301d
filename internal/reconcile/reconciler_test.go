package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopmesh/marketplace/internal/model"
)

type fakeLister struct {
	ids      []uint64
	err      error
	gotWhen  time.Time
	gotState string
}

func (f *fakeLister) ListStale(_ context.Context, status string, before time.Time) ([]uint64, error) {
	f.gotState = status
	f.gotWhen = before
	return f.ids, f.err
}

type fakeCanceller struct {
	cancelled []uint64
	failOn    uint64
}

func (f *fakeCanceller) Cancel(_ context.Context, orderID uint64) error {
	if orderID == f.failOn {
		return errors.New("cannot cancel")
	}
	f.cancelled = append(f.cancelled, orderID)
	return nil
}

func TestSweepCancelsStaleOrders(t *testing.T) {
	lister := &fakeLister{ids: []uint64{11, 12, 13}}
	canceller := &fakeCanceller{}
	r := New(lister, canceller, model.OrderStatusAwaitingPayment, 30*time.Minute, time.Minute)

	r.Sweep(context.Background())

	if lister.gotState != model.OrderStatusAwaitingPayment {
		t.Errorf("queried status %s", lister.gotState)
	}
	if age := time.Since(lister.gotWhen); age < 29*time.Minute || age > 31*time.Minute {
		t.Errorf("cutoff %v not about 30m ago", lister.gotWhen)
	}
	if len(canceller.cancelled) != 3 {
		t.Errorf("cancelled %v, want all three", canceller.cancelled)
	}
}

func TestSweepContinuesPastFailures(t *testing.T) {
	lister := &fakeLister{ids: []uint64{21, 22, 23}}
	canceller := &fakeCanceller{failOn: 22}
	r := New(lister, canceller, model.OrderStatusAwaitingPayment, time.Hour, time.Minute)

	r.Sweep(context.Background())

	if len(canceller.cancelled) != 2 {
		t.Errorf("cancelled %v, want the two cancellable orders", canceller.cancelled)
	}
}

func TestSweepToleratesListFailure(t *testing.T) {
	lister := &fakeLister{err: errors.New("db down")}
	canceller := &fakeCanceller{}
	r := New(lister, canceller, model.OrderStatusAwaitingPayment, time.Hour, time.Minute)

	r.Sweep(context.Background())

	if len(canceller.cancelled) != 0 {
		t.Errorf("cancelled %v, want none", canceller.cancelled)
	}
}
