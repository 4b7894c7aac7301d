package model

import (
	"sort"
	"testing"
)

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to string }{
		{OrderStatusPending, OrderStatusAwaitingPayment},
		{OrderStatusPending, OrderStatusCancelled},
		{OrderStatusPending, OrderStatusFailed},
		{OrderStatusAwaitingPayment, OrderStatusConfirmed},
		{OrderStatusAwaitingPayment, OrderStatusCancelled},
		{OrderStatusAwaitingPayment, OrderStatusFailed},
	}
	for _, tc := range allowed {
		if !CanTransition(tc.from, tc.to) {
			t.Errorf("%s -> %s should be allowed", tc.from, tc.to)
		}
	}

	denied := []struct{ from, to string }{
		{OrderStatusPending, OrderStatusConfirmed}, // must pass through AWAITING_PAYMENT
		{OrderStatusConfirmed, OrderStatusCancelled},
		{OrderStatusConfirmed, OrderStatusAwaitingPayment},
		{OrderStatusCancelled, OrderStatusAwaitingPayment},
		{OrderStatusFailed, OrderStatusPending},
		{OrderStatusAwaitingPayment, OrderStatusAwaitingPayment},
	}
	for _, tc := range denied {
		if CanTransition(tc.from, tc.to) {
			t.Errorf("%s -> %s should be denied", tc.from, tc.to)
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	for _, s := range []string{OrderStatusConfirmed, OrderStatusCancelled, OrderStatusFailed} {
		if !IsTerminalStatus(s) {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []string{OrderStatusPending, OrderStatusAwaitingPayment} {
		if IsTerminalStatus(s) {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestTransitionSources(t *testing.T) {
	got := TransitionSources(OrderStatusCancelled)
	sort.Strings(got)
	want := []string{OrderStatusAwaitingPayment, OrderStatusPending}
	if len(got) != len(want) {
		t.Fatalf("sources = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sources = %v, want %v", got, want)
		}
	}
	if len(TransitionSources(OrderStatusPending)) != 0 {
		t.Error("nothing should transition into PENDING")
	}
}
