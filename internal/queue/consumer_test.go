package queue

import (
	"context"
	"encoding/json"
	"testing"
)

type recordingHandler struct {
	orderID uint64
	success bool
	calls   int
}

func (r *recordingHandler) HandlePaymentOutcome(_ context.Context, orderID uint64, success bool) error {
	r.orderID = orderID
	r.success = success
	r.calls++
	return nil
}

func TestHandleOutcomeDispatches(t *testing.T) {
	body, _ := json.Marshal(PaymentOutcomeEvent{
		TransactionRef: "txn-1",
		OrderID:        77,
		Success:        true,
	})
	h := &recordingHandler{}
	if err := handleOutcome(context.Background(), body, h); err != nil {
		t.Fatalf("handleOutcome: %v", err)
	}
	if h.calls != 1 || h.orderID != 77 || !h.success {
		t.Errorf("handler saw calls=%d order=%d success=%t", h.calls, h.orderID, h.success)
	}
}

func TestHandleOutcomeRejectsBadPayloads(t *testing.T) {
	h := &recordingHandler{}
	if err := handleOutcome(context.Background(), []byte("not json"), h); err == nil {
		t.Error("malformed JSON should fail")
	}
	missing, _ := json.Marshal(PaymentOutcomeEvent{TransactionRef: "txn-2", Success: false})
	if err := handleOutcome(context.Background(), missing, h); err == nil {
		t.Error("missing order id should fail")
	}
	if h.calls != 0 {
		t.Errorf("handler invoked %d times for bad payloads", h.calls)
	}
}
