package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// PaymentClient initiates charges with the external payment provider.  The
// provider answers the initiation synchronously with a transaction reference
// and reports the final outcome later through the payment-outcomes queue.
type PaymentClient struct {
	baseURL string
	apiKey  string
	hc      *http.Client
}

func NewPaymentClient(baseURL, apiKey string) *PaymentClient {
	return &PaymentClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		hc:      &http.Client{Timeout: 15 * time.Second},
	}
}

type initiateRequest struct {
	Reference   string `json:"reference"`
	OrderID     uint64 `json:"order_id"`
	AmountCents uint64 `json:"amount_cents"`
	Currency    string `json:"currency"`
}

type initiateResponse struct {
	TransactionRef string `json:"transaction_ref"`
	Status         string `json:"status"`
}

// Initiate asks the provider to start collecting payment for an order and
// returns the provider's transaction reference.  The generated idempotency
// reference keeps a retried initiation from charging twice.
func (c *PaymentClient) Initiate(ctx context.Context, orderID uint64, amountCents uint64) (string, error) {
	body, err := json.Marshal(initiateRequest{
		Reference:   uuid.NewString(),
		OrderID:     orderID,
		AmountCents: amountCents,
		Currency:    "USD",
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/charges", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("payment provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("payment provider returned status %d", resp.StatusCode)
	}

	var out initiateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("payment provider: decode: %w", err)
	}
	if out.TransactionRef == "" {
		return "", fmt.Errorf("payment provider: empty transaction ref")
	}
	return out.TransactionRef, nil
}
