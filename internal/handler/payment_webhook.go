package handler

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/shopmesh/marketplace/internal/queue"
)

// PaymentWebhookHandler accepts payment outcomes over HTTP for providers
// that push callbacks instead of publishing to the broker.  Both paths feed
// the same saga entry point, so double delivery across the two is harmless.
type PaymentWebhookHandler struct {
	Saga   queue.OutcomeHandler
	APIKey string
}

func NewPaymentWebhookHandler(saga queue.OutcomeHandler, apiKey string) *PaymentWebhookHandler {
	return &PaymentWebhookHandler{Saga: saga, APIKey: apiKey}
}

// Handle processes POST /v1/payments/webhook.
func (h *PaymentWebhookHandler) Handle(c echo.Context) error {
	if h.APIKey != "" {
		got := c.Request().Header.Get("X-Api-Key")
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.APIKey)) != 1 {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
		}
	}
	var ev queue.PaymentOutcomeEvent
	if err := c.Bind(&ev); err != nil || ev.OrderID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payload"})
	}
	if err := h.Saga.HandlePaymentOutcome(c.Request().Context(), ev.OrderID, ev.Success); err != nil {
		// The provider retries on anything but 2xx; surfacing the failure is
		// exactly what we want here.
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	}
	return c.NoContent(http.StatusNoContent)
}
