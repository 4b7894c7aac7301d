package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/shopmesh/marketplace/internal/checkout"
	"github.com/shopmesh/marketplace/internal/middleware"
	"github.com/shopmesh/marketplace/internal/model"
	"github.com/shopmesh/marketplace/internal/repository"
)

// CheckoutHandler exposes the checkout saga and order queries over HTTP.
type CheckoutHandler struct {
	Saga   *checkout.Saga
	Orders *repository.OrderRepo
}

func NewCheckoutHandler(saga *checkout.Saga, orders *repository.OrderRepo) *CheckoutHandler {
	return &CheckoutHandler{Saga: saga, Orders: orders}
}

type checkoutReq struct {
	Items           []checkout.RequestedItem `json:"items"`
	ShippingAddress string                   `json:"shipping_address"`
	PaymentMethod   string                   `json:"payment_method"`
}

// Checkout handles POST /v1/checkout.  On success the response carries the
// order in AWAITING_PAYMENT; the final status arrives asynchronously via the
// payment outcome.
func (h *CheckoutHandler) Checkout(c echo.Context) error {
	userID := middleware.CurrentUserID(c)
	if userID == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req checkoutReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if len(req.Items) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "items required"})
	}
	if req.ShippingAddress == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "shipping_address required"})
	}

	order, err := h.Saga.Checkout(c.Request().Context(), checkout.Request{
		UserID:          userID,
		Items:           req.Items,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrProductNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "product not found"})
		case errors.Is(err, repository.ErrInsufficientStock):
			return c.JSON(http.StatusConflict, echo.Map{"error": "insufficient stock"})
		case errors.Is(err, checkout.ErrCatalogUnavailable):
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "catalog unavailable, try again"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "checkout failed"})
		}
	}
	return c.JSON(http.StatusAccepted, order)
}

// ListOrders handles GET /v1/orders for the authenticated user.
func (h *CheckoutHandler) ListOrders(c echo.Context) error {
	userID := middleware.CurrentUserID(c)
	if userID == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	orders, err := h.Orders.ListByUser(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"orders": orders})
}

// GetOrder handles GET /v1/orders/:id.  Users only ever see their own
// orders; an order belonging to someone else reads as not found.
func (h *CheckoutHandler) GetOrder(c echo.Context) error {
	userID := middleware.CurrentUserID(c)
	if userID == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	orderID, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order id"})
	}
	order, err := h.Orders.GetForUser(c.Request().Context(), orderID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) || errors.Is(err, repository.ErrForbidden) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, order)
}

// CancelOrder handles POST /v1/orders/:id/cancel.  Only orders still
// awaiting payment can be cancelled; the saga releases their reservation.
func (h *CheckoutHandler) CancelOrder(c echo.Context) error {
	userID := middleware.CurrentUserID(c)
	if userID == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	orderID, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order id"})
	}

	ctx := c.Request().Context()
	// Ownership and status check before touching the saga.
	order, err := h.Orders.GetForUser(ctx, orderID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) || errors.Is(err, repository.ErrForbidden) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if order.Status != model.OrderStatusAwaitingPayment {
		return c.JSON(http.StatusConflict, echo.Map{"error": "order cannot be cancelled"})
	}
	if err := h.Saga.Cancel(ctx, orderID); err != nil {
		return c.JSON(http.StatusConflict, echo.Map{"error": "order cannot be cancelled"})
	}
	order, err = h.Orders.Get(ctx, orderID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, order)
}
