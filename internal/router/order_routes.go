package router

import (
	"github.com/labstack/echo/v4"

	"github.com/shopmesh/marketplace/internal/handler"
	"github.com/shopmesh/marketplace/internal/middleware"
	"github.com/shopmesh/marketplace/internal/model"
)

// RegisterOrders registers the order service's routes.  Checkout and order
// queries require an authenticated customer or admin; the payment webhook is
// authenticated by API key inside its handler instead.
func RegisterOrders(e *echo.Echo, h *handler.CheckoutHandler, wh *handler.PaymentWebhookHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	auth := e.Group("/v1", limiter)
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole(model.RoleCustomer, model.RoleAdmin))
	auth.POST("/checkout", h.Checkout)
	auth.GET("/orders", h.ListOrders)
	auth.GET("/orders/:id", h.GetOrder)
	auth.POST("/orders/:id/cancel", h.CancelOrder)

	e.POST("/v1/payments/webhook", wh.Handle)
}
