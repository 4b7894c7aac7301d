package router

import (
	"github.com/labstack/echo/v4"

	"github.com/shopmesh/marketplace/internal/handler"
	"github.com/shopmesh/marketplace/internal/middleware"
	"github.com/shopmesh/marketplace/internal/model"
)

// RegisterCatalog registers the catalog service's routes.  Public browsing
// sits behind the rate limiter and response cache; the admin surface
// requires an ADMIN token and is never cached.
func RegisterCatalog(e *echo.Echo, h *handler.CatalogHandler, jwtSecret string, limiter, cache echo.MiddlewareFunc) {
	pub := e.Group("/v1/products", limiter)
	pub.GET("", h.ListProducts, cache)
	pub.GET("/:id", h.GetProduct, cache)
	// Availability feeds checkout validation and must always be live.
	pub.GET("/:id/availability", h.Availability)

	admin := e.Group("/v1/admin/products")
	admin.Use(middleware.JWTAuth(jwtSecret))
	admin.Use(middleware.RequireRole(model.RoleAdmin))
	admin.POST("", h.CreateProduct)
	admin.PUT("/:id", h.UpdateProduct)
	admin.DELETE("/:id", h.DeactivateProduct)
	admin.POST("/:id/stock", h.AdjustStock)
}
