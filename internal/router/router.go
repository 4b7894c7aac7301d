// Package router wires HTTP routes for each marketplace service.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/shopmesh/marketplace/internal/handler"
	"github.com/shopmesh/marketplace/internal/middleware"
)

// RegisterHealth exposes the health check every service answers.
func RegisterHealth(e *echo.Echo) {
	e.GET("/health", handler.Health)
}

// RegisterAuth registers the user service's authentication routes.
// Register/login/refresh/logout live under /v1/auth and need no session;
// /v1/me requires a valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
}
