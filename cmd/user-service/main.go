package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/shopmesh/marketplace/internal/config"
	"github.com/shopmesh/marketplace/internal/database"
	"github.com/shopmesh/marketplace/internal/handler"
	"github.com/shopmesh/marketplace/internal/repository"
	"github.com/shopmesh/marketplace/internal/router"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatalf("user-service: open database: %v", err)
	}
	defer db.Close()

	auth := handler.NewAuthHandler(cfg, repository.NewUserRepo(db), repository.NewTokenRepo(db))

	e := echo.New()
	e.HideBanner = true
	router.RegisterHealth(e)
	router.RegisterAuth(e, auth, cfg.JWTSecret)

	go func() {
		<-ctx.Done()
		_ = e.Shutdown(context.Background())
	}()

	addr := ":" + cfg.Port
	log.Printf("user-service: listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil && ctx.Err() == nil {
		log.Fatal(err)
	}
}
