package main

import (
	"context"
	"log"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/shopmesh/marketplace/internal/config"
	"github.com/shopmesh/marketplace/internal/database"
	"github.com/shopmesh/marketplace/internal/discovery"
	"github.com/shopmesh/marketplace/internal/handler"
	"github.com/shopmesh/marketplace/internal/middleware"
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
		log.Fatalf("catalog-service: open database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient()

	products := repository.NewCachedProductRepo(repository.NewProductRepo(db), rdb, 5*time.Minute)
	inventory := repository.NewInventoryRepo(db)

	if cfg.ConsulAddr != "" {
		consul, err := discovery.New(cfg.ConsulAddr)
		if err != nil {
			log.Fatalf("catalog-service: consul: %v", err)
		}
		svc := discovery.Service{
			Name: cfg.CatalogServiceName,
			ID:   cfg.CatalogServiceName + "-" + cfg.Port,
			Port: mustPort(cfg.Port),
			Tags: []string{"catalog"},
		}
		if err := consul.Register(svc); err != nil {
			log.Fatalf("catalog-service: register: %v", err)
		}
		defer func() { _ = consul.Deregister(svc.ID) }()
	}

	e := echo.New()
	e.HideBanner = true
	router.RegisterHealth(e)
	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)
	router.RegisterCatalog(e, handler.NewCatalogHandler(products, inventory), cfg.JWTSecret, limiter, cache)

	go func() {
		<-ctx.Done()
		_ = e.Shutdown(context.Background())
	}()

	addr := ":" + cfg.Port
	log.Printf("catalog-service: listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil && ctx.Err() == nil {
		log.Fatal(err)
	}
}

func mustPort(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid port %q", s)
	}
	return n
}
