package main

import (
	"context"
	"log"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/shopmesh/marketplace/internal/checkout"
	"github.com/shopmesh/marketplace/internal/client"
	"github.com/shopmesh/marketplace/internal/config"
	"github.com/shopmesh/marketplace/internal/database"
	"github.com/shopmesh/marketplace/internal/discovery"
	"github.com/shopmesh/marketplace/internal/handler"
	"github.com/shopmesh/marketplace/internal/middleware"
	"github.com/shopmesh/marketplace/internal/model"
	"github.com/shopmesh/marketplace/internal/queue"
	"github.com/shopmesh/marketplace/internal/reconcile"
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
		log.Fatalf("order-service: open database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient()

	orderRepo := repository.NewOrderRepo(db)
	invRepo := repository.NewInventoryRepo(db)

	// Catalog lookups go through Consul when it is configured, otherwise
	// straight to the static URL.
	var resolver client.Resolver = client.FixedURL(cfg.CatalogURL)
	if cfg.ConsulAddr != "" {
		consul, err := discovery.New(cfg.ConsulAddr)
		if err != nil {
			log.Fatalf("order-service: consul: %v", err)
		}
		resolver = consul
		svc := discovery.Service{
			Name: "order-service",
			ID:   "order-service-" + cfg.Port,
			Port: mustPort(cfg.Port),
			Tags: []string{"orders", "checkout"},
		}
		if err := consul.Register(svc); err != nil {
			log.Fatalf("order-service: register: %v", err)
		}
		defer func() { _ = consul.Deregister(svc.ID) }()
	}

	catalog := client.NewCatalogClient(resolver, cfg.CatalogServiceName)
	payments := client.NewPaymentClient(cfg.PaymentProviderURL, cfg.PaymentAPIKey)
	publisher := queue.NewPublisher(cfg.AMQPURL)

	saga := checkout.NewSaga(catalog, invRepo, orderRepo, payments, publisher)

	go func() {
		if err := queue.StartPaymentOutcomeConsumer(ctx, cfg.AMQPURL, saga); err != nil && ctx.Err() == nil {
			log.Printf("order-service: payment consumer stopped: %v", err)
		}
	}()

	rec := reconcile.New(orderRepo, saga, model.OrderStatusAwaitingPayment, cfg.PaymentTimeout, cfg.ReconcileInterval)
	go rec.Run(ctx)

	e := echo.New()
	e.HideBanner = true
	router.RegisterHealth(e)
	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	router.RegisterOrders(e,
		handler.NewCheckoutHandler(saga, orderRepo),
		handler.NewPaymentWebhookHandler(saga, cfg.PaymentAPIKey),
		cfg.JWTSecret, limiter)

	go func() {
		<-ctx.Done()
		_ = e.Shutdown(context.Background())
	}()

	addr := ":" + cfg.Port
	log.Printf("order-service: listening on %s (env=%s)", addr, cfg.Env)
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
