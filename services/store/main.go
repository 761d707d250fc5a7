package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/miyomint/storefront/pkg/cache"
	"github.com/miyomint/storefront/pkg/config"
	"github.com/miyomint/storefront/pkg/database"
	"github.com/miyomint/storefront/pkg/events"
	"github.com/miyomint/storefront/pkg/logger"
	mw "github.com/miyomint/storefront/pkg/middleware"
	"github.com/miyomint/storefront/services/store/internal/handlers"
	"github.com/miyomint/storefront/services/store/internal/payments"
	"github.com/miyomint/storefront/services/store/internal/repository"
	"github.com/miyomint/storefront/services/store/internal/service"
)

func main() {
	cfg := config.Load()

	// Connect to database
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg.Database.URL)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Connect to event bus
	eventBus, err := events.NewNATSEventBus(cfg.NATS.URL)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer eventBus.Close()

	// Redis backs the response-replay idempotency middleware
	redisStore, err := cache.NewRedisStore(cfg.Redis.URL, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Error("Failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisStore.Close()

	// Stripe only runs when a key is configured
	var provider payments.Provider
	if cfg.Stripe.SecretKey != "" {
		provider = payments.NewStripeProvider(cfg.Stripe.SecretKey)
	}

	// Initialize repositories
	cartRepo := repository.NewCartRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)
	idempotencyRepo := repository.NewIdempotencyRepository(pool)

	// Initialize services
	cartService := service.NewCartService(cartRepo)
	checkoutService := service.NewCheckoutService(cartRepo, orderRepo, idempotencyRepo, provider, eventBus, cfg)

	// Initialize handlers
	h := handlers.New(cartService, checkoutService, cfg)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("store"))
	r.Use(mw.Logging)
	r.Use(mw.Health)
	r.Use(mw.Metrics("store"))

	// Routes
	r.Route("/", func(r chi.Router) {
		r.Post("/guest/session", h.GuestSession)

		// Guest order lookup needs no session, just number + email
		r.Get("/guest/orders/{orderNumber}", h.LookupGuestOrder)

		// Cart (customer or guest token)
		r.Route("/cart", func(r chi.Router) {
			r.Use(h.RequireCartOwner())
			r.Get("/", h.GetCart)
			r.Post("/items", h.AddToCart)
			r.Patch("/items/{productID}", h.UpdateQuantity)
			r.Delete("/items/{productID}", h.RemoveFromCart)
			r.Delete("/", h.ClearCart)

			// Merge requires a real customer session on top of the owner check
			r.With(h.RequireJWT("customer")).Post("/merge", h.MergeCart)
		})

		// Checkout (customer or guest token, replay-safe)
		r.Group(func(r chi.Router) {
			r.Use(h.RequireCartOwner())
			r.Use(mw.IdempotencyMiddleware(redisStore))
			r.Post("/checkout", h.Checkout)
		})

		// Customer order history
		r.Route("/orders", func(r chi.Router) {
			r.Use(h.RequireJWT("customer"))
			r.Get("/", h.ListMyOrders)
			r.Get("/{id}", h.GetMyOrder)
		})

		// Connected sales channels push orders here; admin token required
		r.With(h.RequireJWT("admin")).Post("/webhooks/orders", h.ImportGuestOrder)

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Use(h.RequireJWT("admin"))
			r.Get("/orders", h.ListOrders)
			r.Get("/orders/{id}", h.GetOrder)
			r.Patch("/orders/{id}/status", h.MoveOrderStatus)
		})
	})

	// Start server
	srv := &http.Server{
		Addr:         ":8082",
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down store service...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Store service shutdown error", "error", err)
		}
	}()

	logger.Info("Starting store service", "port", "8082")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Store service error", "error", err)
		os.Exit(1)
	}
}
