package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/miyomint/storefront/pkg/config"
	"github.com/miyomint/storefront/pkg/logger"
	mw "github.com/miyomint/storefront/pkg/middleware"
	"github.com/miyomint/storefront/services/gateway/internal/handlers"
	"github.com/miyomint/storefront/services/gateway/internal/proxy"
)

func main() {
	cfg := config.Load()

	// Service addresses - localhost for development, service names in deploy
	var (
		authBaseURL    = getServiceURL("AUTH_SERVICE_URL", "http://localhost:8081")
		storeBaseURL   = getServiceURL("STORE_SERVICE_URL", "http://localhost:8082")
		notifyBaseURL  = getServiceURL("NOTIFY_SERVICE_URL", "http://localhost:8086")
		captchaBaseURL = getServiceURL("CAPTCHA_SERVICE_URL", "http://localhost:8087")
	)

	authProxy := proxy.NewServiceProxy(authBaseURL)
	storeProxy := proxy.NewServiceProxy(storeBaseURL)
	notifyProxy := proxy.NewServiceProxy(notifyBaseURL)
	captchaProxy := proxy.NewServiceProxy(captchaBaseURL)

	// Initialize handlers
	h := handlers.New(authProxy, storeProxy, notifyProxy, captchaProxy, cfg)

	// Setup router
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("gateway"))
	r.Use(mw.Logging)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.ErrorContext(r.Context(), "Panic recovered", "error", err)
					http.Error(w, "Internal server error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	})

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.Site.BaseURL, "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Use(mw.Health)
	r.Use(mw.Metrics("gateway"))

	// API routes
	r.Route("/v1", func(r chi.Router) {
		// Auth routes (routed to auth service)
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", h.SignUp)
			r.Post("/signin", h.SignIn)
			r.Post("/signout", h.SignOut)
			r.Get("/session", h.CurrentSession)
			r.Post("/refresh", h.RefreshToken)
			r.Get("/verify-email", h.VerifyEmail)
			r.Post("/verify-email", h.VerifyEmail)
			r.Post("/resend-verification", h.ResendVerification)
			r.Post("/password-reset", h.RequestPasswordReset)
			r.Post("/password-reset/confirm", h.ConfirmPasswordReset)
		})

		// Profile routes (JWT required)
		r.Route("/me", func(r chi.Router) {
			r.Use(h.RequireJWT("customer"))
			r.Get("/", h.GetProfile)
			r.Patch("/", h.UpdateProfile)
		})

		// Guest session bootstrap
		r.Post("/guest/session", h.GuestSession)
		r.Get("/guest/orders/{orderNumber}", h.LookupGuestOrder)

		// Cart routes (the store service resolves the owner)
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Post("/items", h.AddToCart)
			r.Patch("/items/{productID}", h.UpdateCartItem)
			r.Delete("/items/{productID}", h.RemoveCartItem)
			r.Delete("/", h.ClearCart)
			r.With(h.RequireJWT("customer")).Post("/merge", h.MergeCart)
		})

		// Checkout and orders
		r.Post("/checkout", h.Checkout)
		r.Route("/orders", func(r chi.Router) {
			r.Use(h.RequireJWT("customer"))
			r.Get("/", h.ListMyOrders)
			r.Get("/{id}", h.GetMyOrder)
		})

		// Admin order management
		r.Route("/admin", func(r chi.Router) {
			r.Use(h.RequireJWT("admin"))
			r.Get("/orders", h.ListOrders)
			r.Get("/orders/{id}", h.GetOrder)
			r.Patch("/orders/{id}/status", h.MoveOrderStatus)
		})

		// Support services
		r.Post("/captcha/verify", h.VerifyCaptcha)
		r.Post("/notify/webhook", h.NotifyWebhook)
	})

	// Start server
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
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

		logger.Info("Shutting down gateway service...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Gateway shutdown error", "error", err)
		}
	}()

	logger.Info("Starting gateway service", "port", cfg.Server.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Gateway server error", "error", err)
		os.Exit(1)
	}
}

func getServiceURL(envKey, fallback string) string {
	if url := os.Getenv(envKey); url != "" {
		return url
	}
	return fallback
}
