package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/miyomint/storefront/pkg/config"
	"github.com/miyomint/storefront/pkg/database"
	"github.com/miyomint/storefront/pkg/events"
	"github.com/miyomint/storefront/pkg/logger"
	mw "github.com/miyomint/storefront/pkg/middleware"
	"github.com/miyomint/storefront/services/auth/internal/handlers"
	"github.com/miyomint/storefront/services/auth/internal/mailer"
	"github.com/miyomint/storefront/services/auth/internal/repository"
	"github.com/miyomint/storefront/services/auth/internal/session"
)

func main() {
	cfg := config.Load()

	// Run migrations before taking traffic
	if err := database.RunMigrations(cfg.Database.URL); err != nil {
		logger.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

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

	// Initialize repositories
	profileRepo := repository.NewProfileRepository(pool)
	verifyRepo := repository.NewVerifyRepository(pool)
	rateLimitRepo := repository.NewRateLimitRepository(pool)

	// Initialize session store
	sessionStore := session.New(profileRepo, verifyRepo, selectMailer(cfg), eventBus, cfg)

	// Initialize handlers
	h := handlers.New(sessionStore, profileRepo, rateLimitRepo, cfg)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("auth"))
	r.Use(mw.Logging)
	r.Use(mw.Health)
	r.Use(mw.Metrics("auth"))

	// Routes
	r.Route("/", func(r chi.Router) {
		// Sign-up and sign-in are throttled per client IP
		r.Group(func(r chi.Router) {
			r.Use(h.RateLimit("auth_write", 10, time.Minute))
			r.Post("/signup", h.SignUp)
			r.Post("/signin", h.SignIn)
			r.Post("/resend-verification", h.ResendVerification)
			r.Post("/password-reset", h.RequestPasswordReset)
			r.Post("/password-reset/confirm", h.ConfirmPasswordReset)
		})

		r.Post("/signout", h.SignOut)
		r.Get("/session", h.CurrentSession)
		r.Post("/refresh", h.RefreshToken)

		// Both shapes of the verification link land here
		r.Get("/verify-email", h.VerifyEmail)
		r.Post("/verify-email", h.VerifyEmail)

		// Profile (requires customer JWT)
		r.Route("/me", func(r chi.Router) {
			r.Use(h.RequireJWT("customer"))
			r.Get("/", h.GetProfile)
			r.Patch("/", h.UpdateProfile)
		})
	})

	// Start server
	srv := &http.Server{
		Addr:         ":8081",
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

		logger.Info("Shutting down auth service...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Auth service shutdown error", "error", err)
		}
	}()

	logger.Info("Starting auth service", "port", "8081")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Auth service error", "error", err)
		os.Exit(1)
	}
}

func selectMailer(cfg *config.Config) mailer.Service {
	switch {
	case cfg.Email.DevMode:
		return mailer.NewDevMailer()
	case cfg.Email.MailerSendKey != "":
		return mailer.NewMailerSendMailer(cfg.Email.MailerSendKey, "MiyoMint", cfg.Email.SMTPFrom)
	default:
		return mailer.NewSMTPMailer(
			cfg.Email.SMTPHost,
			cfg.Email.SMTPPort,
			cfg.Email.SMTPFrom,
			cfg.Email.SMTPUser,
			cfg.Email.SMTPPass,
			cfg.Email.SMTPUseTLS,
		)
	}
}
