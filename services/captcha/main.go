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
	"github.com/miyomint/storefront/services/captcha/internal/handlers"
	"github.com/miyomint/storefront/services/captcha/internal/verifier"
)

func main() {
	cfg := config.Load()

	if cfg.Captcha.Secret == "" {
		// Keep serving so the storefront gets a clear 503 instead of a
		// connection error.
		logger.Error("CAPTCHA_SECRET is not set, all verifications will fail")
	}

	v := verifier.New(cfg.Captcha.VerifyURL, cfg.Captcha.Secret)
	h := handlers.New(v)

	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("captcha"))
	r.Use(mw.Logging)

	// The storefront calls this directly from the browser
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.Site.BaseURL, "http://localhost:3000"},
		AllowedMethods:   []string{"POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Use(mw.Health)
	r.Use(mw.Metrics("captcha"))

	r.Post("/verify", h.Verify)

	srv := &http.Server{
		Addr:         ":8087",
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down captcha service...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Captcha service shutdown error", "error", err)
		}
	}()

	logger.Info("Starting captcha service", "port", "8087")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Captcha service error", "error", err)
		os.Exit(1)
	}
}
