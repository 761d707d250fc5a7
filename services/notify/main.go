package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/miyomint/storefront/pkg/config"
	"github.com/miyomint/storefront/pkg/events"
	"github.com/miyomint/storefront/pkg/logger"
	mw "github.com/miyomint/storefront/pkg/middleware"
	"github.com/miyomint/storefront/services/notify/internal/handlers"
	"github.com/miyomint/storefront/services/notify/internal/smtpclient"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.Load()

	eventBus, err := events.NewNATSEventBus(cfg.NATS.URL)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer eventBus.Close()

	sender := smtpclient.New(cfg.Email.SMTPHost, cfg.Email.SMTPPort, cfg.Email.SMTPFrom, cfg.Email.SMTPUser, cfg.Email.SMTPPass)
	h := handlers.New(sender, "MiyoMint")

	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("notify"))
	r.Use(mw.Logging)
	r.Use(mw.Health)
	r.Use(mw.Metrics("notify"))

	r.Post("/webhook", h.Webhook)

	srv := &http.Server{
		Addr:         ":8086",
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting notify service", "port", "8086")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		// Registrations arriving over the bus get the same welcome email as
		// webhook deliveries
		return eventBus.QueueSubscribe(events.UserRegistered, "notify", func(msg *events.Message) {
			var event events.UserRegisteredEvent
			if err := json.Unmarshal(msg.Data, &event); err != nil {
				logger.Error("Failed to decode user registered event", "error", err)
				return
			}
			sendCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
			defer cancel()
			if err := h.SendWelcome(sendCtx, event.Email, event.FullName); err != nil {
				logger.Error("Failed to send welcome email", "error", err, "user_id", event.UserID)
			}
		})
	})

	g.Go(func() error {
		// Generic send channel for the other services
		return eventBus.QueueSubscribe(events.NotifySend, "notify", func(msg *events.Message) {
			var event events.NotificationEvent
			if err := json.Unmarshal(msg.Data, &event); err != nil {
				logger.Error("Failed to decode notification event", "error", err)
				return
			}
			body, _ := event.Data["body"].(string)
			if event.Recipient == "" || body == "" {
				logger.Error("Notification event missing recipient or body", "type", event.Type)
				return
			}
			sendCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
			defer cancel()
			if err := sender.Send(sendCtx, event.Recipient, event.Subject, body); err != nil {
				logger.Error("Failed to send notification", "error", err, "type", event.Type)
			}
		})
	})

	g.Go(func() error {
		<-ctx.Done()

		logger.Info("Shutting down notify service...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Notify service error", "error", err)
		os.Exit(1)
	}
}
