package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/miyomint/storefront/pkg/logger"
)

// Sender delivers one composed message.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

type Handlers struct {
	sender   Sender
	siteName string
}

func New(sender Sender, siteName string) *Handlers {
	return &Handlers{sender: sender, siteName: siteName}
}

// webhookPayload is the row-change envelope the identity backend posts on
// profile inserts.
type webhookPayload struct {
	Type   string `json:"type"`
	Table  string `json:"table"`
	Record struct {
		ID              int64  `json:"id"`
		Email           string `json:"email"`
		RawUserMetaData struct {
			FullName string `json:"full_name"`
		} `json:"raw_user_meta_data"`
	} `json:"record"`
}

// Webhook sends the welcome email for newly inserted users. Non-INSERT events
// acknowledge without sending.
func (h *Handlers) Webhook(w http.ResponseWriter, r *http.Request) {
	var payload webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}

	if payload.Type != "INSERT" {
		writeJSON(w, http.StatusOK, map[string]string{"message": "ignored"})
		return
	}

	if payload.Record.Email == "" {
		writeError(w, http.StatusBadRequest, "record has no email")
		return
	}

	if err := h.SendWelcome(r.Context(), payload.Record.Email, payload.Record.RawUserMetaData.FullName); err != nil {
		logger.ErrorContext(r.Context(), "Failed to send welcome email", "error", err, "user_id", payload.Record.ID)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "welcome email sent"})
}

// SendWelcome composes and delivers the welcome message. The NATS subscriber
// shares this path with the webhook.
func (h *Handlers) SendWelcome(ctx context.Context, email, fullName string) error {
	name := fullName
	if name == "" {
		name = "there"
	}

	subject := fmt.Sprintf("Welcome to %s!", h.siteName)
	body := fmt.Sprintf(
		"Hi %s,\r\n\r\n"+
			"Welcome to %s! Your account is ready.\r\n\r\n"+
			"Browse the shop, fill your cart, and check out whenever you like.\r\n\r\n"+
			"The %s team",
		name, h.siteName, h.siteName,
	)

	return h.sender.Send(ctx, email, subject, body)
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}
