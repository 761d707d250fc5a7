package handlers

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/miyomint/storefront/pkg/logger"
	"github.com/miyomint/storefront/services/captcha/internal/verifier"
)

// TokenChecker is the slice of the verifier the handler needs.
type TokenChecker interface {
	Configured() bool
	Verify(ctx context.Context, token, remoteIP string) (*verifier.Result, error)
}

type Handlers struct {
	verifier TokenChecker
}

func New(v TokenChecker) *Handlers {
	return &Handlers{verifier: v}
}

// Verify checks one captcha token. A missing secret answers 503 on every
// request; the operator error surfaces instead of waving traffic through.
func (h *Handlers) Verify(w http.ResponseWriter, r *http.Request) {
	if !h.verifier.Configured() {
		writeError(w, http.StatusServiceUnavailable, "Captcha verification is not configured", "NOT_CONFIGURED")
		return
	}

	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format", "INVALID_INPUT")
		return
	}

	result, err := h.verifier.Verify(r.Context(), req.Token, clientIP(r))
	if err != nil {
		logger.ErrorContext(r.Context(), "Captcha verification failed", "error", err)
		writeError(w, http.StatusBadGateway, "Captcha provider is unavailable", "UPSTREAM_UNAVAILABLE")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, statusCode int, message, code string) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
		"code":  code,
	})
}
