package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/miyomint/storefront/pkg/auth"
	"github.com/miyomint/storefront/pkg/config"
	"github.com/miyomint/storefront/pkg/logger"
	"github.com/miyomint/storefront/services/store/internal/domain"
	"github.com/miyomint/storefront/services/store/internal/service"
)

type Handlers struct {
	cartService     service.CartService
	checkoutService service.CheckoutService
	config          *config.Config
}

func New(
	cartService service.CartService,
	checkoutService service.CheckoutService,
	config *config.Config,
) *Handlers {
	return &Handlers{
		cartService:     cartService,
		checkoutService: checkoutService,
		config:          config,
	}
}

type ownerKeyType struct{}

var ownerKey ownerKeyType

// RequireCartOwner admits customer and guest tokens alike and resolves which
// cart the request operates on. Customers are keyed by user id, guests by the
// key baked into their guest token.
func (h *Handlers) RequireCartOwner() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := h.parseBearer(r)
			if claims == nil {
				writeError(w, http.StatusUnauthorized, "Missing or invalid authorization header", "UNAUTHORIZED")
				return
			}

			var owner service.CartOwner
			switch claims.Role {
			case auth.RoleCustomer, auth.RoleAdmin:
				owner = service.CartOwner{UserID: claims.Sub}
			case auth.RoleGuest:
				if claims.GuestKey == "" {
					writeError(w, http.StatusUnauthorized, "Guest token carries no cart key", "INVALID_TOKEN")
					return
				}
				owner = service.CartOwner{GuestKey: claims.GuestKey}
			default:
				writeError(w, http.StatusForbidden, "Insufficient permissions", "FORBIDDEN")
				return
			}

			ctx := context.WithValue(r.Context(), ownerKey, owner)
			if owner.UserID != 0 {
				ctx = context.WithValue(ctx, logger.UserIDKey, owner.UserID)
			} else {
				ctx = context.WithValue(ctx, logger.GuestKeyKey, owner.GuestKey)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireJWT admits only the named role (admin always passes).
func (h *Handlers) RequireJWT(requiredRole string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := h.parseBearer(r)
			if claims == nil {
				writeError(w, http.StatusUnauthorized, "Missing or invalid authorization header", "UNAUTHORIZED")
				return
			}

			if requiredRole != "" && claims.Role != requiredRole && claims.Role != auth.RoleAdmin {
				writeError(w, http.StatusForbidden, "Insufficient permissions", "FORBIDDEN")
				return
			}

			ctx := context.WithValue(r.Context(), logger.UserIDKey, claims.Sub)
			ctx = context.WithValue(ctx, "claims", claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GuestSession mints a guest token carrying a fresh cart key. Clients call
// this once and keep the token for the life of the browsing session.
func (h *Handlers) GuestSession(w http.ResponseWriter, r *http.Request) {
	guestKey := uuid.NewString()
	token, err := auth.NewGuestSession(guestKey, h.config.Auth.JWTSecret, h.config.Auth.GuestSessionTTL)
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to mint guest session", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create guest session", "INTERNAL_ERROR")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"guest_token": token,
		"expires_in":  int64(h.config.Auth.GuestSessionTTL.Seconds()),
	})
}

func (h *Handlers) parseBearer(r *http.Request) *auth.Claims {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return nil
	}
	claims, err := auth.Parse(strings.TrimPrefix(authHeader, "Bearer "), h.config.Auth.JWTSecret)
	if err != nil {
		return nil
	}
	return claims
}

// Helper functions
func getOwner(r *http.Request) service.CartOwner {
	owner, _ := r.Context().Value(ownerKey).(service.CartOwner)
	return owner
}

func getClaims(r *http.Request) *auth.Claims {
	if claims, ok := r.Context().Value("claims").(*auth.Claims); ok {
		return claims
	}
	return nil
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, statusCode int, message, code string) {
	response := map[string]string{
		"error": message,
		"code":  code,
	}
	writeJSON(w, statusCode, response)
}

// writeServiceError maps a service failure onto the response policy: buyer
// input problems return the message verbatim, every other failure a generic
// body with the detail kept in the log.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		writeError(w, http.StatusBadRequest, ve.Message, "INVALID_INPUT")
		return
	}
	logger.ErrorContext(r.Context(), "Request failed", "error", err)
	writeError(w, http.StatusInternalServerError, "Something went wrong. Please try again.", "INTERNAL_ERROR")
}

func parsePagination(r *http.Request) (limit, offset int) {
	limit = 20
	offset = 0

	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return limit, offset
}
