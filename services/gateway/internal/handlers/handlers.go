package handlers

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/miyomint/storefront/pkg/auth"
	"github.com/miyomint/storefront/pkg/config"
	"github.com/miyomint/storefront/pkg/logger"
	"github.com/miyomint/storefront/services/gateway/internal/proxy"
)

type Handlers struct {
	authProxy    *proxy.ServiceProxy
	storeProxy   *proxy.ServiceProxy
	notifyProxy  *proxy.ServiceProxy
	captchaProxy *proxy.ServiceProxy
	config       *config.Config
}

func New(authProxy, storeProxy, notifyProxy, captchaProxy *proxy.ServiceProxy, config *config.Config) *Handlers {
	return &Handlers{
		authProxy:    authProxy,
		storeProxy:   storeProxy,
		notifyProxy:  notifyProxy,
		captchaProxy: captchaProxy,
		config:       config,
	}
}

// Helper to copy request body and headers
func (h *Handlers) proxyRequest(w http.ResponseWriter, r *http.Request, serviceProxy *proxy.ServiceProxy, path string) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	headers := make(map[string]string)
	for key, values := range r.Header {
		if len(values) > 0 && shouldCopyHeader(key) {
			headers[key] = values[0]
		}
	}

	if r.URL.RawQuery != "" {
		path += "?" + r.URL.RawQuery
	}

	resp, err := serviceProxy.ProxyRequest(r.Context(), r.Method, path, body, headers)
	if err != nil {
		logger.ErrorContext(r.Context(), "Service proxy error", "error", err, "path", path)
		http.Error(w, "Service unavailable", http.StatusServiceUnavailable)
		return
	}
	defer resp.Body.Close()

	for key, values := range resp.Header {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}

	w.WriteHeader(resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		logger.ErrorContext(r.Context(), "Failed to copy response body", "error", err)
	}
}

func shouldCopyHeader(key string) bool {
	key = strings.ToLower(key)
	skipHeaders := []string{
		"host",
		"connection",
		"upgrade",
		"proxy-connection",
		"proxy-authenticate",
		"proxy-authorization",
		"te",
		"trailers",
		"transfer-encoding",
	}

	for _, skip := range skipHeaders {
		if key == skip {
			return false
		}
	}
	return true
}

// Auth middleware
func (h *Handlers) RequireJWT(requiredRole string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				http.Error(w, "Missing or invalid authorization header", http.StatusUnauthorized)
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")
			claims, err := auth.Parse(token, h.config.Auth.JWTSecret)
			if err != nil {
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			if requiredRole != "" && claims.Role != requiredRole && claims.Role != auth.RoleAdmin {
				http.Error(w, "Insufficient permissions", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), logger.UserIDKey, claims.Sub)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Auth service routes

func (h *Handlers) SignUp(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.authProxy, "/signup")
}

func (h *Handlers) SignIn(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.authProxy, "/signin")
}

func (h *Handlers) SignOut(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.authProxy, "/signout")
}

func (h *Handlers) CurrentSession(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.authProxy, "/session")
}

func (h *Handlers) RefreshToken(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.authProxy, "/refresh")
}

func (h *Handlers) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.authProxy, "/verify-email")
}

func (h *Handlers) ResendVerification(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.authProxy, "/resend-verification")
}

func (h *Handlers) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.authProxy, "/password-reset")
}

func (h *Handlers) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.authProxy, "/password-reset/confirm")
}

func (h *Handlers) GetProfile(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.authProxy, "/me")
}

func (h *Handlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.authProxy, "/me")
}

// Store service routes

func (h *Handlers) GuestSession(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.storeProxy, "/guest/session")
}

func (h *Handlers) GetCart(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.storeProxy, "/cart")
}

func (h *Handlers) AddToCart(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.storeProxy, "/cart/items")
}

func (h *Handlers) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.storeProxy, "/cart/items/"+chi.URLParam(r, "productID"))
}

func (h *Handlers) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.storeProxy, "/cart/items/"+chi.URLParam(r, "productID"))
}

func (h *Handlers) ClearCart(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.storeProxy, "/cart")
}

func (h *Handlers) MergeCart(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.storeProxy, "/cart/merge")
}

func (h *Handlers) Checkout(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.storeProxy, "/checkout")
}

func (h *Handlers) LookupGuestOrder(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.storeProxy, "/guest/orders/"+chi.URLParam(r, "orderNumber"))
}

func (h *Handlers) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.storeProxy, "/orders")
}

func (h *Handlers) GetMyOrder(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.storeProxy, "/orders/"+chi.URLParam(r, "id"))
}

// Admin routes

func (h *Handlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.storeProxy, "/admin/orders")
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.storeProxy, "/admin/orders/"+chi.URLParam(r, "id"))
}

func (h *Handlers) MoveOrderStatus(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.storeProxy, "/admin/orders/"+chi.URLParam(r, "id")+"/status")
}

// Support services

func (h *Handlers) VerifyCaptcha(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.captchaProxy, "/verify")
}

func (h *Handlers) NotifyWebhook(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.notifyProxy, "/webhook")
}
