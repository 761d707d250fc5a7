package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/miyomint/storefront/services/store/internal/domain"
)

// Checkout submits the caller's cart as an order
func (h *Handlers) Checkout(w http.ResponseWriter, r *http.Request) {
	var req domain.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format", "INVALID_INPUT")
		return
	}

	idempotencyKey := r.Header.Get("Idempotency-Key")
	result, err := h.checkoutService.Checkout(r.Context(), getOwner(r), &req, idempotencyKey)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// ImportGuestOrder ingests an order pushed by a connected sales channel. The
// two-step header/line write means a mid-sequence failure can leave a header
// with partial lines; the caller gets a generic failure either way.
func (h *Handlers) ImportGuestOrder(w http.ResponseWriter, r *http.Request) {
	var req domain.GuestOrderImport
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format", "INVALID_INPUT")
		return
	}

	order, err := h.checkoutService.ImportGuestOrder(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, order)
}

// ListMyOrders returns the signed-in customer's orders, newest first
func (h *Handlers) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	claims := getClaims(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized", "UNAUTHORIZED")
		return
	}

	limit, offset := parsePagination(r)
	orders, err := h.checkoutService.ListUserOrders(r.Context(), claims.Sub, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list orders", "INTERNAL_ERROR")
		return
	}

	if orders == nil {
		orders = []domain.Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}

// GetMyOrder returns one of the customer's orders with its lines
func (h *Handlers) GetMyOrder(w http.ResponseWriter, r *http.Request) {
	claims := getClaims(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized", "UNAUTHORIZED")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid order ID", "INVALID_INPUT")
		return
	}

	order, err := h.checkoutService.GetOrder(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load order", "INTERNAL_ERROR")
		return
	}
	if order == nil || order.UserID != claims.Sub {
		writeError(w, http.StatusNotFound, "Order not found", "NOT_FOUND")
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// LookupGuestOrder finds a guest order by number and checkout email. No
// session needed; the email is the only credential a guest holds.
func (h *Handlers) LookupGuestOrder(w http.ResponseWriter, r *http.Request) {
	orderNumber := chi.URLParam(r, "orderNumber")
	email := r.URL.Query().Get("email")
	if email == "" {
		writeError(w, http.StatusBadRequest, "email query parameter is required", "INVALID_INPUT")
		return
	}

	order, err := h.checkoutService.LookupGuestOrder(r.Context(), orderNumber, email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to look up order", "INTERNAL_ERROR")
		return
	}
	if order == nil {
		writeError(w, http.StatusNotFound, "Order not found", "NOT_FOUND")
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// Admin handlers

// ListOrders returns all orders, optionally filtered by status (admin only)
func (h *Handlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	var status *domain.OrderStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, err := domain.ParseOrderStatus(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), "INVALID_INPUT")
			return
		}
		status = &parsed
	}

	orders, err := h.checkoutService.ListOrders(r.Context(), limit, offset, status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list orders", "INTERNAL_ERROR")
		return
	}

	if orders == nil {
		orders = []domain.Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}

// GetOrder returns any order by id (admin only)
func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid order ID", "INVALID_INPUT")
		return
	}

	order, err := h.checkoutService.GetOrder(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load order", "INTERNAL_ERROR")
		return
	}
	if order == nil {
		writeError(w, http.StatusNotFound, "Order not found", "NOT_FOUND")
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// MoveOrderStatus applies a status transition (admin only)
func (h *Handlers) MoveOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid order ID", "INVALID_INPUT")
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format", "INVALID_INPUT")
		return
	}

	to, err := domain.ParseOrderStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_INPUT")
		return
	}

	order, err := h.checkoutService.MoveOrderStatus(r.Context(), id, to)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "STATUS_MOVE_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, order)
}
