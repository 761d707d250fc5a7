package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/miyomint/storefront/services/store/internal/domain"
)

// GetCart returns the caller's cart with totals
func (h *Handlers) GetCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.cartService.GetCart(r.Context(), getOwner(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load cart", "INTERNAL_ERROR")
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

// AddToCart adds a line or bumps an existing one
func (h *Handlers) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req domain.AddLineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format", "INVALID_INPUT")
		return
	}

	cart, err := h.cartService.AddToCart(r.Context(), getOwner(r), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, cart)
}

// UpdateQuantity overwrites a line's quantity; zero removes the line
func (h *Handlers) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")

	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format", "INVALID_INPUT")
		return
	}

	cart, err := h.cartService.UpdateQuantity(r.Context(), getOwner(r), productID, req.Quantity)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, cart)
}

// RemoveFromCart drops one line
func (h *Handlers) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")

	cart, err := h.cartService.RemoveFromCart(r.Context(), getOwner(r), productID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, cart)
}

// ClearCart empties the cart; clearing an empty cart succeeds
func (h *Handlers) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.cartService.ClearCart(r.Context(), getOwner(r)); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to clear cart", "INTERNAL_ERROR")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MergeCart folds the guest cart named in the body into the signed-in
// customer's cart. Called by the storefront right after login.
func (h *Handlers) MergeCart(w http.ResponseWriter, r *http.Request) {
	claims := getClaims(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized", "UNAUTHORIZED")
		return
	}

	var req struct {
		GuestKey string `json:"guest_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.GuestKey == "" {
		writeError(w, http.StatusBadRequest, "guest_key is required", "INVALID_INPUT")
		return
	}

	cart, err := h.cartService.MergeOnLogin(r.Context(), req.GuestKey, claims.Sub)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to merge cart", "INTERNAL_ERROR")
		return
	}

	writeJSON(w, http.StatusOK, cart)
}
