package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/miyomint/storefront/pkg/logger"
	"github.com/miyomint/storefront/services/auth/internal/domain"
	"github.com/miyomint/storefront/services/auth/internal/verifyflow"
)

// SignUp handles customer registration. Credential creation and the profile
// write are two steps: a failed profile write is logged but does not undo the
// account.
func (h *Handlers) SignUp(w http.ResponseWriter, r *http.Request) {
	var req domain.SignUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format", "INVALID_INPUT")
		return
	}

	user, verifyURL, err := h.sessionStore.SignUp(r.Context(), &req)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	patch := &domain.ProfilePatch{FullName: &req.FullName}
	if req.Phone != "" {
		patch.Phone = &req.Phone
	}
	if updated, err := h.profiles.Update(r.Context(), user.ID, patch); err != nil {
		logger.ErrorContext(r.Context(), "Failed to write profile after sign up", "error", err, "user_id", user.ID)
	} else if updated != nil {
		user = updated
	}

	response := map[string]interface{}{
		"message": "Registration successful. Please check your email to verify your account.",
		"user":    user.ToUserInfo(),
	}

	// Include verify URL in development mode
	if h.config.Email.DevMode {
		response["dev_verify_url"] = verifyURL
	}

	writeJSON(w, http.StatusCreated, response)
}

// SignIn handles customer authentication
func (h *Handlers) SignIn(w http.ResponseWriter, r *http.Request) {
	var req domain.SignInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format", "INVALID_INPUT")
		return
	}

	session, err := h.sessionStore.SignIn(r.Context(), &req)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// SignOut clears the caller's session. It never fails: a missing or garbled
// token still results in a signed-out response.
func (h *Handlers) SignOut(w http.ResponseWriter, r *http.Request) {
	h.sessionStore.SignOut(r.Context(), bearerToken(r))
	w.WriteHeader(http.StatusNoContent)
}

// CurrentSession reports the session behind the bearer token, null when there
// is none. It is a read, so it answers 200 either way.
func (h *Handlers) CurrentSession(w http.ResponseWriter, r *http.Request) {
	session := h.sessionStore.CurrentSession(r.Context(), bearerToken(r))
	writeJSON(w, http.StatusOK, map[string]interface{}{"session": session})
}

// VerifyEmail drives an inbound verification link to its terminal state.
func (h *Handlers) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.String()
	if body := verifyLinkFromBody(r); body != "" {
		rawURL = body
	}

	flow := verifyflow.New(h.sessionStore, h.profiles)
	switch flow.Run(r.Context(), rawURL) {
	case verifyflow.StateSuccess:
		writeJSON(w, http.StatusOK, map[string]string{
			"status":      string(verifyflow.StateSuccess),
			"message":     "Email verified successfully",
			"redirect_to": "/",
		})
	case verifyflow.StateExpired:
		writeError(w, http.StatusGone, "Verification link has expired", "LINK_EXPIRED")
	default:
		writeError(w, http.StatusBadRequest, "Verification link is invalid", "LINK_INVALID")
	}
}

// verifyLinkFromBody reads an optional {"url": ...} payload. Links that carry
// tokens in the fragment never reach the server as query strings, so clients
// POST the full URL instead.
func verifyLinkFromBody(r *http.Request) string {
	if r.Method != http.MethodPost {
		return ""
	}
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return ""
	}
	return req.URL
}

// ResendVerification handles resending verification emails
func (h *Handlers) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		writeError(w, http.StatusBadRequest, "Email is required", "INVALID_INPUT")
		return
	}

	if err := h.sessionStore.ResendVerification(r.Context(), req.Email); err != nil {
		if domain.KindOf(err) == domain.KindNotFound {
			// Do not reveal which emails exist
			writeJSON(w, http.StatusOK, map[string]string{"message": "Verification email sent"})
			return
		}
		writeAuthError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Verification email sent",
	})
}

// RefreshToken handles token refresh
func (h *Handlers) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req domain.RefreshTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format", "INVALID_INPUT")
		return
	}

	session, err := h.sessionStore.RefreshSession(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error(), "REFRESH_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// RequestPasswordReset mails a one-time reset link. The response is the same
// whether or not the email is registered.
func (h *Handlers) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req domain.PasswordResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		writeError(w, http.StatusBadRequest, "Email is required", "INVALID_INPUT")
		return
	}

	if err := h.sessionStore.RequestPasswordReset(r.Context(), &req); err != nil {
		if domain.KindOf(err) != domain.KindNotFound {
			logger.ErrorContext(r.Context(), "Failed to issue password reset", "error", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "If that email is registered, a reset link is on its way.",
	})
}

// ConfirmPasswordReset consumes a reset token and installs the new password
func (h *Handlers) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req domain.PasswordResetConfirm
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format", "INVALID_INPUT")
		return
	}

	if err := h.sessionStore.ConfirmPasswordReset(r.Context(), &req); err != nil {
		writeAuthError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Password updated. You can sign in now.",
	})
}

// GetProfile returns the caller's profile
func (h *Handlers) GetProfile(w http.ResponseWriter, r *http.Request) {
	claims := getClaims(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized", "UNAUTHORIZED")
		return
	}

	user, err := h.profiles.Get(r.Context(), claims.Sub)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load profile", "INTERNAL_ERROR")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "Profile not found", "NOT_FOUND")
		return
	}

	writeJSON(w, http.StatusOK, user.ToUserInfo())
}

// UpdateProfile applies a partial update to the caller's profile. Only the
// display fields are writable here; email_verified moves through the
// verification flow alone.
func (h *Handlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims := getClaims(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized", "UNAUTHORIZED")
		return
	}

	var req struct {
		FullName *string `json:"full_name"`
		Phone    *string `json:"phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format", "INVALID_INPUT")
		return
	}
	if req.FullName == nil && req.Phone == nil {
		writeError(w, http.StatusBadRequest, "Nothing to update", "INVALID_INPUT")
		return
	}

	patch := &domain.ProfilePatch{FullName: req.FullName, Phone: req.Phone}
	user, err := h.profiles.Update(r.Context(), claims.Sub, patch)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update profile", "INTERNAL_ERROR")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "Profile not found", "NOT_FOUND")
		return
	}

	writeJSON(w, http.StatusOK, user.ToUserInfo())
}
