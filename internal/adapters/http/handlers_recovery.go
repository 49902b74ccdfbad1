package http

import (
	"net/http"

	"github.com/loginforge/authd/internal/application"
)

type emailVerifyRequest struct {
	Token string `json:"token"`
}

type passwordForgotRequest struct {
	Email string `json:"email"`
}

func (h *Handler) emailVerify(w http.ResponseWriter, r *http.Request) {
	var req emailVerifyRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "email_verify", err)
		return
	}
	if err := h.service.VerifyEmail(r.Context(), req.Token); err != nil {
		writeMappedError(r.Context(), w, "email_verify", err)
		return
	}
	writeMessage(w, http.StatusOK, "Email verified")
}

func (h *Handler) passwordForgot(w http.ResponseWriter, r *http.Request) {
	var req passwordForgotRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "password_forgot", err)
		return
	}
	// The token travels by email; the response never includes it and is
	// identical for known and unknown addresses.
	if _, err := h.service.ForgotPassword(r.Context(), req.Email); err != nil {
		writeMappedError(r.Context(), w, "password_forgot", err)
		return
	}
	writeMessage(w, http.StatusOK, "If the account exists, a reset link has been sent")
}

func (h *Handler) passwordReset(w http.ResponseWriter, r *http.Request) {
	var req application.PasswordResetRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "password_reset", err)
		return
	}
	if err := h.service.ResetPassword(r.Context(), req); err != nil {
		writeMappedError(r.Context(), w, "password_reset", err)
		return
	}
	clearAuthCookies(w)
	writeMessage(w, http.StatusOK, "Password reset, all sessions revoked")
}
