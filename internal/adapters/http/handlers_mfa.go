package http

import (
	"net/http"
)

type mfaCodeRequest struct {
	Code string `json:"code"`
}

func (h *Handler) mfaTOTPEnroll(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := authFromContext(r.Context())
	if !ok {
		writeMissingAuthContext(r.Context(), w, "mfa_totp_enroll")
		return
	}
	res, err := h.service.EnrollTOTP(r.Context(), authCtx.User.UserID)
	if err != nil {
		writeMappedError(r.Context(), w, "mfa_totp_enroll", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) mfaTOTPVerify(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := authFromContext(r.Context())
	if !ok {
		writeMissingAuthContext(r.Context(), w, "mfa_totp_verify")
		return
	}
	var req mfaCodeRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "mfa_totp_verify", err)
		return
	}
	if err := h.service.VerifyTOTP(r.Context(), authCtx.User.UserID, req.Code); err != nil {
		writeMappedError(r.Context(), w, "mfa_totp_verify", err)
		return
	}
	writeMessage(w, http.StatusOK, "Code verified")
}

func (h *Handler) mfaOTPRequest(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := authFromContext(r.Context())
	if !ok {
		writeMissingAuthContext(r.Context(), w, "mfa_otp_request")
		return
	}
	res, err := h.service.RequestEmailOTP(r.Context(), authCtx.User.UserID)
	if err != nil {
		writeMappedError(r.Context(), w, "mfa_otp_request", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) mfaOTPVerify(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := authFromContext(r.Context())
	if !ok {
		writeMissingAuthContext(r.Context(), w, "mfa_otp_verify")
		return
	}
	var req mfaCodeRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "mfa_otp_verify", err)
		return
	}
	res, err := h.service.VerifyEmailOTP(r.Context(), authCtx.User.UserID, req.Code)
	if err != nil {
		writeMappedError(r.Context(), w, "mfa_otp_verify", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) mfaEnable(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := authFromContext(r.Context())
	if !ok {
		writeMissingAuthContext(r.Context(), w, "mfa_enable")
		return
	}
	var req mfaCodeRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "mfa_enable", err)
		return
	}
	if err := h.service.EnableMFA(r.Context(), authCtx.User.UserID, req.Code); err != nil {
		writeMappedError(r.Context(), w, "mfa_enable", err)
		return
	}
	writeMessage(w, http.StatusOK, "MFA enabled")
}

func (h *Handler) mfaDisable(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := authFromContext(r.Context())
	if !ok {
		writeMissingAuthContext(r.Context(), w, "mfa_disable")
		return
	}
	var req mfaCodeRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "mfa_disable", err)
		return
	}
	if err := h.service.DisableMFA(r.Context(), authCtx.User.UserID, req.Code); err != nil {
		writeMappedError(r.Context(), w, "mfa_disable", err)
		return
	}
	writeMessage(w, http.StatusOK, "MFA disabled")
}
