package http

import (
	"net/http"

	"github.com/loginforge/authd/internal/application"
)

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusOK, "ok")
}

func (h *Handler) readyz(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusOK, "ready")
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req application.RegisterRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "register", err)
		return
	}
	req.IPAddress = readIP(r)

	res, err := h.service.Register(r.Context(), r.Header.Get("Idempotency-Key"), req)
	if err != nil {
		writeMappedError(r.Context(), w, "register", err)
		return
	}
	writeSuccess(w, http.StatusCreated, res)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req application.LoginRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "login", err)
		return
	}
	req.IPAddress = readIP(r)
	req.UserAgent = r.UserAgent()

	res, err := h.service.Login(r.Context(), req)
	if err != nil {
		writeMappedError(r.Context(), w, "login", err)
		return
	}
	applyCookies(w, res.Cookies)
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) loginMFAComplete(w http.ResponseWriter, r *http.Request) {
	var req application.MFACompleteRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "login_mfa_complete", err)
		return
	}
	if req.GateToken == "" {
		req.GateToken = cookieValue(r, application.CookieMfaGate)
	}
	req.IPAddress = readIP(r)
	req.UserAgent = r.UserAgent()

	res, err := h.service.CompleteMFALogin(r.Context(), req)
	if err != nil {
		writeMappedError(r.Context(), w, "login_mfa_complete", err)
		return
	}
	applyCookies(w, res.Cookies)
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	refreshToken := cookieValue(r, application.CookieRefreshToken)
	if refreshToken == "" {
		token, err := bearerTokenFromHeader(r.Header.Get("Authorization"))
		if err != nil {
			writeMissingBearerError(r.Context(), w, "refresh")
			return
		}
		refreshToken = token
	}

	res, err := h.service.Refresh(r.Context(), refreshToken)
	if err != nil {
		writeMappedError(r.Context(), w, "refresh", err)
		return
	}
	applyCookies(w, res.Cookies)
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := authFromContext(r.Context())
	if !ok {
		writeMissingAuthContext(r.Context(), w, "logout")
		return
	}
	cookies, err := h.service.SignOut(r.Context(), authCtx.Session.SessionID)
	if err != nil {
		writeMappedError(r.Context(), w, "logout", err)
		return
	}
	applyCookies(w, cookies)
	writeMessage(w, http.StatusOK, "Logged out successfully")
}
