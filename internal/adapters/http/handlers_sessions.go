package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/loginforge/authd/internal/application"
	"github.com/loginforge/authd/internal/domain"
)

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := authFromContext(r.Context())
	if !ok {
		writeMissingAuthContext(r.Context(), w, "list_sessions")
		return
	}
	page := parseIntDefault(r.URL.Query().Get("page"), 1)
	limit := parseIntDefault(r.URL.Query().Get("limit"), 20)

	items, err := h.service.ListSessions(r.Context(), authCtx.User.UserID, authCtx.Session.SessionID, page, limit)
	if err != nil {
		writeMappedError(r.Context(), w, "list_sessions", err)
		return
	}
	writeSuccess(w, http.StatusOK, items)
}

func (h *Handler) revokeSession(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := authFromContext(r.Context())
	if !ok {
		writeMissingAuthContext(r.Context(), w, "revoke_session")
		return
	}
	sessionID, err := uuid.Parse(chi.URLParam(r, "session_id"))
	if err != nil {
		writeValidationError(r.Context(), w, "revoke_session", domain.ErrInvalidInput)
		return
	}
	if err := h.service.RevokeSessionByID(r.Context(), authCtx.User.UserID, sessionID); err != nil {
		writeMappedError(r.Context(), w, "revoke_session", err)
		return
	}
	if sessionID == authCtx.Session.SessionID {
		clearAuthCookies(w)
	}
	writeMessage(w, http.StatusOK, "Session revoked")
}

func (h *Handler) revokeAllSessions(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := authFromContext(r.Context())
	if !ok {
		writeMissingAuthContext(r.Context(), w, "revoke_all_sessions")
		return
	}
	if err := h.service.RevokeAllSessions(r.Context(), authCtx.User.UserID); err != nil {
		writeMappedError(r.Context(), w, "revoke_all_sessions", err)
		return
	}
	clearAuthCookies(w)
	writeMessage(w, http.StatusOK, "All sessions revoked")
}

func (h *Handler) loginHistory(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := authFromContext(r.Context())
	if !ok {
		writeMissingAuthContext(r.Context(), w, "login_history")
		return
	}
	q := application.LoginHistoryQuery{
		Page:   parseIntDefault(r.URL.Query().Get("page"), 1),
		Limit:  parseIntDefault(r.URL.Query().Get("limit"), 20),
		Days:   parseIntDefault(r.URL.Query().Get("days"), 0),
		Status: r.URL.Query().Get("status"),
	}
	items, err := h.service.ListLoginHistory(r.Context(), authCtx.User.UserID, q)
	if err != nil {
		writeMappedError(r.Context(), w, "login_history", err)
		return
	}
	writeSuccess(w, http.StatusOK, items)
}
