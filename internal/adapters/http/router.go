package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/loginforge/authd/internal/application"
)

// Handler is the HTTP adapter entrypoint for auth use-cases.
// Keeping only the application dependency here preserves clean adapter boundaries.
type Handler struct {
	service *application.Service
}

// NewHandler constructs an HTTP handler bound to the application service.
func NewHandler(service *application.Service) *Handler {
	return &Handler{service: service}
}

// NewRouter registers the auth HTTP routes and middleware stack.
// Centralizing routes here ensures consistent auth and error behavior across endpoints.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)

	// Every route names its policy; one authorization step evaluates it
	// before the handler runs.
	public := handler.authorize(policyPublic)
	authed := handler.authorize(policyAuthenticated)

	r.Route("/auth/v1", func(r chi.Router) {
		r.With(public).Post("/register", handler.register)
		r.With(public).Post("/login", handler.login)
		r.With(public).Post("/login/mfa", handler.loginMFAComplete)
		r.With(public).Post("/refresh", handler.refresh)
		r.With(public).Post("/email/verify", handler.emailVerify)
		r.With(public).Post("/password/forgot", handler.passwordForgot)
		r.With(public).Post("/password/reset", handler.passwordReset)

		r.With(authed).Post("/logout", handler.logout)
		r.With(authed).Post("/mfa/totp/enroll", handler.mfaTOTPEnroll)
		r.With(authed).Post("/mfa/totp/verify", handler.mfaTOTPVerify)
		r.With(authed).Post("/mfa/otp/request", handler.mfaOTPRequest)
		r.With(authed).Post("/mfa/otp/verify", handler.mfaOTPVerify)
		r.With(authed).Post("/mfa/enable", handler.mfaEnable)
		r.With(authed).Post("/mfa/disable", handler.mfaDisable)
		r.With(authed).Get("/sessions", handler.listSessions)
		r.With(authed).Delete("/sessions/{session_id}", handler.revokeSession)
		r.With(authed).Delete("/sessions", handler.revokeAllSessions)
		r.With(authed).Get("/login-history", handler.loginHistory)
	})

	return r
}
