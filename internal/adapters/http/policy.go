package http

import (
	"context"
	"net/http"

	"github.com/loginforge/authd/internal/application"
)

// routePolicy is the explicit per-route authorization contract. Every route
// names its policy value in the router; a single authorization middleware
// evaluates it before the handler runs.
type routePolicy struct {
	public bool
	roles  []string
}

var (
	policyPublic        = routePolicy{public: true}
	policyAuthenticated = routePolicy{}
)

// policyRoles requires an authenticated caller holding at least one of the
// listed roles.
func policyRoles(roles ...string) routePolicy {
	return routePolicy{roles: roles}
}

// authorize verifies the access token from the cookie or the bearer header,
// attaches the resolved auth context, and enforces the route's role list.
// When the sliding renewal minted a fresh access token the replacement
// cookie is set here, so handlers never deal with token lifetimes.
func (h *Handler) authorize(policy routePolicy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if policy.public {
				next.ServeHTTP(w, r)
				return
			}

			accessToken := cookieValue(r, application.CookieAccessToken)
			if accessToken == "" {
				token, err := bearerTokenFromHeader(r.Header.Get("Authorization"))
				if err != nil {
					writeMissingBearerError(r.Context(), w, "authorize")
					return
				}
				accessToken = token
			}
			refreshToken := cookieValue(r, application.CookieRefreshToken)

			authCtx, err := h.service.Authenticate(r.Context(), accessToken, refreshToken)
			if err != nil {
				writeMappedError(r.Context(), w, "authorize", err)
				return
			}
			if authCtx.RenewedAccessCookie != nil {
				applyCookies(w, []application.CookieDirective{*authCtx.RenewedAccessCookie})
			}
			if len(policy.roles) > 0 && !holdsAnyRole(authCtx.User.Roles, policy.roles) {
				writeError(w, http.StatusForbidden, "FORBIDDEN", "insufficient role")
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyAuth, authCtx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func holdsAnyRole(held, required []string) bool {
	for _, want := range required {
		for _, have := range held {
			if have == want {
				return true
			}
		}
	}
	return false
}
