package http

import (
	"net/http"

	"github.com/loginforge/authd/internal/application"
)

// applyCookies materializes application cookie directives onto the response.
// Every auth cookie carries HttpOnly; Secure; Path=/ so scripts cannot read
// tokens and the browser never sends them over plaintext HTTP.
func applyCookies(w http.ResponseWriter, directives []application.CookieDirective) {
	for _, d := range directives {
		cookie := &http.Cookie{
			Name:     d.Name,
			Value:    d.Value,
			Path:     "/",
			MaxAge:   d.MaxAge,
			HttpOnly: true,
			Secure:   true,
			SameSite: http.SameSiteStrictMode,
		}
		http.SetCookie(w, cookie)
	}
}

func clearAuthCookies(w http.ResponseWriter) {
	applyCookies(w, application.ClearAuthCookies())
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
