// Package middleware provides HTTP middlewares for authentication and logging.
package middleware

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey string

const loginKey ctxKey = "login"

// SessionCookie is the HttpOnly cookie carrying the access token for
// cookie-mode clients. RefreshCookie carries the refresh token.
const (
	SessionCookie = "authflow_session"
	RefreshCookie = "authflow_refresh"
)

// TokenValidator resolves an access token to a user login.
type TokenValidator interface {
	// ValidateAccessToken returns the login owning the token, or an
	// error if the token is unknown or expired.
	ValidateAccessToken(ctx context.Context, token string) (string, error)
}

// TokenAuth is a middleware enforcing bearer-or-cookie authentication.
//
// It accepts the access token from the Authorization header (fallback
// storage mode) or from the session cookie (cookie mode), mirroring the
// dual-strategy contract the client implements. On success the owning
// login is stored in the request context for downstream handlers.
func TokenAuth(v TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ""
			if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
				token = strings.TrimPrefix(h, "Bearer ")
			}
			if token == "" {
				if c, err := r.Cookie(SessionCookie); err == nil {
					token = c.Value
				}
			}
			if token == "" {
				http.Error(w, "authentication required", http.StatusUnauthorized)
				return
			}

			login, err := v.ValidateAccessToken(r.Context(), token)
			if err != nil {
				http.Error(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), loginKey, login)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetLoginFromContext extracts the authenticated login from the request
// context. Returns an empty string if not found.
func GetLoginFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(loginKey).(string); ok {
		return s
	}
	return ""
}
