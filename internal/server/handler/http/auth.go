// Package http provides the HTTP handlers of the reference auth
// backend: session issuance, session introspection, profile access,
// and token rotation.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/atinyakov/authflow/internal/middleware"
	"github.com/atinyakov/authflow/internal/models"
	"github.com/atinyakov/authflow/internal/service"
)

// AuthService defines the interface for authentication operations
// required by the HTTP handlers.
type AuthService interface {
	Register(ctx context.Context, login, password string) (*models.TokenPair, error)
	Login(ctx context.Context, login, password string) (*models.TokenPair, error)
	Logout(ctx context.Context, login string) error
	Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error)
	Profile(ctx context.Context, login string) (map[string]any, error)
	UpdateProfile(ctx context.Context, login string, updates map[string]any) (map[string]any, error)
	UpdatePassword(ctx context.Context, login, current, updated string) error
	OAuthLogin(ctx context.Context, provider string) (*models.TokenPair, error)
}

// AuthHandler handles HTTP requests for session and profile management.
type AuthHandler struct {
	// AuthService performs the underlying authentication operations.
	AuthService AuthService
}

// Login handles POST login requests. On success it sets the HttpOnly
// session cookies AND returns the token pair in the body, so both
// cookie-mode and fallback-mode clients work against this backend.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var creds models.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil || creds.Login == "" || creds.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	pair, err := h.AuthService.Login(r.Context(), creds.Login, creds.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid login or password")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	setSessionCookies(w, pair)
	writeJSON(w, http.StatusOK, pair)
}

// Signup handles POST signup requests: register and log in at once.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var creds models.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil || creds.Login == "" || creds.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	pair, err := h.AuthService.Register(r.Context(), creds.Login, creds.Password)
	if err != nil {
		if errors.Is(err, service.ErrUserExists) {
			writeError(w, http.StatusConflict, "user already exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	setSessionCookies(w, pair)
	writeJSON(w, http.StatusOK, pair)
}

// Logout revokes the caller's tokens and expires the cookies.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	login := middleware.GetLoginFromContext(r.Context())
	if err := h.AuthService.Logout(r.Context(), login); err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	clearSessionCookies(w)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CheckAuth reports whether the presented credentials carry a session.
// Reaching this handler at all means the auth middleware accepted them.
func (h *AuthHandler) CheckAuth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.CheckAuthResponse{Authenticated: true})
}

// Profile returns the caller's user record.
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	login := middleware.GetLoginFromContext(r.Context())
	profile, err := h.AuthService.Profile(r.Context(), login)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// UpdateProfile applies partial updates and returns the fresh record.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	login := middleware.GetLoginFromContext(r.Context())

	var updates map[string]any
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	profile, err := h.AuthService.UpdateProfile(r.Context(), login, updates)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// Refresh rotates the token pair. The refresh token arrives as the
// bearer header (fallback-mode clients) or the refresh cookie
// (cookie-mode clients).
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	token := ""
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		token = strings.TrimPrefix(auth, "Bearer ")
	}
	if token == "" {
		if c, err := r.Cookie(middleware.RefreshCookie); err == nil {
			token = c.Value
		}
	}
	if token == "" {
		writeError(w, http.StatusUnauthorized, "refresh token required")
		return
	}

	pair, err := h.AuthService.Refresh(r.Context(), token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}

	setSessionCookies(w, pair)
	writeJSON(w, http.StatusOK, pair)
}

// UpdatePassword changes the caller's password.
func (h *AuthHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	login := middleware.GetLoginFromContext(r.Context())

	var req models.PasswordUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	if err := h.AuthService.UpdatePassword(r.Context(), login, req.CurrentPassword, req.NewPassword); err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			writeError(w, http.StatusBadRequest, "wrong current password")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// OAuth stands in for a provider round trip: it issues a pair for a
// provider-scoped account and redirects back to redirect_uri with the
// tokens as query parameters, which is the callback contract the client
// consumes.
func (h *AuthHandler) OAuth(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	redirectURI := r.URL.Query().Get("redirect_uri")
	if redirectURI == "" {
		writeError(w, http.StatusBadRequest, "redirect_uri required")
		return
	}

	pair, err := h.AuthService.OAuthLogin(r.Context(), provider)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	setSessionCookies(w, pair)

	sep := "?"
	if strings.Contains(redirectURI, "?") {
		sep = "&"
	}
	http.Redirect(w, r, redirectURI+sep+"access_token="+pair.AccessToken+"&refresh_token="+pair.RefreshToken, http.StatusFound)
}

func setSessionCookies(w http.ResponseWriter, pair *models.TokenPair) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    pair.AccessToken,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.RefreshCookie,
		Value:    pair.RefreshToken,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{middleware.SessionCookie, middleware.RefreshCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, models.ErrorResponse{Message: msg})
}
