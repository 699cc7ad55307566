package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/atinyakov/authflow/internal/middleware"
	"github.com/atinyakov/authflow/internal/models"
	"github.com/atinyakov/authflow/internal/service"
)

// fakeAuthService implements AuthService for testing.
type fakeAuthService struct {
	pair        *models.TokenPair
	loginErr    error
	registerErr error
	refreshErr  error
	profile     map[string]any
}

func (f *fakeAuthService) Register(ctx context.Context, login, password string) (*models.TokenPair, error) {
	return f.pair, f.registerErr
}
func (f *fakeAuthService) Login(ctx context.Context, login, password string) (*models.TokenPair, error) {
	return f.pair, f.loginErr
}
func (f *fakeAuthService) Logout(ctx context.Context, login string) error { return nil }
func (f *fakeAuthService) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	return f.pair, f.refreshErr
}
func (f *fakeAuthService) Profile(ctx context.Context, login string) (map[string]any, error) {
	return f.profile, nil
}
func (f *fakeAuthService) UpdateProfile(ctx context.Context, login string, updates map[string]any) (map[string]any, error) {
	return f.profile, nil
}
func (f *fakeAuthService) UpdatePassword(ctx context.Context, login, current, updated string) error {
	return nil
}
func (f *fakeAuthService) OAuthLogin(ctx context.Context, provider string) (*models.TokenPair, error) {
	return f.pair, nil
}

func (f *fakeAuthService) ValidateAccessToken(ctx context.Context, token string) (string, error) {
	if token == "valid" {
		return "alice", nil
	}
	return "", service.ErrInvalidToken
}

func TestAuthHandler_Login(t *testing.T) {
	okPair := &models.TokenPair{AccessToken: "a", RefreshToken: "b"}

	tests := []struct {
		name           string
		body           string
		service        *fakeAuthService
		expectedCode   int
		expectedSubstr string
	}{
		{
			name:           "invalid JSON",
			body:           `not a json`,
			service:        &fakeAuthService{},
			expectedCode:   http.StatusBadRequest,
			expectedSubstr: "invalid request",
		},
		{
			name:           "empty login",
			body:           `{"login":"","password":"pw"}`,
			service:        &fakeAuthService{},
			expectedCode:   http.StatusBadRequest,
			expectedSubstr: "invalid request",
		},
		{
			name:           "invalid credentials",
			body:           `{"login":"alice","password":"bad"}`,
			service:        &fakeAuthService{loginErr: service.ErrInvalidCredentials},
			expectedCode:   http.StatusUnauthorized,
			expectedSubstr: "invalid login or password",
		},
		{
			name:           "success",
			body:           `{"login":"alice","password":"pw"}`,
			service:        &fakeAuthService{pair: okPair},
			expectedCode:   http.StatusOK,
			expectedSubstr: `"access_token":"a"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest("POST", "/login", bytes.NewBufferString(tt.body))
			h := &AuthHandler{AuthService: tt.service}

			h.Login(rec, req)

			if rec.Code != tt.expectedCode {
				t.Errorf("status = %d; want %d", rec.Code, tt.expectedCode)
			}
			if !strings.Contains(rec.Body.String(), tt.expectedSubstr) {
				t.Errorf("body %q does not contain %q", rec.Body.String(), tt.expectedSubstr)
			}
		})
	}
}

func TestAuthHandler_LoginSetsCookies(t *testing.T) {
	h := &AuthHandler{AuthService: &fakeAuthService{
		pair: &models.TokenPair{AccessToken: "acc", RefreshToken: "ref"},
	}}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/login", bytes.NewBufferString(`{"login":"a","password":"b"}`))
	h.Login(rec, req)

	cookies := rec.Result().Cookies()
	byName := map[string]*http.Cookie{}
	for _, c := range cookies {
		byName[c.Name] = c
	}
	if c := byName[middleware.SessionCookie]; c == nil || c.Value != "acc" || !c.HttpOnly {
		t.Errorf("session cookie = %+v; want HttpOnly acc", c)
	}
	if c := byName[middleware.RefreshCookie]; c == nil || c.Value != "ref" || !c.HttpOnly {
		t.Errorf("refresh cookie = %+v; want HttpOnly ref", c)
	}
}

func TestAuthHandler_SignupConflict(t *testing.T) {
	h := &AuthHandler{AuthService: &fakeAuthService{registerErr: service.ErrUserExists}}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/signup", bytes.NewBufferString(`{"login":"bob","password":"pw"}`))
	h.Signup(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d; want %d", rec.Code, http.StatusConflict)
	}
}

func TestAuthHandler_RefreshFromBearerAndCookie(t *testing.T) {
	pair := &models.TokenPair{AccessToken: "new-a", RefreshToken: "new-r"}
	h := &AuthHandler{AuthService: &fakeAuthService{pair: pair}}

	// Bearer header (fallback-mode client).
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/token/refresh", nil)
	req.Header.Set("Authorization", "Bearer old-refresh")
	h.Refresh(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("bearer refresh status = %d; want 200", rec.Code)
	}

	// Refresh cookie (cookie-mode client).
	rec = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/token/refresh", nil)
	req.AddCookie(&http.Cookie{Name: middleware.RefreshCookie, Value: "old-refresh"})
	h.Refresh(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("cookie refresh status = %d; want 200", rec.Code)
	}

	// Neither.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/token/refresh", nil)
	h.Refresh(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("empty refresh status = %d; want 401", rec.Code)
	}
}

func TestRouter_ProtectedEndpoints(t *testing.T) {
	svc := &fakeAuthService{profile: map[string]any{"login": "alice"}}
	router := NewRouter(&AuthHandler{AuthService: svc}, svc, zap.NewNop())

	// Without credentials.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/auth/check-auth", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated check-auth = %d; want 401", rec.Code)
	}

	// With a valid bearer token.
	rec = httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/auth/check-auth", nil)
	req.Header.Set("Authorization", "Bearer valid")
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("authenticated check-auth = %d; want 200", rec.Code)
	}
	var resp models.CheckAuthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil || !resp.Authenticated {
		t.Errorf("check-auth body = %q; want authenticated=true", rec.Body.String())
	}

	// Profile via session cookie.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/api/auth/user/@me", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: "valid"})
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("profile via cookie = %d; want 200", rec.Code)
	}
}

func TestAuthHandler_OAuthRedirect(t *testing.T) {
	pair := &models.TokenPair{AccessToken: "at", RefreshToken: "rt"}
	router := NewRouter(
		&AuthHandler{AuthService: &fakeAuthService{pair: pair}},
		&fakeAuthService{},
		zap.NewNop(),
	)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/auth/login/google?redirect_uri=https%3A%2F%2Fapp.test%2Fcb", nil)
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d; want 302", rec.Code)
	}
	loc := rec.Header().Get("Location")
	if !strings.Contains(loc, "access_token=at") || !strings.Contains(loc, "refresh_token=rt") {
		t.Errorf("redirect location %q lacks token params", loc)
	}
	if !strings.HasPrefix(loc, "https://app.test/cb?") {
		t.Errorf("redirect location %q has wrong target", loc)
	}

	// Missing redirect_uri is a client error.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/auth/login/google", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d; want 400", rec.Code)
	}
}
