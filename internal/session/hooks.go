package session

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atinyakov/authflow/internal/config"
)

// Point identifies a hook point. The set is closed: every extensibility
// point the engine exposes is listed here, each with a known payload
// shape (documented per constant).
type Point int

const (
	// BeforeLogin fires before the login call. Payload: models.Credentials.
	BeforeLogin Point = iota
	// AfterLogin fires after a successful login. Payload: models.Profile.
	AfterLogin
	// LoginError fires when login fails. Payload: error.
	LoginError
	// BeforeSignup fires before the signup call. Payload: models.Credentials.
	BeforeSignup
	// AfterSignup fires after a successful signup. Payload: models.Profile.
	AfterSignup
	// SignupError fires when signup fails. Payload: error.
	SignupError
	// BeforeLogout fires before the server logout call. Payload: nil.
	BeforeLogout
	// AfterLogout fires after logout completes. Payload: nil.
	AfterLogout
	// LogoutError fires when the server logout call fails; local
	// cleanup has already happened. Payload: error.
	LogoutError
	// BeforeTokenRefresh fires before the refresh call. Payload: nil.
	BeforeTokenRefresh
	// AfterTokenRefresh fires after a successful refresh. Payload: nil.
	AfterTokenRefresh
	// TokenRefreshError fires when a refresh fails. Payload: nil.
	TokenRefreshError
	// BeforePasswordUpdate fires before the password call. Payload: models.PasswordUpdate.
	BeforePasswordUpdate
	// AfterPasswordUpdate fires after a successful password change. Payload: nil.
	AfterPasswordUpdate
	// PasswordUpdateError fires when the password change fails. Payload: error.
	PasswordUpdateError
	// BeforeProfileUpdate fires before the profile update call. Payload: models.Profile.
	BeforeProfileUpdate
	// AfterProfileUpdate fires after a successful profile update. Payload: models.Profile.
	AfterProfileUpdate
	// ProfileUpdateError fires when the profile update fails. Payload: error.
	ProfileUpdateError
	// AuthError fires whenever a request fails with an expired
	// authorization. Payload: error.
	AuthError
	// TransformProfile fires once per profile fetch; a handler's
	// non-nil return replaces the profile the engine stores.
	// Payload: models.Profile.
	TransformProfile
)

var pointNames = map[Point]string{
	BeforeLogin:          "before-login",
	AfterLogin:           "after-login",
	LoginError:           "login-error",
	BeforeSignup:         "before-signup",
	AfterSignup:          "after-signup",
	SignupError:          "signup-error",
	BeforeLogout:         "before-logout",
	AfterLogout:          "after-logout",
	LogoutError:          "logout-error",
	BeforeTokenRefresh:   "before-token-refresh",
	AfterTokenRefresh:    "after-token-refresh",
	TokenRefreshError:    "token-refresh-error",
	BeforePasswordUpdate: "before-password-update",
	AfterPasswordUpdate:  "after-password-update",
	PasswordUpdateError:  "password-update-error",
	BeforeProfileUpdate:  "before-profile-update",
	AfterProfileUpdate:   "after-profile-update",
	ProfileUpdateError:   "profile-update-error",
	AuthError:            "auth-error",
	TransformProfile:     "transform-profile",
}

func (p Point) String() string {
	if name, ok := pointNames[p]; ok {
		return name
	}
	return "unknown"
}

// HookContext gives handlers read access to the engine's collaborators.
type HookContext struct {
	Config  config.Config
	Storage CredentialStore
	Client  AuthAPI
}

// Handler observes or transforms in-flight auth data. A non-nil return
// value replaces the payload for subsequent handlers; a returned error
// is logged and isolated, never propagated to the triggering operation.
type Handler func(ctx context.Context, hc HookContext, payload any) (any, error)

type hookEntry struct {
	id string
	fn Handler
}

// Hooks is the engine's hook registry. Handlers run sequentially in
// registration order.
type Hooks struct {
	mu       sync.Mutex
	handlers map[Point][]hookEntry
	log      *zap.Logger
}

// NewHooks returns an empty registry.
func NewHooks(log *zap.Logger) *Hooks {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hooks{handlers: make(map[Point][]hookEntry), log: log}
}

// Register adds fn at point p and returns a handle for Unregister.
func (h *Hooks) Register(p Point, fn Handler) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := uuid.NewString()
	h.handlers[p] = append(h.handlers[p], hookEntry{id: id, fn: fn})
	return id
}

// Unregister removes the handler with the given handle, if present.
func (h *Hooks) Unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for p, entries := range h.handlers {
		for i, e := range entries {
			if e.id == id {
				h.handlers[p] = append(entries[:i:i], entries[i+1:]...)
				return
			}
		}
	}
}

// Trigger runs the handlers registered at p in order, threading the
// payload through non-nil return values. A failing handler is logged
// and skipped; the remaining handlers still run.
func (h *Hooks) Trigger(ctx context.Context, p Point, hc HookContext, payload any) any {
	h.mu.Lock()
	entries := make([]hookEntry, len(h.handlers[p]))
	copy(entries, h.handlers[p])
	h.mu.Unlock()

	for _, e := range entries {
		out, err := e.fn(ctx, hc, payload)
		if err != nil {
			h.log.Warn("hook handler failed",
				zap.String("point", p.String()),
				zap.Error(err))
			continue
		}
		if out != nil {
			payload = out
		}
	}
	return payload
}
