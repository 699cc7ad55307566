// Package config provides the client library configuration: a single
// immutable snapshot built once from caller-supplied options merged
// with defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Strategy selects how credentials are persisted and sent.
type Strategy string

const (
	// CookieFirst trusts HttpOnly cookies and only falls back to
	// client-side token storage once cookies are proven broken.
	CookieFirst Strategy = "cookie-first"
	// FallbackOnly always stores tokens client-side and sends them via
	// the Authorization header.
	FallbackOnly Strategy = "fallback-only"
	// Auto behaves like CookieFirst.
	Auto Strategy = "auto"
)

// Endpoints holds per-operation path overrides. Empty fields fall back
// to the defaults.
type Endpoints struct {
	Login          string
	Logout         string
	Signup         string
	CheckAuth      string
	Profile        string
	Refresh        string
	PasswordUpdate string
	OAuthGoogle    string
	OAuthMicrosoft string
}

// Config holds all recognized client options. Build a Config literal
// and pass it through Load to apply defaults and validation.
type Config struct {
	// APIBaseURL is the scheme://host[:port] of the auth API. Required.
	APIBaseURL string

	// APIPrefix is the path prefix for all auth endpoints.
	APIPrefix string

	// StorageStrategy selects cookie vs token persistence behavior.
	StorageStrategy Strategy

	// TokenRefreshInterval is advisory: the engine never self-schedules
	// refreshes, but embedding applications may drive a ticker from it.
	TokenRefreshInterval time.Duration

	// RequestTimeout bounds every HTTP request issued by the client.
	RequestTimeout time.Duration

	// EnableGoogle and EnableMicrosoft gate the OAuth affordances.
	EnableGoogle      bool
	GoogleClientID    string
	EnableMicrosoft   bool
	MicrosoftClientID string

	// CustomHeaders are merged into every request.
	CustomHeaders map[string]string

	// Endpoints overrides individual operation paths.
	Endpoints Endpoints

	// Debug and LogLevel control diagnostic verbosity only.
	Debug    bool
	LogLevel string
}

// ConfigError reports a fatal configuration problem. It is returned
// only for programmer errors (a missing base URL); everything else is
// merged or warned about.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// DefaultEndpoints returns the built-in operation paths.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Login:          "/login",
		Logout:         "/logout",
		Signup:         "/signup",
		CheckAuth:      "/check-auth",
		Profile:        "/user/@me",
		Refresh:        "/token/refresh",
		PasswordUpdate: "/password/update",
		OAuthGoogle:    "/login/google",
		OAuthMicrosoft: "/login/microsoft",
	}
}

// Load validates cfg and merges it with defaults. Unknown or
// inconsistent options produce warnings on log, never errors; the only
// fatal condition is a missing APIBaseURL.
func Load(cfg Config, log *zap.Logger) (Config, error) {
	if log == nil {
		log = zap.NewNop()
	}

	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		return Config{}, &ConfigError{Field: "APIBaseURL", Reason: "required"}
	}
	cfg.APIBaseURL = strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")

	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/auth"
	}
	if !strings.HasPrefix(cfg.APIPrefix, "/") {
		cfg.APIPrefix = "/" + cfg.APIPrefix
	}
	cfg.APIPrefix = strings.TrimRight(cfg.APIPrefix, "/")

	switch cfg.StorageStrategy {
	case CookieFirst, FallbackOnly, Auto:
	case "":
		cfg.StorageStrategy = Auto
	default:
		log.Warn("unknown storage strategy, using auto",
			zap.String("strategy", string(cfg.StorageStrategy)))
		cfg.StorageStrategy = Auto
	}

	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	if cfg.EnableGoogle && cfg.GoogleClientID == "" {
		log.Warn("google sign-in enabled without a client id")
	}
	if cfg.EnableMicrosoft && cfg.MicrosoftClientID == "" {
		log.Warn("microsoft sign-in enabled without a client id")
	}

	cfg.Endpoints = mergeEndpoints(cfg.Endpoints, DefaultEndpoints())

	if cfg.LogLevel == "" {
		if cfg.Debug {
			cfg.LogLevel = "debug"
		} else {
			cfg.LogLevel = "info"
		}
	}

	return cfg, nil
}

func mergeEndpoints(over, def Endpoints) Endpoints {
	pick := func(v, d string) string {
		if v == "" {
			return d
		}
		if !strings.HasPrefix(v, "/") {
			return "/" + v
		}
		return v
	}
	return Endpoints{
		Login:          pick(over.Login, def.Login),
		Logout:         pick(over.Logout, def.Logout),
		Signup:         pick(over.Signup, def.Signup),
		CheckAuth:      pick(over.CheckAuth, def.CheckAuth),
		Profile:        pick(over.Profile, def.Profile),
		Refresh:        pick(over.Refresh, def.Refresh),
		PasswordUpdate: pick(over.PasswordUpdate, def.PasswordUpdate),
		OAuthGoogle:    pick(over.OAuthGoogle, def.OAuthGoogle),
		OAuthMicrosoft: pick(over.OAuthMicrosoft, def.OAuthMicrosoft),
	}
}
