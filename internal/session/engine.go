// Package session implements the session reconciliation engine: the
// state machine that decides, across restarts, OAuth redirects, cookie
// availability, and token expiry, what the current authentication state
// is and how to recover it.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/authflow/internal/client"
	"github.com/atinyakov/authflow/internal/config"
	"github.com/atinyakov/authflow/internal/models"
)

// AuthAPI is the transport the engine drives. *client.Client implements
// it; tests substitute doubles.
type AuthAPI interface {
	Login(ctx context.Context, creds models.Credentials) (*models.TokenPair, error)
	Signup(ctx context.Context, creds models.Credentials) (*models.TokenPair, error)
	Logout(ctx context.Context) error
	CheckSession(ctx context.Context) (bool, error)
	FetchProfile(ctx context.Context) (models.Profile, error)
	UpdateProfile(ctx context.Context, updates models.Profile) (models.Profile, error)
	UpdatePassword(ctx context.Context, current, updated string) error
	Refresh(ctx context.Context) bool
	OAuthRedirectURL(provider, redirectURI string) (string, error)
}

// CredentialStore is the persistence the engine drives.
// *storage.TokenStore implements it.
type CredentialStore interface {
	SetTokens(access, refresh string)
	AccessToken() string
	RefreshToken() string
	IsFallbackActive() bool
	ShouldUseFallback() bool
	Clear()
}

// Session is the engine's externally visible state. Authenticated=false
// implies Profile is nil. The Profile map is replaced wholesale on every
// change, never mutated in place, so snapshots may share it safely.
type Session struct {
	Authenticated bool
	Refreshing    bool
	Initializing  bool
	Profile       models.Profile
}

// Result is the outcome of an imperative auth operation. Expected
// failures (bad credentials, expired session) surface here, never as
// errors.
type Result struct {
	Success bool
	Error   string
}

// Engine owns the Session and is the only component that mutates it.
type Engine struct {
	cfg   config.Config
	api   AuthAPI
	creds CredentialStore
	loc   Location
	hooks *Hooks
	log   *zap.Logger

	mu          sync.Mutex
	sess        Session
	pending     *models.TokenPair
	initialized bool
	onChange    func(Session)

	refreshPoll time.Duration
}

// New builds an Engine over injected collaborators. cfg must carry a
// base URL: a missing one fails synchronously with a *config.ConfigError,
// before any network activity. loc and log may be nil.
func New(cfg config.Config, api AuthAPI, creds CredentialStore, loc Location, log *zap.Logger) (*Engine, error) {
	cfg, err := config.Load(cfg, log)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = noLocation{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		cfg:         cfg,
		api:         api,
		creds:       creds,
		loc:         loc,
		hooks:       NewHooks(log),
		log:         log,
		refreshPoll: 100 * time.Millisecond,
	}, nil
}

// Hooks returns the engine's hook registry.
func (e *Engine) Hooks() *Hooks { return e.hooks }

// Config returns the loaded configuration snapshot.
func (e *Engine) Config() config.Config { return e.cfg }

// SetOnChange registers the single state-transition listener (the store
// binding). It is called after every session mutation.
func (e *Engine) SetOnChange(fn func(Session)) {
	e.mu.Lock()
	e.onChange = fn
	e.mu.Unlock()
}

// Session returns a snapshot of the current state.
func (e *Engine) Session() Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess
}

// EnabledProviders lists the OAuth providers the configuration enables.
func (e *Engine) EnabledProviders() []string {
	var providers []string
	if e.cfg.EnableGoogle {
		providers = append(providers, "google")
	}
	if e.cfg.EnableMicrosoft {
		providers = append(providers, "microsoft")
	}
	return providers
}

// OAuthURL builds the redirect URL for provider, defaulting the
// redirect_uri to the application origin.
func (e *Engine) OAuthURL(provider string) (string, error) {
	return e.api.OAuthRedirectURL(provider, e.loc.Origin())
}

// Initialize reconciles the authentication state once per engine
// instance; repeated calls are no-ops. Initializing is guaranteed to be
// false on every exit path, so the UI never observes an infinite
// loading state.
func (e *Engine) Initialize(ctx context.Context) {
	e.mu.Lock()
	if e.initialized {
		e.mu.Unlock()
		return
	}
	e.initialized = true
	e.sess.Initializing = true
	e.mu.Unlock()
	e.notify()

	defer e.set(func(s *Session) { s.Initializing = false })

	// An OAuth callback carries a fresh credential pair in the URL and
	// short-circuits the auth check entirely.
	if e.consumeOAuthCallback() {
		e.set(func(s *Session) { s.Authenticated = true })
		e.fetchProfile(ctx)
		return
	}

	// A pending pair from an earlier call in the same tick means the
	// callback was already consumed; nothing to reconcile.
	e.mu.Lock()
	hasPending := e.pending != nil
	e.mu.Unlock()
	if hasPending {
		return
	}

	// Auth check. With fallback active and only a refresh token on
	// hand, the pair must be refreshed before anything else can work.
	if e.creds.ShouldUseFallback() && e.creds.AccessToken() == "" && e.creds.RefreshToken() != "" {
		if !e.Refresh(ctx) {
			e.clearAuth()
			return
		}
	}

	ok, err := e.api.CheckSession(ctx)
	if err != nil || !ok {
		if err != nil {
			e.log.Debug("session check failed", zap.Error(err))
			if client.IsAuthExpired(err) {
				e.hooks.Trigger(ctx, AuthError, e.hookContext(), err)
			}
		}
		if !e.Refresh(ctx) {
			e.clearAuth()
			return
		}
	}

	e.set(func(s *Session) { s.Authenticated = true })
	if lost := e.fetchProfile(ctx); lost {
		// Only the initialization auth check treats a failed refresh
		// during profile fetch as terminal.
		e.clearAuth()
	}
}

// Refresh obtains a fresh credential pair. At most one refresh is in
// flight system-wide: concurrent callers poll until the in-flight
// refresh resolves and return the then-current authenticated flag.
func (e *Engine) Refresh(ctx context.Context) bool {
	e.mu.Lock()
	if e.sess.Refreshing {
		e.mu.Unlock()
		return e.waitForRefresh(ctx)
	}
	e.sess.Refreshing = true
	e.mu.Unlock()
	e.notify()

	hc := e.hookContext()
	e.hooks.Trigger(ctx, BeforeTokenRefresh, hc, nil)

	ok := e.api.Refresh(ctx)

	e.set(func(s *Session) {
		s.Refreshing = false
		if ok {
			s.Authenticated = true
		}
	})
	if ok {
		e.hooks.Trigger(ctx, AfterTokenRefresh, hc, nil)
	} else {
		e.hooks.Trigger(ctx, TokenRefreshError, hc, nil)
	}
	return ok
}

func (e *Engine) waitForRefresh(ctx context.Context) bool {
	for {
		select {
		case <-ctx.Done():
		case <-time.After(e.refreshPoll):
		}
		e.mu.Lock()
		if !e.sess.Refreshing || ctx.Err() != nil {
			auth := e.sess.Authenticated
			e.mu.Unlock()
			return auth
		}
		e.mu.Unlock()
	}
}

// Login authenticates with credentials. Expected failures are returned
// as a Result; the call never panics or returns an error.
func (e *Engine) Login(ctx context.Context, creds models.Credentials) Result {
	return e.authenticate(ctx, creds, BeforeLogin, AfterLogin, LoginError, e.api.Login)
}

// Signup registers a new account and authenticates it.
func (e *Engine) Signup(ctx context.Context, creds models.Credentials) Result {
	return e.authenticate(ctx, creds, BeforeSignup, AfterSignup, SignupError, e.api.Signup)
}

func (e *Engine) authenticate(
	ctx context.Context,
	creds models.Credentials,
	before, after, onError Point,
	call func(context.Context, models.Credentials) (*models.TokenPair, error),
) Result {
	// No stale credentials mixed across accounts.
	e.creds.Clear()
	e.mu.Lock()
	e.pending = nil
	e.mu.Unlock()

	hc := e.hookContext()
	if out, ok := e.hooks.Trigger(ctx, before, hc, creds).(models.Credentials); ok {
		creds = out
	}

	pair, err := call(ctx, creds)
	if err != nil {
		e.hooks.Trigger(ctx, onError, hc, err)
		e.set(func(s *Session) {
			s.Authenticated = false
			s.Profile = nil
		})
		return Result{Success: false, Error: errorMessage(err)}
	}

	// Tokens in the response become a pending pair; whether they are
	// actually needed is decided by the first authenticated request.
	if pair != nil && pair.AccessToken != "" && pair.RefreshToken != "" {
		p := *pair
		e.mu.Lock()
		e.pending = &p
		e.mu.Unlock()
	}

	e.set(func(s *Session) { s.Authenticated = true })
	e.fetchProfile(ctx)

	// The after hook fires whether or not the response carried tokens:
	// some backends rely purely on cookies.
	e.hooks.Trigger(ctx, after, hc, e.Session().Profile)
	return Result{Success: true}
}

// Logout ends the session. Local cleanup is unconditional: a failed
// server call must never leave the client believing it is still
// authenticated.
func (e *Engine) Logout(ctx context.Context) {
	hc := e.hookContext()
	e.hooks.Trigger(ctx, BeforeLogout, hc, nil)

	err := e.api.Logout(ctx)

	e.clearAuth()

	if err != nil {
		e.log.Warn("server logout failed, local state cleared anyway", zap.Error(err))
		e.hooks.Trigger(ctx, LogoutError, hc, err)
		return
	}
	e.hooks.Trigger(ctx, AfterLogout, hc, nil)
}

// UpdateProfile sends partial updates and stores the server's response
// as the new in-memory profile.
func (e *Engine) UpdateProfile(ctx context.Context, updates models.Profile) Result {
	hc := e.hookContext()
	updates = asProfile(e.hooks.Trigger(ctx, BeforeProfileUpdate, hc, updates), updates)

	profile, err := e.api.UpdateProfile(ctx, updates)
	if err != nil {
		e.hooks.Trigger(ctx, ProfileUpdateError, hc, err)
		return Result{Success: false, Error: errorMessage(err)}
	}

	e.set(func(s *Session) { s.Profile = profile })
	e.hooks.Trigger(ctx, AfterProfileUpdate, hc, profile)
	return Result{Success: true}
}

// UpdatePassword changes the account password.
func (e *Engine) UpdatePassword(ctx context.Context, current, updated string) Result {
	hc := e.hookContext()
	payload := models.PasswordUpdate{CurrentPassword: current, NewPassword: updated}
	if out, ok := e.hooks.Trigger(ctx, BeforePasswordUpdate, hc, payload).(models.PasswordUpdate); ok {
		payload = out
	}

	if err := e.api.UpdatePassword(ctx, payload.CurrentPassword, payload.NewPassword); err != nil {
		e.hooks.Trigger(ctx, PasswordUpdateError, hc, err)
		return Result{Success: false, Error: errorMessage(err)}
	}

	e.hooks.Trigger(ctx, AfterPasswordUpdate, hc, nil)
	return Result{Success: true}
}

// consumeOAuthCallback inspects the current URL for callback tokens.
// When both are present it records them as the pending pair and strips
// them from the URL without a reload.
func (e *Engine) consumeOAuthCallback() bool {
	u, err := e.loc.Current()
	if err != nil || u == nil {
		return false
	}
	q := u.Query()
	access, refresh := q.Get("access_token"), q.Get("refresh_token")
	if access == "" || refresh == "" {
		return false
	}

	e.creds.Clear()
	e.mu.Lock()
	e.pending = &models.TokenPair{AccessToken: access, RefreshToken: refresh}
	e.mu.Unlock()

	q.Del("access_token")
	q.Del("refresh_token")
	stripped := *u
	stripped.RawQuery = q.Encode()
	if err := e.loc.Replace(&stripped); err != nil {
		e.log.Warn("failed to strip oauth callback params", zap.Error(err))
	}
	return true
}

// fetchProfile loads the remote profile, resolving the pending
// credential pair with at most one bounded retry. The return value is
// true only when a refresh attempt failed and the caller may treat the
// session as lost; in every other failure Authenticated is left alone.
func (e *Engine) fetchProfile(ctx context.Context) bool {
	profile, err := e.api.FetchProfile(ctx)
	if err == nil {
		// The request succeeded without a bearer header, so cookie
		// mode is confirmed: a pending pair is unnecessary, and so is
		// anything already persisted.
		e.mu.Lock()
		hadPending := e.pending != nil
		e.pending = nil
		e.mu.Unlock()
		if hadPending {
			e.creds.Clear()
		}
		e.storeProfile(ctx, profile)
		return false
	}

	if !client.IsAuthExpired(err) {
		e.log.Debug("profile fetch failed", zap.Error(err))
		e.set(func(s *Session) { s.Profile = nil })
		return false
	}

	e.hooks.Trigger(ctx, AuthError, e.hookContext(), err)

	e.mu.Lock()
	pending := e.pending
	e.pending = nil
	e.mu.Unlock()

	if pending != nil {
		// Cookies alone did not carry the session: promote the pair to
		// persistent storage (flipping fallback mode for good) and
		// retry once with the bearer header.
		e.creds.SetTokens(pending.AccessToken, pending.RefreshToken)
		e.retryProfile(ctx)
		return false
	}

	if e.Refresh(ctx) {
		e.retryProfile(ctx)
		return false
	}

	e.set(func(s *Session) { s.Profile = nil })
	return true
}

// retryProfile is the single bounded retry after the expired branch of
// fetchProfile resolved. It never recurses.
func (e *Engine) retryProfile(ctx context.Context) {
	profile, err := e.api.FetchProfile(ctx)
	if err != nil {
		e.log.Debug("profile fetch retry failed", zap.Error(err))
		e.set(func(s *Session) { s.Profile = nil })
		return
	}
	e.storeProfile(ctx, profile)
}

// storeProfile applies the transform hook and records the result.
func (e *Engine) storeProfile(ctx context.Context, profile models.Profile) {
	out := e.hooks.Trigger(ctx, TransformProfile, e.hookContext(), profile)
	profile = asProfile(out, profile)
	e.set(func(s *Session) { s.Profile = profile })
}

// clearAuth drops every local trace of the session.
func (e *Engine) clearAuth() {
	e.creds.Clear()
	e.mu.Lock()
	e.pending = nil
	e.mu.Unlock()
	e.set(func(s *Session) {
		s.Authenticated = false
		s.Profile = nil
	})
}

func (e *Engine) hookContext() HookContext {
	return HookContext{Config: e.cfg, Storage: e.creds, Client: e.api}
}

// set mutates the session under the lock and notifies the listener.
func (e *Engine) set(mutate func(*Session)) {
	e.mu.Lock()
	mutate(&e.sess)
	e.mu.Unlock()
	e.notify()
}

func (e *Engine) notify() {
	e.mu.Lock()
	fn := e.onChange
	snapshot := e.sess
	e.mu.Unlock()
	if fn != nil {
		fn(snapshot)
	}
}

// asProfile accepts both the named Profile type and a plain map from a
// hook handler.
func asProfile(v any, fallback models.Profile) models.Profile {
	switch p := v.(type) {
	case models.Profile:
		return p
	case map[string]any:
		return p
	default:
		return fallback
	}
}

// errorMessage prefers the API error's message over Go error plumbing.
func errorMessage(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}
