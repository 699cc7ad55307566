// Package store adapts the reconciliation engine to a reactive
// consumer: a subscribable store with a current snapshot plus an
// imperative action surface that delegates to the engine.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/atinyakov/authflow/internal/models"
	"github.com/atinyakov/authflow/internal/session"
)

// Store is the UI-facing session store. Subscribers are notified on
// every engine state transition; the snapshot is always available
// synchronously.
type Store struct {
	engine *session.Engine

	mu      sync.Mutex
	current session.Session
	subs    map[string]func(session.Session)
}

// New wires a Store to the engine's state transitions. The Store
// registers itself as the engine's change listener; create it before
// calling Initialize so no transition is missed.
func New(engine *session.Engine) *Store {
	s := &Store{
		engine:  engine,
		current: engine.Session(),
		subs:    make(map[string]func(session.Session)),
	}
	engine.SetOnChange(s.publish)
	return s
}

func (s *Store) publish(sess session.Session) {
	s.mu.Lock()
	s.current = sess
	fns := make([]func(session.Session), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(sess)
	}
}

// Snapshot returns the current session state.
func (s *Store) Snapshot() session.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Subscribe registers fn, invokes it immediately with the current
// snapshot, and returns an unsubscribe func.
func (s *Store) Subscribe(fn func(session.Session)) func() {
	s.mu.Lock()
	id := uuid.NewString()
	s.subs[id] = fn
	snapshot := s.current
	s.mu.Unlock()

	fn(snapshot)

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Initialize runs the engine's one-time state reconciliation.
func (s *Store) Initialize(ctx context.Context) {
	s.engine.Initialize(ctx)
}

// Login authenticates with the given credentials.
func (s *Store) Login(ctx context.Context, login, password string) session.Result {
	return s.engine.Login(ctx, models.Credentials{Login: login, Password: password})
}

// Signup registers a new account and authenticates it.
func (s *Store) Signup(ctx context.Context, login, password string) session.Result {
	return s.engine.Signup(ctx, models.Credentials{Login: login, Password: password})
}

// Logout ends the session; local cleanup is unconditional.
func (s *Store) Logout(ctx context.Context) {
	s.engine.Logout(ctx)
}

// Refresh rotates the credential pair, serialized by the engine.
func (s *Store) Refresh(ctx context.Context) bool {
	return s.engine.Refresh(ctx)
}

// UpdateProfile sends partial profile updates.
func (s *Store) UpdateProfile(ctx context.Context, updates models.Profile) session.Result {
	return s.engine.UpdateProfile(ctx, updates)
}

// UpdatePassword changes the account password.
func (s *Store) UpdatePassword(ctx context.Context, current, updated string) session.Result {
	return s.engine.UpdatePassword(ctx, current, updated)
}

// OAuthURL builds the provider redirect URL.
func (s *Store) OAuthURL(provider string) (string, error) {
	return s.engine.OAuthURL(provider)
}

// EnabledProviders lists the configured OAuth providers.
func (s *Store) EnabledProviders() []string {
	return s.engine.EnabledProviders()
}

// RefreshInterval is the advisory interval for externally scheduled
// refreshes; zero means the application should not schedule any.
func (s *Store) RefreshInterval() time.Duration {
	return s.engine.Config().TokenRefreshInterval
}
