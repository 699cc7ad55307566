package storage

import (
	"sync"

	"github.com/atinyakov/authflow/internal/config"
)

// Storage keys. Namespaced so the adapter can share a backend with the
// embedding application.
const (
	keyAccess   = "authflow.access_token"
	keyRefresh  = "authflow.refresh_token"
	keyFallback = "authflow.fallback_active"
)

// TokenStore persists the credential pair and the fallback-active flag.
// All reads and writes of the three keys go through one mutex, so a
// Clear is atomic from the caller's perspective.
type TokenStore struct {
	mu       sync.Mutex
	adapter  Adapter
	strategy config.Strategy
}

// New builds a TokenStore over the given adapter. A nil adapter
// defaults to in-memory storage.
func New(adapter Adapter, strategy config.Strategy) *TokenStore {
	if adapter == nil {
		adapter = NewMemoryAdapter()
	}
	return &TokenStore{adapter: adapter, strategy: strategy}
}

// SetTokens persists the pair and sets the fallback-active flag. The
// flag is a one-way ratchet: it is only unset by Clear.
func (s *TokenStore) SetTokens(access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adapter.Set(keyAccess, access)
	s.adapter.Set(keyRefresh, refresh)
	s.adapter.Set(keyFallback, "true")
}

// AccessToken returns the persisted access token, or "".
func (s *TokenStore) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, _ := s.adapter.Get(keyAccess)
	return v
}

// RefreshToken returns the persisted refresh token, or "".
func (s *TokenStore) RefreshToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, _ := s.adapter.Get(keyRefresh)
	return v
}

// IsFallbackActive reports whether a credential pair has ever been
// persisted since the last Clear.
func (s *TokenStore) IsFallbackActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, _ := s.adapter.Get(keyFallback)
	return v == "true"
}

// Clear removes the tokens and the fallback flag.
func (s *TokenStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adapter.Remove(keyAccess)
	s.adapter.Remove(keyRefresh)
	s.adapter.Remove(keyFallback)
}

// ShouldUseFallback decides the storage mode: true when the strategy
// forces it, or when the ratchet flag is set, or when either token is
// present. False means cookies are trusted.
func (s *TokenStore) ShouldUseFallback() bool {
	if s.strategy == config.FallbackOnly {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, _ := s.adapter.Get(keyFallback); v == "true" {
		return true
	}
	if v, _ := s.adapter.Get(keyAccess); v != "" {
		return true
	}
	if v, _ := s.adapter.Get(keyRefresh); v != "" {
		return true
	}
	return false
}
