package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/atinyakov/authflow/internal/config"
)

func TestTokenStore_SetAndGet(t *testing.T) {
	s := New(nil, config.CookieFirst)

	s.SetTokens("acc", "ref")

	assert.Equal(t, "acc", s.AccessToken())
	assert.Equal(t, "ref", s.RefreshToken())
	assert.True(t, s.IsFallbackActive())
}

func TestTokenStore_ClearIsIdempotent(t *testing.T) {
	s := New(nil, config.CookieFirst)
	s.SetTokens("acc", "ref")

	s.Clear()
	s.Clear()

	assert.Empty(t, s.AccessToken())
	assert.Empty(t, s.RefreshToken())
	assert.False(t, s.IsFallbackActive())
	assert.False(t, s.ShouldUseFallback())
}

func TestTokenStore_FallbackRatchet(t *testing.T) {
	s := New(nil, config.CookieFirst)
	assert.False(t, s.ShouldUseFallback())

	s.SetTokens("acc", "ref")
	assert.True(t, s.ShouldUseFallback())

	// The ratchet holds even with a cookie-first strategy until an
	// explicit Clear.
	assert.True(t, s.ShouldUseFallback())

	s.Clear()
	assert.False(t, s.ShouldUseFallback())
}

func TestTokenStore_FallbackOnlyStrategy(t *testing.T) {
	s := New(nil, config.FallbackOnly)
	assert.True(t, s.ShouldUseFallback(), "forced strategy ignores stored state")
}

func TestTokenStore_FallbackWhenTokenPresentWithoutFlag(t *testing.T) {
	// A token written by an older client without the flag still forces
	// fallback mode.
	a := NewMemoryAdapter()
	a.Set(keyRefresh, "leftover")

	s := New(a, config.CookieFirst)
	assert.True(t, s.ShouldUseFallback())
	assert.False(t, s.IsFallbackActive())
}
