package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryAdapter(t *testing.T) {
	a := NewMemoryAdapter()

	_, ok := a.Get("k")
	assert.False(t, ok)

	a.Set("k", "v")
	v, ok := a.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	a.Remove("k")
	_, ok = a.Get("k")
	assert.False(t, ok)

	a.Set("a", "1")
	a.Set("b", "2")
	a.Clear()
	_, ok = a.Get("a")
	assert.False(t, ok)
}

func TestFileAdapter_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	a := NewFileAdapter(path, nil)
	a.Set("token", "abc")

	b := NewFileAdapter(path, nil)
	v, ok := b.Get("token")
	require.True(t, ok)
	assert.Equal(t, "abc", v)

	b.Clear()
	c := NewFileAdapter(path, nil)
	_, ok = c.Get("token")
	assert.False(t, ok)
}

func TestFileAdapter_CorruptFileDegrades(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))

	a := NewFileAdapter(path, nil)
	_, ok := a.Get("anything")
	assert.False(t, ok)

	// The adapter still accepts writes after a corrupt load.
	a.Set("k", "v")
	v, ok := a.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestSQLiteAdapter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.db")

	a, err := NewSQLiteAdapter(path, nil)
	require.NoError(t, err)
	defer a.Close()

	a.Set("k", "v1")
	a.Set("k", "v2") // upsert
	v, ok := a.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v2", v)

	a.Remove("k")
	_, ok = a.Get("k")
	assert.False(t, ok)

	a.Set("a", "1")
	a.Clear()
	_, ok = a.Get("a")
	assert.False(t, ok)
}

func TestSQLiteAdapter_ReopensExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.db")

	a, err := NewSQLiteAdapter(path, nil)
	require.NoError(t, err)
	a.Set("k", "v")
	require.NoError(t, a.Close())

	b, err := NewSQLiteAdapter(path, nil)
	require.NoError(t, err)
	defer b.Close()

	v, ok := b.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}
