// Package storage persists the client's credential pair and the
// fallback-mode flag over a pluggable string key-value adapter.
package storage

import (
	"encoding/json"
	"os"
	"sync"

	"go.uber.org/zap"
)

// Adapter is the pluggable key-value backend. Implementations are
// best-effort: a host without durable storage degrades to no-ops
// rather than failing.
type Adapter interface {
	// Get returns the value for key and whether it was present.
	Get(key string) (string, bool)
	// Set stores value under key, overwriting any previous value.
	Set(key, value string)
	// Remove deletes key if present.
	Remove(key string)
	// Clear removes every key owned by the adapter.
	Clear()
}

// MemoryAdapter is a process-local Adapter. It is the default backend
// and the degraded mode for hosts without durable storage.
type MemoryAdapter struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemoryAdapter returns an empty in-memory adapter.
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{values: make(map[string]string)}
}

func (a *MemoryAdapter) Get(key string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	v, ok := a.values[key]
	return v, ok
}

func (a *MemoryAdapter) Set(key, value string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.values[key] = value
}

func (a *MemoryAdapter) Remove(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.values, key)
}

func (a *MemoryAdapter) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.values = make(map[string]string)
}

// FileAdapter persists keys as a JSON object in a single file. Write
// failures are logged and the adapter keeps serving from memory, so a
// read-only filesystem degrades rather than breaking authentication.
type FileAdapter struct {
	mu     sync.Mutex
	path   string
	values map[string]string
	log    *zap.Logger
}

// NewFileAdapter loads (or lazily creates) the JSON state file at path.
func NewFileAdapter(path string, log *zap.Logger) *FileAdapter {
	if log == nil {
		log = zap.NewNop()
	}
	a := &FileAdapter{path: path, values: make(map[string]string), log: log}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("failed to read storage file", zap.String("path", path), zap.Error(err))
		}
		return a
	}
	if err := json.Unmarshal(data, &a.values); err != nil {
		log.Warn("failed to parse storage file", zap.String("path", path), zap.Error(err))
		a.values = make(map[string]string)
	}
	return a
}

func (a *FileAdapter) Get(key string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	v, ok := a.values[key]
	return v, ok
}

func (a *FileAdapter) Set(key, value string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.values[key] = value
	a.persist()
}

func (a *FileAdapter) Remove(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.values, key)
	a.persist()
}

func (a *FileAdapter) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.values = make(map[string]string)
	a.persist()
}

// persist writes the current state. Callers hold a.mu.
func (a *FileAdapter) persist() {
	data, err := json.Marshal(a.values)
	if err != nil {
		a.log.Warn("failed to encode storage state", zap.Error(err))
		return
	}
	if err := os.WriteFile(a.path, data, 0o600); err != nil {
		a.log.Warn("failed to write storage file", zap.String("path", a.path), zap.Error(err))
	}
}
