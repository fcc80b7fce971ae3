// Package prefs persists the browser's user choices (server URL, locale)
// in a small key/value store.
package prefs

import (
	"fmt"
	"sync"
)

// Keys written by the browser.
const (
	KeyServerURL = "server_url"
	KeyLocale    = "locale"
)

// Store is a durable key/value store. Get reports ok=false for a missing key.
type Store interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Close() error
}

// Open returns the store named by kind: "file", "duckdb" or "memory".
func Open(kind, path, dataDir string) (Store, error) {
	switch kind {
	case "", "file":
		f, err := OpenFile(path)
		if err != nil {
			return nil, err
		}
		return f, nil
	case "duckdb":
		d, err := OpenDuck(dataDir)
		if err != nil {
			return nil, err
		}
		return d, nil
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown prefs store %q", kind)
	}
}

// Memory is an in-process Store. It forgets everything on exit.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *Memory) Close() error { return nil }
