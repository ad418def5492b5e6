package store

import (
	"context"
	"sync"
)

// Memory is an in-process KV used for local runs and tests. It keeps the full
// write history per key so tests can assert the exact sequence of record
// states a writer produced.
type Memory struct {
	mu      sync.Mutex
	values  map[string]string
	history map[string][]string

	// GetErr and SetErr, when set, are returned by every call. They model an
	// unreachable store.
	GetErr error
	SetErr error
}

func NewMemory() *Memory {
	return &Memory{
		values:  make(map[string]string),
		history: make(map[string][]string),
	}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.GetErr != nil {
		return "", false, m.GetErr
	}

	value, ok := m.values[key]
	return value, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SetErr != nil {
		return m.SetErr
	}

	m.values[key] = value
	m.history[key] = append(m.history[key], value)
	return nil
}

// Keys returns every key that currently holds a value.
func (m *Memory) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.values))
	for key := range m.values {
		keys = append(keys, key)
	}
	return keys
}

// History returns every value ever written to the key, in write order.
func (m *Memory) History(key string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	writes := make([]string, len(m.history[key]))
	copy(writes, m.history[key])
	return writes
}
