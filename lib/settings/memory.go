// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package settings

import (
	"context"
	"sync"
)

// Memory is a Store held in memory. Safe for concurrent use.
type Memory struct {
	typed
}

// NewMemory returns a store holding initial (name to value) on top of
// the defaults. Panics if an initial value is invalid.
func NewMemory(initial map[string]string) *Memory {
	store := &Memory{typed{backend: &memoryBackend{values: make(map[string]string)}}}
	for name, value := range initial {
		if err := store.Set(context.Background(), name, value); err != nil {
			panic("settings.NewMemory: " + err.Error())
		}
	}
	return store
}

type memoryBackend struct {
	mu     sync.RWMutex
	values map[string]string
}

func (m *memoryBackend) load(_ context.Context, name string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, found := m.values[name]
	return value, found, nil
}

func (m *memoryBackend) save(_ context.Context, name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[name] = value
	return nil
}
