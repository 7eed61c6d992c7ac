// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package cache

import (
	"sync"

	"github.com/gomlx/gostencil/pkg/stencil/artifacts"
)

// MemoryStrategy keeps the artifacts in memory, for the lifetime of the process.
type MemoryStrategy struct {
	flight
	mu      sync.RWMutex
	entries map[Key]memoryEntry
}

type memoryEntry struct {
	fingerprint string
	set         artifacts.Set
}

var _ Strategy = (*MemoryStrategy)(nil)

// NewMemory returns a new empty in-memory cache.
func NewMemory() *MemoryStrategy {
	return &MemoryStrategy{entries: make(map[Key]memoryEntry)}
}

// Name implements Strategy.
func (m *MemoryStrategy) Name() string { return Memory }

// Load implements Strategy. It returns a copy of the stored artifacts.
func (m *MemoryStrategy) Load(key Key, fingerprint string) (artifacts.Set, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, found := m.entries[key]
	if !found || e.fingerprint != fingerprint {
		return nil, false, nil
	}
	return e.set.Clone(), true, nil
}

// Store implements Strategy.
func (m *MemoryStrategy) Store(key Key, fingerprint string, set artifacts.Set) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{fingerprint: fingerprint, set: set.Clone()}
	return nil
}

// Invalidate implements Strategy.
func (m *MemoryStrategy) Invalidate(key Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// Do implements Strategy.
func (m *MemoryStrategy) Do(key Key, fingerprint string, generate Generator) (artifacts.Set, bool, error) {
	return m.do(m, key, fingerprint, generate)
}

// Len returns the number of entries.
func (m *MemoryStrategy) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
