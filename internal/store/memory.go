package store

import (
	"sort"
	"sync"
	"time"
)

// Memory is an in-memory store for testing.
type Memory struct {
	mu       sync.RWMutex
	modules  map[string][]Record
	history  map[string][]VersionEntry // oldest first
	metadata map[string]string
}

// NewMemory creates a new in-memory store.
func NewMemory() *Memory {
	return &Memory{
		modules:  make(map[string][]Record),
		history:  make(map[string][]VersionEntry),
		metadata: make(map[string]string),
	}
}

// GetModule retrieves a module's declarations.
func (m *Memory) GetModule(name string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	records, ok := m.modules[name]
	if !ok {
		return nil, ErrModuleNotFound
	}
	return append([]Record(nil), records...), nil
}

// PutModule stores a module. Storing identical declarations again does
// not create a new version.
func (m *Memory) PutModule(name string, records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.modules[name]; ok && equalRecords(old, records) {
		return nil
	}
	m.modules[name] = append([]Record(nil), records...)
	m.history[name] = append(m.history[name], VersionEntry{
		Version: len(m.history[name]) + 1,
		Value:   Render(records),
		Ts:      time.Now().UTC().Format(time.RFC3339),
	})
	return nil
}

// DeleteModule removes a module and all its versions.
func (m *Memory) DeleteModule(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.modules, name)
	delete(m.history, name)
	return nil
}

// ListModules returns the stored module names.
func (m *Memory) ListModules() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.modules))
	for name := range m.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// GetHistory returns versions newest first. A limit of 0 returns all.
func (m *Memory) GetHistory(name string, limit int) ([]VersionEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	versions := m.history[name]
	if len(versions) == 0 {
		return nil, nil
	}
	var out []VersionEntry
	for i := len(versions) - 1; i >= 0; i-- {
		out = append(out, versions[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Close is a no-op for memory store.
func (m *Memory) Close() error {
	return nil
}

// GetMetadata retrieves a metadata value by key.
func (m *Memory) GetMetadata(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metadata[key], nil
}

// SetMetadata stores a metadata value by key.
func (m *Memory) SetMetadata(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metadata[key] = value
	return nil
}
