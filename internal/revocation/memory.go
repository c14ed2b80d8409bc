package revocation

import (
	"context"
	"fmt"
	"sync"
)

// MemoryRegistry is an in-process Registry.
type MemoryRegistry struct {
	mu     sync.RWMutex
	ledger Ledger
}

// NewMemoryRegistry returns an empty in-process registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{}
}

// Append records entry unless its serial is already revoked.
func (m *MemoryRegistry) Append(_ context.Context, entry Entry) (bool, error) {
	if entry.Serial == "" {
		return false, fmt.Errorf("cannot revoke an empty serial")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ledger.contains(entry.Serial) {
		return false, nil
	}
	m.ledger.Revoked = append(m.ledger.Revoked, normalize(entry))
	return true, nil
}

// Contains reports whether serial has been revoked.
func (m *MemoryRegistry) Contains(_ context.Context, serial string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ledger.contains(serial), nil
}

// List returns a copy of the entries in revocation order.
func (m *MemoryRegistry) List(_ context.Context) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Entry, len(m.ledger.Revoked))
	copy(out, m.ledger.Revoked)
	return out, nil
}
