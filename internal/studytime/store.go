// Package studytime accrues and persists total study time.
package studytime

import (
	"context"
	"fmt"
	"sync"
)

// KeyPrefix namespaces the per-session total.
const KeyPrefix = "totalStudyTime:"

// Key returns the storage key for a browser session.
func Key(sessionID string) string {
	return KeyPrefix + sessionID
}

// Store persists integer second totals.
type Store interface {
	// Load returns the total for key, 0 when the key does not exist.
	Load(ctx context.Context, key string) (int64, error)
	// Add increments the total for key and returns the new value.
	Add(ctx context.Context, key string, delta int64) (int64, error)
	Close() error
}

// MemoryStore keeps totals in process memory; they do not survive a restart.
type MemoryStore struct {
	mu     sync.Mutex
	totals map[string]int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{totals: make(map[string]int64)}
}

func (m *MemoryStore) Load(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totals[key], nil
}

func (m *MemoryStore) Add(_ context.Context, key string, delta int64) (int64, error) {
	if delta < 0 {
		return 0, fmt.Errorf("negative study time delta %d", delta)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totals[key] += delta
	return m.totals[key], nil
}

func (m *MemoryStore) Close() error { return nil }
