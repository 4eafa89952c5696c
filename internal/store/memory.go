package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps snapshots in process memory. Default backend, and the one
// tests run against.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]Snapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snapshots: make(map[string]Snapshot)}
}

func (m *MemoryStore) Save(_ context.Context, snapshot Snapshot) (string, error) {
	if snapshot.SavedAt.IsZero() {
		snapshot.SavedAt = time.Now()
	}
	snapshot.SchemaVersion = SchemaVersion
	key := snapshot.Key()

	m.mu.Lock()
	m.snapshots[key] = snapshot
	m.mu.Unlock()

	return key, nil
}

func (m *MemoryStore) Get(_ context.Context, key string) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot, exists := m.snapshots[key]
	if !exists {
		return nil, ErrNotFound
	}
	return &snapshot, nil
}

func (m *MemoryStore) List(_ context.Context) ([]Snapshot, error) {
	m.mu.RLock()
	out := make([]Snapshot, 0, len(m.snapshots))
	for _, s := range m.snapshots {
		out = append(out, s)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].SavedAt.After(out[j].SavedAt)
	})
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }
