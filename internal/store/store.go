// Package store defines the keyed record store the cache sits on, plus an
// in-memory implementation. SQL and Redis backends live in subpackages.
package store

import (
	"context"
	"sync"
	"time"

	"marketkit/internal/model"
)

// Store is an opaque keyed store of whole records.
// Write is an upsert by key: a record replaces any previous record for its
// key in full, and readers never see a partially written record.
type Store[K comparable, R model.Record[K]] interface {
	Read(ctx context.Context, k K) (R, bool, error)
	// ReadAll returns the stored records for keys, skipping missing ones.
	ReadAll(ctx context.Context, keys []K) ([]R, error)
	Write(ctx context.Context, records []R) error
	Delete(ctx context.Context, k K) error
}

// Memory is a process-local Store.
type Memory[K comparable, R model.Record[K]] struct {
	mu    sync.RWMutex
	items map[K]R
}

func NewMemory[K comparable, R model.Record[K]]() *Memory[K, R] {
	return &Memory[K, R]{items: make(map[K]R)}
}

func (m *Memory[K, R]) Read(_ context.Context, k K) (R, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.items[k]
	return r, ok, nil
}

func (m *Memory[K, R]) ReadAll(_ context.Context, keys []K) ([]R, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]R, 0, len(keys))
	for _, k := range keys {
		if r, ok := m.items[k]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *Memory[K, R]) Write(_ context.Context, records []R) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		m.items[r.StoreKey()] = r
	}
	return nil
}

func (m *Memory[K, R]) Delete(_ context.Context, k K) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, k)
	return nil
}

// PurgeOlderThan removes records last written before cutoff and reports how
// many were removed.
func (m *Memory[K, R]) PurgeOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, r := range m.items {
		if r.SyncedAt().Before(cutoff) {
			delete(m.items, k)
			n++
		}
	}
	return n, nil
}
