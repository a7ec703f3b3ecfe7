package ledger

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps user records in process memory for the lifetime of the
// process.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]map[int64]*Week
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]map[int64]*Week)}
}

func (m *MemoryStore) UserExists(ctx context.Context, userID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.users[userID]
	return ok, nil
}

func (m *MemoryStore) EnsureWeek(ctx context.Context, userID string, weekKey time.Time) (Week, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	weeks, ok := m.users[userID]
	if !ok {
		weeks = make(map[int64]*Week)
		m.users[userID] = weeks
	}
	w, ok := weeks[weekKey.UnixMilli()]
	if !ok {
		w = &Week{}
		weeks[weekKey.UnixMilli()] = w
	}
	return *w, !ok, nil
}

func (m *MemoryStore) GetWeek(ctx context.Context, userID string, weekKey time.Time) (Week, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	w, ok := m.users[userID][weekKey.UnixMilli()]
	if !ok {
		return Week{}, false, nil
	}
	return *w, true, nil
}

func (m *MemoryStore) MarkRedeemed(ctx context.Context, userID string, weekKey time.Time, index int, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.users[userID][weekKey.UnixMilli()]
	if !ok || w[index] != nil {
		return false, nil
	}
	t := at
	w[index] = &t
	return true, nil
}
