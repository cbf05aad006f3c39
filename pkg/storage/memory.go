// Package storage provides SessionStore implementations backed by
// process memory. The Redis-backed implementation lives in
// internal/storage.
package storage

import (
	"context"
	"sync"
	"time"

	"github.com/microcom/cyberquest/pkg/game"
)

// MemoryStore is the default in-process session registry. Sessions are
// ephemeral: nothing survives a restart.
//
// Sessions cross the store boundary by value: every entry handed out or
// taken in is a deep copy, so callers mutate their own copy and the
// idle sweeper reads the map's copy without racing them. Matching the
// Redis store, a mutation is visible only after Save.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*game.Session
}

// Ensure MemoryStore implements the SessionStore interface
var _ game.SessionStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*game.Session),
	}
}

// Ping always succeeds for an in-memory store.
func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op for an in-memory store.
func (m *MemoryStore) Close() error {
	return nil
}

// GetOrCreate returns the user's session, creating one awaiting its
// first start action if absent. Two concurrent calls for the same user
// observe the same session.
func (m *MemoryStore) GetOrCreate(ctx context.Context, userID string) (*game.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[userID]; ok {
		return s.Clone(), nil
	}
	s := game.NewSession(userID)
	m.sessions[userID] = s.Clone()
	return s, nil
}

// Get returns a copy of the user's session, or nil if absent.
func (m *MemoryStore) Get(ctx context.Context, userID string) (*game.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[userID].Clone(), nil
}

// Save stores a copy of the session under its user ID.
func (m *MemoryStore) Save(ctx context.Context, s *game.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.UserID] = s.Clone()
	return nil
}

// Remove deletes the user's session.
func (m *MemoryStore) Remove(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
	return nil
}

// SweepIdle removes sessions with no activity for the given duration.
func (m *MemoryStore) SweepIdle(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for userID, s := range m.sessions {
		if s.LastActivity.Before(cutoff) {
			delete(m.sessions, userID)
			removed++
		}
	}
	return removed, nil
}

// Len reports the number of live sessions.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
