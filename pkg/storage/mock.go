package storage

import (
	"context"
	"sync"
	"time"

	"github.com/microcom/cyberquest/pkg/game"
)

// MockStore is a SessionStore for testing, with configurable failures.
type MockStore struct {
	mu        sync.RWMutex
	sessions  map[string]*game.Session
	pingError error
	saveError error
	getError  error
}

// Ensure MockStore implements the SessionStore interface
var _ game.SessionStore = (*MockStore)(nil)

// NewMockStore creates a new mock session store.
func NewMockStore() *MockStore {
	return &MockStore{
		sessions: make(map[string]*game.Session),
	}
}

// SetPingError configures the mock to fail on ping with the given error.
func (m *MockStore) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

// SetSaveError configures the mock to fail on save with the given error.
func (m *MockStore) SetSaveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveError = err
}

// SetGetError configures the mock to fail on lookups with the given error.
func (m *MockStore) SetGetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getError = err
}

// Ping mocks a store ping.
func (m *MockStore) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingError
}

// Close mocks closing the store.
func (m *MockStore) Close() error {
	return nil
}

// GetOrCreate mocks atomic session creation.
func (m *MockStore) GetOrCreate(ctx context.Context, userID string) (*game.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getError != nil {
		return nil, m.getError
	}
	if s, ok := m.sessions[userID]; ok {
		return s.Clone(), nil
	}
	s := game.NewSession(userID)
	m.sessions[userID] = s.Clone()
	return s, nil
}

// Get mocks a session lookup.
func (m *MockStore) Get(ctx context.Context, userID string) (*game.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.getError != nil {
		return nil, m.getError
	}
	return m.sessions[userID].Clone(), nil
}

// Save mocks persisting a session.
func (m *MockStore) Save(ctx context.Context, s *game.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveError != nil {
		return m.saveError
	}
	m.sessions[s.UserID] = s.Clone()
	return nil
}

// Remove mocks deleting a session.
func (m *MockStore) Remove(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
	return nil
}

// SweepIdle mocks idle removal.
func (m *MockStore) SweepIdle(ctx context.Context, olderThan time.Duration) (int, error) {
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
