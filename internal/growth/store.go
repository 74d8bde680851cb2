package growth

import (
	"context"
	"sync"
	"time"

	"github.com/banshee-data/growth.report/internal/timeutil"
)

// SessionStore persists sessions by user id. Get on an unknown user returns
// a fresh empty session, not an error.
type SessionStore interface {
	Get(ctx context.Context, userID string) (*Session, error)
	Put(ctx context.Context, userID string, s *Session) error
	Delete(ctx context.Context, userID string) error
	PurgeStale(ctx context.Context, olderThan time.Time) (int, error)
}

// MemoryStore is an in-process SessionStore for tests and dev mode.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	clock    timeutil.Clock
}

// NewMemoryStore returns an empty store stamping updates with clock.
func NewMemoryStore(clock timeutil.Clock) *MemoryStore {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &MemoryStore{sessions: make(map[string]*Session), clock: clock}
}

// Get returns a copy of the stored session.
func (m *MemoryStore) Get(_ context.Context, userID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[userID]
	if !ok {
		return NewSession(), nil
	}
	return s.Clone(), nil
}

// Put replaces the stored session with a copy of s.
func (m *MemoryStore) Put(_ context.Context, userID string, s *Session) error {
	c := s.Clone()
	c.UpdatedAt = m.clock.Now()
	m.mu.Lock()
	m.sessions[userID] = c
	m.mu.Unlock()
	s.UpdatedAt = c.UpdatedAt
	return nil
}

// Delete removes the session; deleting an unknown user is not an error.
func (m *MemoryStore) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	delete(m.sessions, userID)
	m.mu.Unlock()
	return nil
}

// PurgeStale removes sessions last updated before olderThan.
func (m *MemoryStore) PurgeStale(_ context.Context, olderThan time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.sessions {
		if s.UpdatedAt.Before(olderThan) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}
