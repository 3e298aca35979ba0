package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the process-local fallback used when the shared backend
// is unreachable at startup. Sessions held here are lost on restart,
// which is acceptable because configuration changes already force one.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewMemoryStore creates an empty in-process session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session)}
}

// Get returns the session for id, or ErrNotFound when missing or expired.
func (m *MemoryStore) Get(_ context.Context, id string) (Session, error) {
	m.mu.RLock()
	sess, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return Session{}, ErrNotFound
	}
	if sess.Expired(time.Now()) {
		m.mu.Lock()
		delete(m.sessions, id)
		m.mu.Unlock()
		return Session{}, ErrNotFound
	}
	return sess, nil
}

// Put stores the session under id.
func (m *MemoryStore) Put(_ context.Context, id string, sess Session) error {
	m.mu.Lock()
	m.sessions[id] = sess
	m.mu.Unlock()
	return nil
}

// Delete removes the session for id.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
	return nil
}

// PurgeExpired drops expired sessions. Called by the server janitor.
func (m *MemoryStore) PurgeExpired(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, sess := range m.sessions {
		if sess.Expired(now) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}
