// Package session keeps the in-memory mapping from bearer tokens to users.
// Sessions are volatile: nothing is persisted and a restart invalidates every token.
package session

import (
	"sync" // Mutexes
	"time" // Time durations

	"github.com/google/uuid" // Random identifiers
)

type entry struct {
	userID    string
	createdAt time.Time
}

// Manager owns the token map. All access goes through one mutex.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]entry
	ttl      time.Duration // Zero means sessions never expire
	now      func() time.Time
}

type Option func(*Manager)

// WithTTL expires sessions ttl after creation
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.ttl = ttl
	}
}

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates an empty session store
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		sessions: make(map[string]entry),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create registers a new session for userID and returns its token
func (m *Manager) Create(userID string) string {
	token := uuid.NewString() // Random (v4) UUID, read from crypto/rand
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[token] = entry{userID: userID, createdAt: m.now()}
	return token
}

// Resolve returns the user behind token. ok is false for unknown, destroyed or expired tokens.
func (m *Manager) Resolve(token string) (userID string, ok bool) {
	if token == "" {
		return "", false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, found := m.sessions[token]
	if !found {
		return "", false
	}
	if m.expired(e) {
		delete(m.sessions, token)
		return "", false
	}
	return e.userID, true
}

// Destroy removes token and reports whether it was an active session
func (m *Manager) Destroy(token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, found := m.sessions[token]
	if !found {
		return false
	}
	delete(m.sessions, token)
	return !m.expired(e)
}

// Count returns the number of active sessions, dropping expired ones
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	for token, e := range m.sessions {
		if m.expired(e) {
			delete(m.sessions, token)
		}
	}
	return len(m.sessions)
}

func (m *Manager) expired(e entry) bool {
	return m.ttl > 0 && m.now().Sub(e.createdAt) >= m.ttl
}
