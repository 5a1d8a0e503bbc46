package state

import "sync"

// Memory is an in-memory session store keyed by user id.
// Lock provides a per-user critical section so that a user's updates are
// applied to the draft one at a time.
type Memory[D any] struct {
	mu       sync.RWMutex
	sessions map[int64]Session[D]

	locksMu sync.Mutex
	locks   map[int64]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

// NewMemory constructs an empty session store.
func NewMemory[D any]() *Memory[D] {
	return &Memory[D]{
		sessions: make(map[int64]Session[D]),
		locks:    make(map[int64]*userLock),
	}
}

// Get returns the user's session or an idle one.
func (m *Memory[D]) Get(userID int64) Session[D] {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sessions[userID]; ok {
		return s
	}
	return Session[D]{State: StateIdle}
}

// Set replaces the user's session.
func (m *Memory[D]) Set(userID int64, s Session[D]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !s.Active() {
		delete(m.sessions, userID)
		return
	}
	m.sessions[userID] = s
}

// Clear removes the user's session and returns what was stored.
func (m *Memory[D]) Clear(userID int64) (Session[D], bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	delete(m.sessions, userID)
	return s, ok
}

// InProgress reports whether the user currently has an active conversation.
func (m *Memory[D]) InProgress(userID int64) bool {
	return m.Get(userID).Active()
}

// Len returns the number of active sessions.
func (m *Memory[D]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Lock blocks until the caller owns the user's critical section and returns its release func.
func (m *Memory[D]) Lock(userID int64) func() {
	m.locksMu.Lock()
	l, ok := m.locks[userID]
	if !ok {
		l = &userLock{}
		m.locks[userID] = l
	}
	l.refs++
	m.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, userID)
		}
		m.locksMu.Unlock()
	}
}
