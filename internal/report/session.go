package report

import (
	"sync"
	"time"
)

// State is where a user's report dialogue currently stands.
type State int

const (
	Idle State = iota
	AwaitingTimeRange
	AwaitingLunch
	AwaitingDescription
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingTimeRange:
		return "awaiting_time_range"
	case AwaitingLunch:
		return "awaiting_lunch"
	case AwaitingDescription:
		return "awaiting_description"
	}
	return "unknown"
}

// Session holds the fields collected so far for one user.
type Session struct {
	ID        string
	UserID    int64
	State     State
	TimeRange string
	HadLunch  bool
	LunchSet  bool
	UpdatedAt time.Time
}

// SessionStore keeps at most one session per user.
type SessionStore interface {
	Get(userID int64) (Session, bool)
	Put(s Session)
	Delete(userID int64)
}

// MemorySessions is an in-process SessionStore. With a positive TTL,
// sessions idle for longer than the TTL are treated as absent.
type MemorySessions struct {
	mu       sync.Mutex
	sessions map[int64]Session
	ttl      time.Duration
	now      func() time.Time
}

func NewMemorySessions(ttl time.Duration) *MemorySessions {
	return &MemorySessions{
		sessions: make(map[int64]Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (m *MemorySessions) Get(userID int64) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[userID]
	if !ok {
		return Session{}, false
	}
	if m.expired(s) {
		delete(m.sessions, userID)
		return Session{}, false
	}
	return s, true
}

func (m *MemorySessions) Put(s Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s.UpdatedAt = m.now()
	m.sessions[s.UserID] = s
}

func (m *MemorySessions) Delete(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
}

// Len returns the number of stored sessions, expired ones included.
func (m *MemorySessions) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep drops expired sessions and returns how many were removed.
func (m *MemorySessions) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, s := range m.sessions {
		if m.expired(s) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

func (m *MemorySessions) expired(s Session) bool {
	return m.ttl > 0 && m.now().Sub(s.UpdatedAt) > m.ttl
}
