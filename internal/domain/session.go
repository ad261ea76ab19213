package domain

import (
	"sync"
	"time"
)

// Principal is the identity a connection authenticated as.
type Principal struct {
	UserID   string
	Username string
}

// Session is the per-connection state of a WebSocket client. A session is
// bound to at most one principal for its whole life.
type Session struct {
	ConnectionID string
	OpenedAt     time.Time

	mu        sync.RWMutex
	principal *Principal
	lastSeen  time.Time
}

func NewSession(connectionID string) *Session {
	now := time.Now()
	return &Session{
		ConnectionID: connectionID,
		OpenedAt:     now,
		lastSeen:     now,
	}
}

// Bind attaches p to the session. Binding again as the same user refreshes
// the username; binding as a different user fails and leaves the session as
// it was.
func (s *Session) Bind(p Principal) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.principal != nil && s.principal.UserID != p.UserID {
		return false
	}
	s.principal = &p
	s.lastSeen = time.Now()
	return true
}

// Principal returns the bound principal, if any.
func (s *Session) Principal() (Principal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.principal == nil {
		return Principal{}, false
	}
	return *s.principal, true
}

// UserID returns the bound user id, or "" before authentication.
func (s *Session) UserID() string {
	p, _ := s.Principal()
	return p.UserID
}

func (s *Session) Touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

// IdleFor reports how long ago the connection last sent a frame.
func (s *Session) IdleFor() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Since(s.lastSeen)
}
