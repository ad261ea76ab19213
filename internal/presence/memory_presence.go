package presence

import (
	"context"
	"sync"
)

// MemoryTracker is a single-process Tracker used when Redis is not
// configured and in tests.
type MemoryTracker struct {
	mu    sync.RWMutex
	conns map[string]map[string]struct{}
}

func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{conns: make(map[string]map[string]struct{})}
}

func (m *MemoryTracker) Online(ctx context.Context, userID, connectionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conns[userID]
	if !ok {
		c = make(map[string]struct{})
		m.conns[userID] = c
	}
	c[connectionID] = struct{}{}
	return nil
}

func (m *MemoryTracker) Offline(ctx context.Context, userID, connectionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.conns[userID]; ok {
		delete(c, connectionID)
		if len(c) == 0 {
			delete(m.conns, userID)
		}
	}
	return nil
}

func (m *MemoryTracker) IsOnline(ctx context.Context, userID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns[userID]) > 0, nil
}

func (m *MemoryTracker) StartHeartbeat(ctx context.Context) error { return nil }

func (m *MemoryTracker) StopHeartbeat() {}
