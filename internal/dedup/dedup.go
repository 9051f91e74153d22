// Package dedup remembers processed webhook event ids, so redelivered events
// become no-ops instead of duplicate transitions.
package dedup

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL bounds how long an event id is remembered. Vendors redeliver for
// days at most, not months.
const DefaultTTL = 30 * 24 * time.Hour

// Store marks event ids as seen. MarkIfNew reports true exactly once per
// (provider, eventID) pair within the TTL window.
type Store interface {
	MarkIfNew(ctx context.Context, provider, eventID string) (bool, error)
}

// Memory is a single-process dedup store with lazy TTL pruning.
type Memory struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[string]time.Time
	now  func() time.Time
}

func NewMemory() *Memory {
	return &Memory{ttl: DefaultTTL, seen: make(map[string]time.Time), now: time.Now}
}

func (m *Memory) MarkIfNew(_ context.Context, provider, eventID string) (bool, error) {
	key := provider + ":" + eventID
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	if at, ok := m.seen[key]; ok && now.Sub(at) < m.ttl {
		return false, nil
	}
	m.seen[key] = now
	if len(m.seen)%1024 == 0 {
		m.prune(now)
	}
	return true, nil
}

func (m *Memory) prune(now time.Time) {
	for k, at := range m.seen {
		if now.Sub(at) >= m.ttl {
			delete(m.seen, k)
		}
	}
}
