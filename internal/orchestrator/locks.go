package orchestrator

import "sync"

// envelopeLocks serializes mutators per envelope id. Entries are refcounted
// and removed when the last holder releases, so the map does not grow with
// envelope count. Operations on different envelopes never contend.
type envelopeLocks struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newEnvelopeLocks() *envelopeLocks {
	return &envelopeLocks{locks: make(map[string]*lockEntry)}
}

// acquire blocks until the per-envelope lock is held and returns the release
// function. Callers must not hold the lock across provider calls.
func (l *envelopeLocks) acquire(id string) func() {
	l.mu.Lock()
	e, ok := l.locks[id]
	if !ok {
		e = &lockEntry{}
		l.locks[id] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
