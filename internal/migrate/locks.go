package migrate

import "sync"

// frameLocks is a keyed mutex over frame IDs. The collector and the
// migration engine both take the frame's lock before touching its
// durable objects, so a collection and a migration of the same frame
// never interleave.
type frameLocks struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newFrameLocks() *frameLocks {
	return &frameLocks{locks: make(map[string]*lockEntry)}
}

// acquire blocks until the frame's lock is held and returns the release
// function. Entries are reference counted and removed when idle.
func (l *frameLocks) acquire(frameID string) func() {
	l.mu.Lock()
	entry, ok := l.locks[frameID]
	if !ok {
		entry = &lockEntry{}
		l.locks[frameID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, frameID)
		}
		l.mu.Unlock()
	}
}
