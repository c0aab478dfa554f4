package backend

import (
	"context"
	"sync"
	"time"

	"github.com/cairn-io/cairn/internal/tier"
)

// MemoryAdapter serves the young tier from process memory with a TTL.
// Entries expire lazily on read; Purge drops them eagerly.
type MemoryAdapter struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]memEntry
}

type memEntry struct {
	data      []byte
	expiresAt time.Time
}

// NewMemoryAdapter creates a young tier adapter with the given TTL.
func NewMemoryAdapter(ttl time.Duration) *MemoryAdapter {
	return &MemoryAdapter{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memEntry),
	}
}

// WithClock overrides the time source, for tests.
func (a *MemoryAdapter) WithClock(now func() time.Time) *MemoryAdapter {
	a.now = now
	return a
}

func (a *MemoryAdapter) Tier() tier.Tier { return tier.Young }

func (a *MemoryAdapter) Available() bool { return true }

func (a *MemoryAdapter) Put(_ context.Context, key string, payload []byte) error {
	cp := make([]byte, len(payload))
	copy(cp, payload)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries[key] = memEntry{data: cp, expiresAt: a.now().Add(a.ttl)}
	return nil
}

func (a *MemoryAdapter) Get(_ context.Context, key string) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	e, ok := a.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	if a.now().After(e.expiresAt) {
		delete(a.entries, key)
		return nil, ErrNotFound
	}

	cp := make([]byte, len(e.data))
	copy(cp, e.data)
	return cp, nil
}

func (a *MemoryAdapter) Delete(_ context.Context, key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.entries, key)
	return nil
}

// Purge drops all expired entries and returns how many were removed.
func (a *MemoryAdapter) Purge() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	removed := 0
	for k, e := range a.entries {
		if now.After(e.expiresAt) {
			delete(a.entries, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of live entries.
func (a *MemoryAdapter) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.entries)
}
