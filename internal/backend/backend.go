// Package backend provides a uniform adapter contract over the storage
// backends that serve each tier: an in-memory TTL cache (young), a
// time-indexed key-value store (mature), and object storage in standard
// and archive classes (old, remote).
//
// Adapters for tiers whose backend is not configured report themselves
// unavailable instead of failing construction, so a partially configured
// daemon still starts and serves the tiers it can.
package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/cairn-io/cairn/internal/tier"
)

// Common errors returned by Adapter implementations.
var (
	// ErrNotFound is returned when no payload exists for the key.
	ErrNotFound = errors.New("backend: not found")

	// ErrUnavailable is returned when the tier's backend is not configured.
	ErrUnavailable = errors.New("backend: unavailable")
)

// Adapter is the uniform read/write/delete contract over one tier's backend.
//
// Thread Safety: implementations must be safe for concurrent use.
type Adapter interface {
	// Tier returns the tier this adapter serves.
	Tier() tier.Tier

	// Put stores a payload under the key.
	Put(ctx context.Context, key string, payload []byte) error

	// Get retrieves a payload. Returns ErrNotFound when absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes a payload. Deleting a missing key succeeds.
	Delete(ctx context.Context, key string) error

	// Available reports whether the backend is configured and usable.
	Available() bool
}

// Registry holds one adapter per tier.
type Registry struct {
	adapters map[tier.Tier]Adapter
}

// NewRegistry builds a registry from the given adapters.
// Every adapter's tier must be distinct.
func NewRegistry(adapters ...Adapter) (*Registry, error) {
	m := make(map[tier.Tier]Adapter, len(adapters))
	for _, a := range adapters {
		if _, dup := m[a.Tier()]; dup {
			return nil, fmt.Errorf("backend: duplicate adapter for tier %q", a.Tier())
		}
		m[a.Tier()] = a
	}
	return &Registry{adapters: m}, nil
}

// For returns the adapter serving the given tier.
func (r *Registry) For(t tier.Tier) (Adapter, error) {
	a, ok := r.adapters[t]
	if !ok {
		return nil, fmt.Errorf("backend: no adapter for tier %q", t)
	}
	return a, nil
}

// ProbeOrder returns the registered adapters from hottest to coldest.
// Retrieval walks this order and returns the first hit.
func (r *Registry) ProbeOrder() []Adapter {
	var out []Adapter
	for _, t := range tier.All {
		if a, ok := r.adapters[t]; ok {
			out = append(out, a)
		}
	}
	return out
}
