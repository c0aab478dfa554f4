// Package frame defines the frame model and the Store interface through
// which the collector and migration engine observe the frame tree.
//
// Frame existence, parent/child linkage, and state transitions are owned
// by an external frame store. This package is read-only over that store
// except for the single MarkCollected write-back.
package frame

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Common errors returned by Store implementations.
var (
	// ErrFrameNotFound is returned when the requested frame does not exist.
	ErrFrameNotFound = errors.New("frame: not found")

	// ErrStoreClosed is returned when operations are attempted on a closed store.
	ErrStoreClosed = errors.New("frame: store closed")
)

// State is the lifecycle state of a frame.
// Transitions are monotonic: once closed, a frame never reopens.
type State string

const (
	// StateActive marks a frame whose unit of work is still in progress.
	StateActive State = "active"
	// StateClosed marks a finished frame.
	StateClosed State = "closed"
)

// Frame is one node in the hierarchical work record.
// Frames form a forest: ParentID is empty only for roots, and Depth is
// exactly the parent's depth plus one.
type Frame struct {
	ID        string         `json:"id"`
	ParentID  string         `json:"parentId,omitempty"`
	Depth     int            `json:"depth"`
	State     State          `json:"state"`
	CreatedAt time.Time      `json:"createdAt"`
	Outputs   map[string]any `json:"outputs,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`

	// Collected is true once the frame's locally-held detail has been
	// dropped by the collector. Set via Store.MarkCollected only.
	Collected bool `json:"collected,omitempty"`
}

// Encode serializes the frame for durable storage.
func (f *Frame) Encode() ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("frame: encode %s: %w", f.ID, err)
	}
	return data, nil
}

// Decode deserializes a frame from its durable form.
func Decode(data []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("frame: decode: %w", err)
	}
	return &f, nil
}

// ListFilter restricts a ListFrames call.
// AfterID and Limit give callers a stable scan cursor: results are
// ordered by frame ID and start strictly after AfterID.
type ListFilter struct {
	AfterID string
	Limit   int
	State   State // empty matches all states
}

// Store is the read interface over the external frame store, plus the
// one write-back the collector performs.
//
// Thread Safety: implementations must be safe for concurrent use.
type Store interface {
	// ListFrames returns frames matching the filter, ordered by ID.
	ListFrames(ctx context.Context, filter ListFilter) ([]*Frame, error)

	// GetFrame returns a frame by ID.
	// Returns ErrFrameNotFound if the frame does not exist.
	GetFrame(ctx context.Context, id string) (*Frame, error)

	// Count returns the total number of frames.
	Count(ctx context.Context) (int, error)

	// IsProtected reports whether the frame is active or is an ancestor
	// of any active frame. Protected frames are never collected.
	IsProtected(ctx context.Context, id string) (bool, error)

	// MarkCollected records that the frame's local detail has been
	// dropped. The frame itself, and its durable representation, remain.
	MarkCollected(ctx context.Context, id string) error
}
