// Package events publishes operational events emitted by the collector
// and the migration engine. Downstream consumers (audit pipelines,
// billing, session timelines) subscribe to the event topic; the daemon
// itself never reads it back.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the daemon.
const (
	TypeFrameCollected     = "frame.collected"
	TypeMigrationCompleted = "migration.completed"
	TypeMigrationFailed    = "migration.failed"
	TypeGCCycleCompleted   = "gc.cycle_completed"
)

// Event is a single operational event. FrameID is empty for
// cycle-level events.
type Event struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	FrameID   string            `json:"frame_id,omitempty"`
	Tier      string            `json:"tier,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// NewEvent creates an event with a fresh ID and the current time.
func NewEvent(eventType, frameID string) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		FrameID:   frameID,
		Timestamp: time.Now().UTC(),
	}
}

// Encode serializes the event for the wire.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher delivers events to an external sink. Publish is best-effort
// from the caller's perspective: the engine logs delivery failures but
// never fails a migration or a GC cycle because of one.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NopPublisher discards all events. Used when event publishing is
// disabled in the configuration.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }
