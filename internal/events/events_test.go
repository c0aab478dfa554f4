package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent(t *testing.T) {
	e := NewEvent(TypeFrameCollected, "frame-1")

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, TypeFrameCollected, e.Type)
	assert.Equal(t, "frame-1", e.FrameID)
	assert.False(t, e.Timestamp.IsZero())
}

func TestEventEncode(t *testing.T) {
	e := NewEvent(TypeMigrationCompleted, "frame-9")
	e.Tier = "old"
	e.Fields = map[string]string{"from": "mature"}

	data, err := e.Encode()
	require.NoError(t, err)

	var decoded Event
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, e.ID, decoded.ID)
	assert.Equal(t, "old", decoded.Tier)
	assert.Equal(t, "mature", decoded.Fields["from"])
}

func TestCapturePublisher(t *testing.T) {
	p := NewCapturePublisher()

	require.NoError(t, p.Publish(context.Background(), NewEvent(TypeFrameCollected, "a")))
	require.NoError(t, p.Publish(context.Background(), NewEvent(TypeMigrationCompleted, "b")))
	require.NoError(t, p.Publish(context.Background(), NewEvent(TypeFrameCollected, "c")))

	assert.Len(t, p.Events(), 3)
	assert.Len(t, p.ByType(TypeFrameCollected), 2)
	require.NoError(t, p.Close())
}

func TestNopPublisher(t *testing.T) {
	var p NopPublisher
	assert.NoError(t, p.Publish(context.Background(), NewEvent(TypeGCCycleCompleted, "")))
	assert.NoError(t, p.Close())
}
