package frame

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cairn-io/cairn/internal/metadata"
)

func newKVStore(t *testing.T) *KVStore {
	t.Helper()
	return NewKVStore(metadata.NewMockStore())
}

func kvFrame(id, parentID string, state State) *Frame {
	return &Frame{
		ID:        id,
		ParentID:  parentID,
		State:     state,
		CreatedAt: time.Now().Add(-time.Hour),
		Outputs:   map[string]any{"k": "v"},
	}
}

func TestKVStorePutGet(t *testing.T) {
	store := newKVStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutFrame(ctx, kvFrame("f-1", "", StateActive)))

	got, err := store.GetFrame(ctx, "f-1")
	require.NoError(t, err)
	assert.Equal(t, "f-1", got.ID)
	assert.Equal(t, StateActive, got.State)

	_, err = store.GetFrame(ctx, "missing")
	assert.ErrorIs(t, err, ErrFrameNotFound)
}

func TestKVStoreListCursor(t *testing.T) {
	store := newKVStore(t)
	ctx := context.Background()

	for _, id := range []string{"f-3", "f-1", "f-2", "f-5", "f-4"} {
		require.NoError(t, store.PutFrame(ctx, kvFrame(id, "", StateClosed)))
	}

	page, err := store.ListFrames(ctx, ListFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "f-1", page[0].ID)
	assert.Equal(t, "f-2", page[1].ID)

	page, err = store.ListFrames(ctx, ListFilter{AfterID: "f-2", Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "f-3", page[0].ID)
	assert.Equal(t, "f-4", page[1].ID)

	page, err = store.ListFrames(ctx, ListFilter{AfterID: "f-4", Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "f-5", page[0].ID)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestKVStoreListStateFilter(t *testing.T) {
	store := newKVStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutFrame(ctx, kvFrame("f-a", "", StateActive)))
	require.NoError(t, store.PutFrame(ctx, kvFrame("f-b", "", StateClosed)))
	require.NoError(t, store.PutFrame(ctx, kvFrame("f-c", "", StateClosed)))

	closed, err := store.ListFrames(ctx, ListFilter{State: StateClosed})
	require.NoError(t, err)
	require.Len(t, closed, 2)
}

func TestKVStoreProtection(t *testing.T) {
	store := newKVStore(t)
	ctx := context.Background()

	// root (closed) -> mid (closed) -> leaf (active): the whole chain
	// above the active leaf is protected.
	require.NoError(t, store.PutFrame(ctx, kvFrame("a-root", "", StateClosed)))
	require.NoError(t, store.PutFrame(ctx, kvFrame("b-mid", "a-root", StateClosed)))
	require.NoError(t, store.PutFrame(ctx, kvFrame("c-leaf", "b-mid", StateActive)))
	require.NoError(t, store.PutFrame(ctx, kvFrame("d-other", "", StateClosed)))

	for _, id := range []string{"a-root", "b-mid", "c-leaf"} {
		protected, err := store.IsProtected(ctx, id)
		require.NoError(t, err)
		assert.True(t, protected, id)
	}

	protected, err := store.IsProtected(ctx, "d-other")
	require.NoError(t, err)
	assert.False(t, protected)

	// Closing the leaf releases the whole chain.
	require.NoError(t, store.CloseFrame(ctx, "c-leaf"))
	for _, id := range []string{"a-root", "b-mid", "c-leaf"} {
		protected, err := store.IsProtected(ctx, id)
		require.NoError(t, err)
		assert.False(t, protected, id)
	}
}

func TestKVStoreMarkCollected(t *testing.T) {
	store := newKVStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutFrame(ctx, kvFrame("f-1", "", StateClosed)))
	require.NoError(t, store.MarkCollected(ctx, "f-1"))

	got, err := store.GetFrame(ctx, "f-1")
	require.NoError(t, err)
	assert.True(t, got.Collected)
	assert.Nil(t, got.Outputs)

	assert.ErrorIs(t, store.MarkCollected(ctx, "missing"), ErrFrameNotFound)
}
