package main

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cairn-io/cairn/internal/config"
	"github.com/cairn-io/cairn/internal/journal"
	"github.com/cairn-io/cairn/internal/tier"
)

func testQueue(t *testing.T) *journal.Queue {
	t.Helper()
	queue, err := journal.Open(filepath.Join(t.TempDir(), "journal.log"), journal.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { queue.Close() })
	return queue
}

func TestPrintStatus(t *testing.T) {
	queue := testQueue(t)
	require.NoError(t, queue.Enqueue("f-1", tier.Young, tier.Mature, nil))

	var buf bytes.Buffer
	printStatus(&buf, config.Default(), queue)

	out := buf.String()
	assert.Contains(t, out, "pending jobs:")
	assert.Contains(t, out, "1")
	assert.Contains(t, out, "tier boundaries (days):")
	assert.Contains(t, out, "1/7/30")
	assert.Contains(t, out, "snappy")
}

func TestPrintJournal(t *testing.T) {
	queue := testQueue(t)
	require.NoError(t, queue.Enqueue("f-live", tier.Young, tier.Mature, nil))

	// Drive one job past the attempt ceiling.
	require.NoError(t, queue.Enqueue("f-dead", tier.Mature, tier.Old, nil))
	for range [5]int{} {
		require.NoError(t, queue.MarkFailed("f-dead:old", errors.New("bucket gone"), false))
	}

	var buf bytes.Buffer
	printJournal(&buf, queue, false)
	out := buf.String()
	assert.Contains(t, out, "f-live:mature")
	assert.Contains(t, out, "f-dead:old")
	assert.Contains(t, out, "failed_permanent")
	assert.Contains(t, out, "bucket gone")

	buf.Reset()
	printJournal(&buf, queue, true)
	out = buf.String()
	assert.False(t, strings.Contains(out, "f-live:mature"))
	assert.Contains(t, out, "f-dead:old")
}
