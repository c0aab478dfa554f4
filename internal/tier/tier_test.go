package tier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyBands(t *testing.T) {
	c, err := NewClassifier(DefaultBoundaries())
	require.NoError(t, err)

	now := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		age  time.Duration
		want Tier
	}{
		{"just created", 0, Young},
		{"hours old", 6 * time.Hour, Young},
		{"just under a day", 24*time.Hour - time.Second, Young},
		{"exactly one day", 24 * time.Hour, Mature},
		{"three days", 72 * time.Hour, Mature},
		{"just under seven days", 7*24*time.Hour - time.Second, Mature},
		{"exactly seven days", 7 * 24 * time.Hour, Old},
		{"two weeks", 14 * 24 * time.Hour, Old},
		{"just under thirty days", 30*24*time.Hour - time.Second, Old},
		{"exactly thirty days", 30 * 24 * time.Hour, Remote},
		{"a year", 365 * 24 * time.Hour, Remote},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Classify(now, now.Add(-tt.age))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyDeterministic(t *testing.T) {
	c, err := NewClassifier(DefaultBoundaries())
	require.NoError(t, err)

	now := time.Now()
	createdAt := now.Add(-50 * time.Hour)

	first, err := c.Classify(now, createdAt)
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		got, err := c.Classify(now, createdAt)
		require.NoError(t, err)
		assert.Equal(t, first, got)
	}
}

func TestClassifyMalformed(t *testing.T) {
	c, err := NewClassifier(DefaultBoundaries())
	require.NoError(t, err)

	now := time.Now()

	_, err = c.Classify(now, time.Time{})
	assert.Error(t, err)

	_, err = c.Classify(now, now.Add(time.Hour))
	assert.Error(t, err)
}

func TestCustomBoundaries(t *testing.T) {
	c, err := NewClassifier(Boundaries{YoungDays: 2, MatureDays: 10, OldDays: 60})
	require.NoError(t, err)

	now := time.Now()
	got, err := c.Classify(now, now.Add(-36*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, Young, got)

	got, err = c.Classify(now, now.Add(-9*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, Mature, got)
}

func TestNewClassifierRejectsBadBoundaries(t *testing.T) {
	_, err := NewClassifier(Boundaries{YoungDays: 7, MatureDays: 1, OldDays: 30})
	assert.Error(t, err)

	_, err = NewClassifier(Boundaries{YoungDays: 0, MatureDays: 7, OldDays: 30})
	assert.Error(t, err)
}

func TestColder(t *testing.T) {
	assert.True(t, Remote.Colder(Young))
	assert.True(t, Old.Colder(Mature))
	assert.False(t, Young.Colder(Old))
	assert.False(t, Mature.Colder(Mature))
}
