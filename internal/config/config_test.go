package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	assert.Equal(t, int64(60000), cfg.GC.CycleIntervalMs)
	assert.Equal(t, 100, cfg.GC.FramesPerCycle)
	assert.Equal(t, 1, cfg.Tiers.Boundaries.YoungDays)
	assert.Equal(t, 7, cfg.Tiers.Boundaries.MatureDays)
	assert.Equal(t, 30, cfg.Tiers.Boundaries.OldDays)
	assert.Equal(t, "snappy", cfg.Tiers.Compression.MatureCodec)
	assert.Equal(t, "zstd", cfg.Tiers.Compression.OldCodec)
	assert.False(t, cfg.Events.Enabled)

	require.NoError(t, cfg.Validate())
}

func TestLoadFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cairn.yaml")
	data := []byte(`
gc:
  cycleIntervalMs: 5000
  framesPerCycle: 25
tiers:
  boundaries:
    youngDays: 2
    matureDays: 10
    oldDays: 60
  compression:
    matureCodec: lz4
journal:
  path: /var/lib/cairn/journal.log
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, int64(5000), cfg.GC.CycleIntervalMs)
	assert.Equal(t, 25, cfg.GC.FramesPerCycle)
	assert.Equal(t, 2, cfg.Tiers.Boundaries.YoungDays)
	assert.Equal(t, 60, cfg.Tiers.Boundaries.OldDays)
	assert.Equal(t, "lz4", cfg.Tiers.Compression.MatureCodec)
	assert.Equal(t, "/var/lib/cairn/journal.log", cfg.Journal.Path)
	// Untouched sections keep defaults.
	assert.Equal(t, int64(300000), cfg.Migration.SweepIntervalMs)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CAIRN_GC_FRAMES_PER_CYCLE", "42")
	t.Setenv("CAIRN_S3_BUCKET", "cairn-frames")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 42, cfg.GC.FramesPerCycle)
	assert.Equal(t, "cairn-frames", cfg.ObjectStore.Bucket)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero cycle interval", func(c *Config) { c.GC.CycleIntervalMs = 0 }},
		{"negative budget", func(c *Config) { c.GC.FramesPerCycle = -1 }},
		{"non-increasing boundaries", func(c *Config) { c.Tiers.Boundaries.MatureDays = 1 }},
		{"unknown mature codec", func(c *Config) { c.Tiers.Compression.MatureCodec = "gzip" }},
		{"empty journal path", func(c *Config) { c.Journal.Path = "" }},
		{"events without brokers", func(c *Config) { c.Events.Enabled = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
