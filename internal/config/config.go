// Package config provides configuration loading and validation for cairnd.
// Supports YAML files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for a cairn daemon.
type Config struct {
	GC            GCConfig            `yaml:"gc"`
	Migration     MigrationConfig     `yaml:"migration"`
	Tiers         TiersConfig         `yaml:"tiers"`
	Journal       JournalConfig       `yaml:"journal"`
	Cache         CacheConfig         `yaml:"cache"`
	Metadata      MetadataConfig      `yaml:"metadata"`
	ObjectStore   ObjectStoreConfig   `yaml:"objectStore"`
	Events        EventsConfig        `yaml:"events"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// GCConfig configures the incremental garbage collector.
type GCConfig struct {
	CycleIntervalMs int64 `yaml:"cycleIntervalMs" env:"CAIRN_GC_CYCLE_INTERVAL_MS"`
	FramesPerCycle  int   `yaml:"framesPerCycle" env:"CAIRN_GC_FRAMES_PER_CYCLE"`
	MaxAgeDays      int   `yaml:"maxAgeDays" env:"CAIRN_GC_MAX_AGE_DAYS"`
}

// MigrationConfig configures the tier migration engine.
type MigrationConfig struct {
	SweepIntervalMs  int64 `yaml:"sweepIntervalMs" env:"CAIRN_SWEEP_INTERVAL_MS"`
	SweepBatchSize   int   `yaml:"sweepBatchSize" env:"CAIRN_SWEEP_BATCH_SIZE"`
	BackendTimeoutMs int64 `yaml:"backendTimeoutMs" env:"CAIRN_BACKEND_TIMEOUT_MS"`
	BackendRetries   int   `yaml:"backendRetries" env:"CAIRN_BACKEND_RETRIES"`
	AttemptCeiling   int   `yaml:"attemptCeiling" env:"CAIRN_ATTEMPT_CEILING"`
}

// TiersConfig configures tier boundaries and per-tier compression.
type TiersConfig struct {
	Boundaries  BoundariesConfig  `yaml:"boundaries"`
	Compression CompressionConfig `yaml:"compression"`
}

// BoundariesConfig holds the age boundaries between tiers, in days.
type BoundariesConfig struct {
	YoungDays  int `yaml:"youngDays" env:"CAIRN_TIER_YOUNG_DAYS"`
	MatureDays int `yaml:"matureDays" env:"CAIRN_TIER_MATURE_DAYS"`
	OldDays    int `yaml:"oldDays" env:"CAIRN_TIER_OLD_DAYS"`
}

// CompressionConfig selects codecs for the compressed tiers.
// The young tier is always uncompressed and the remote tier always
// uses the maximum-ratio codec.
type CompressionConfig struct {
	MatureCodec string `yaml:"matureCodec" env:"CAIRN_MATURE_CODEC"`
	OldCodec    string `yaml:"oldCodec" env:"CAIRN_OLD_CODEC"`
}

// JournalConfig configures the durable migration job log.
type JournalConfig struct {
	Path string `yaml:"path" env:"CAIRN_JOURNAL_PATH"`
}

// CacheConfig configures the in-memory young tier.
type CacheConfig struct {
	TTLMs int64 `yaml:"ttlMs" env:"CAIRN_CACHE_TTL_MS"`
}

// MetadataConfig configures the Oxia-backed mature tier store.
type MetadataConfig struct {
	OxiaEndpoint string `yaml:"oxiaEndpoint" env:"CAIRN_OXIA_ENDPOINT"`
	Namespace    string `yaml:"namespace" env:"CAIRN_OXIA_NAMESPACE"`
}

// ObjectStoreConfig configures the S3-compatible old and remote tiers.
type ObjectStoreConfig struct {
	Endpoint     string `yaml:"endpoint" env:"CAIRN_S3_ENDPOINT"`
	Bucket       string `yaml:"bucket" env:"CAIRN_S3_BUCKET"`
	Region       string `yaml:"region" env:"CAIRN_S3_REGION"`
	AccessKey    string `yaml:"accessKey" env:"CAIRN_S3_ACCESS_KEY"`
	SecretKey    string `yaml:"secretKey" env:"CAIRN_S3_SECRET_KEY"`
	ArchiveClass string `yaml:"archiveClass" env:"CAIRN_S3_ARCHIVE_CLASS"`
	UsePathStyle bool   `yaml:"usePathStyle" env:"CAIRN_S3_PATH_STYLE"`
}

// EventsConfig configures the optional Kafka event stream.
type EventsConfig struct {
	Enabled bool     `yaml:"enabled" env:"CAIRN_EVENTS_ENABLED"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic" env:"CAIRN_EVENTS_TOPIC"`
}

// ObservabilityConfig configures metrics and logging.
type ObservabilityConfig struct {
	MetricsAddr string `yaml:"metricsAddr" env:"CAIRN_METRICS_ADDR"`
	LogLevel    string `yaml:"logLevel" env:"CAIRN_LOG_LEVEL"`
	LogFormat   string `yaml:"logFormat" env:"CAIRN_LOG_FORMAT"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		GC: GCConfig{
			CycleIntervalMs: 60000, // 1 minute
			FramesPerCycle:  100,
			MaxAgeDays:      30,
		},
		Migration: MigrationConfig{
			SweepIntervalMs:  300000, // 5 minutes
			SweepBatchSize:   200,
			BackendTimeoutMs: 10000,
			BackendRetries:   2,
			AttemptCeiling:   5,
		},
		Tiers: TiersConfig{
			Boundaries: BoundariesConfig{
				YoungDays:  1,
				MatureDays: 7,
				OldDays:    30,
			},
			Compression: CompressionConfig{
				MatureCodec: "snappy",
				OldCodec:    "zstd",
			},
		},
		Journal: JournalConfig{
			Path: "cairn-journal.log",
		},
		Cache: CacheConfig{
			TTLMs: 24 * 60 * 60 * 1000, // young tier TTL, 1 day
		},
		Metadata: MetadataConfig{
			OxiaEndpoint: "localhost:6648",
			Namespace:    "cairn",
		},
		ObjectStore: ObjectStoreConfig{
			Region:       "us-east-1",
			ArchiveClass: "DEEP_ARCHIVE",
		},
		Events: EventsConfig{
			Topic: "cairn.events",
		},
		Observability: ObservabilityConfig{
			MetricsAddr: ":9090",
			LogLevel:    "info",
			LogFormat:   "json",
		},
	}
}

// Load returns the default configuration with environment overrides applied.
func Load() (*Config, error) {
	cfg := Default()
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a YAML file, then applies
// environment overrides and validates.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for invalid values.
// Invalid values are rejected here, before any component is constructed.
func (c *Config) Validate() error {
	if c.GC.CycleIntervalMs <= 0 {
		return fmt.Errorf("config: gc.cycleIntervalMs must be positive, got %d", c.GC.CycleIntervalMs)
	}
	if c.GC.FramesPerCycle <= 0 {
		return fmt.Errorf("config: gc.framesPerCycle must be positive, got %d", c.GC.FramesPerCycle)
	}
	if c.GC.MaxAgeDays <= 0 {
		return fmt.Errorf("config: gc.maxAgeDays must be positive, got %d", c.GC.MaxAgeDays)
	}
	if c.Migration.SweepIntervalMs <= 0 {
		return fmt.Errorf("config: migration.sweepIntervalMs must be positive, got %d", c.Migration.SweepIntervalMs)
	}
	if c.Migration.AttemptCeiling <= 0 {
		return fmt.Errorf("config: migration.attemptCeiling must be positive, got %d", c.Migration.AttemptCeiling)
	}
	b := c.Tiers.Boundaries
	if b.YoungDays <= 0 || b.MatureDays <= b.YoungDays || b.OldDays <= b.MatureDays {
		return fmt.Errorf("config: tier boundaries must be strictly increasing, got %d/%d/%d",
			b.YoungDays, b.MatureDays, b.OldDays)
	}
	switch c.Tiers.Compression.MatureCodec {
	case "snappy", "lz4":
	default:
		return fmt.Errorf("config: unknown mature codec %q", c.Tiers.Compression.MatureCodec)
	}
	switch c.Tiers.Compression.OldCodec {
	case "zstd":
	default:
		return fmt.Errorf("config: unknown old codec %q", c.Tiers.Compression.OldCodec)
	}
	if c.Journal.Path == "" {
		return fmt.Errorf("config: journal.path is required")
	}
	if c.Events.Enabled && len(c.Events.Brokers) == 0 {
		return fmt.Errorf("config: events.brokers is required when events are enabled")
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	overrideString(&c.Journal.Path, "CAIRN_JOURNAL_PATH")
	overrideString(&c.Metadata.OxiaEndpoint, "CAIRN_OXIA_ENDPOINT")
	overrideString(&c.Metadata.Namespace, "CAIRN_OXIA_NAMESPACE")
	overrideString(&c.ObjectStore.Endpoint, "CAIRN_S3_ENDPOINT")
	overrideString(&c.ObjectStore.Bucket, "CAIRN_S3_BUCKET")
	overrideString(&c.ObjectStore.Region, "CAIRN_S3_REGION")
	overrideString(&c.ObjectStore.AccessKey, "CAIRN_S3_ACCESS_KEY")
	overrideString(&c.ObjectStore.SecretKey, "CAIRN_S3_SECRET_KEY")
	overrideString(&c.ObjectStore.ArchiveClass, "CAIRN_S3_ARCHIVE_CLASS")
	overrideString(&c.Tiers.Compression.MatureCodec, "CAIRN_MATURE_CODEC")
	overrideString(&c.Tiers.Compression.OldCodec, "CAIRN_OLD_CODEC")
	overrideString(&c.Events.Topic, "CAIRN_EVENTS_TOPIC")
	overrideString(&c.Observability.MetricsAddr, "CAIRN_METRICS_ADDR")
	overrideString(&c.Observability.LogLevel, "CAIRN_LOG_LEVEL")
	overrideString(&c.Observability.LogFormat, "CAIRN_LOG_FORMAT")

	overrideInt64(&c.GC.CycleIntervalMs, "CAIRN_GC_CYCLE_INTERVAL_MS")
	overrideInt(&c.GC.FramesPerCycle, "CAIRN_GC_FRAMES_PER_CYCLE")
	overrideInt(&c.GC.MaxAgeDays, "CAIRN_GC_MAX_AGE_DAYS")
	overrideInt64(&c.Migration.SweepIntervalMs, "CAIRN_SWEEP_INTERVAL_MS")
	overrideInt(&c.Migration.SweepBatchSize, "CAIRN_SWEEP_BATCH_SIZE")
	overrideInt64(&c.Migration.BackendTimeoutMs, "CAIRN_BACKEND_TIMEOUT_MS")
	overrideInt(&c.Migration.BackendRetries, "CAIRN_BACKEND_RETRIES")
	overrideInt(&c.Migration.AttemptCeiling, "CAIRN_ATTEMPT_CEILING")
	overrideInt(&c.Tiers.Boundaries.YoungDays, "CAIRN_TIER_YOUNG_DAYS")
	overrideInt(&c.Tiers.Boundaries.MatureDays, "CAIRN_TIER_MATURE_DAYS")
	overrideInt(&c.Tiers.Boundaries.OldDays, "CAIRN_TIER_OLD_DAYS")
	overrideInt64(&c.Cache.TTLMs, "CAIRN_CACHE_TTL_MS")
	overrideBool(&c.Events.Enabled, "CAIRN_EVENTS_ENABLED")
	overrideBool(&c.ObjectStore.UsePathStyle, "CAIRN_S3_PATH_STYLE")
}

func overrideString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func overrideInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func overrideInt64(dst *int64, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func overrideBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
