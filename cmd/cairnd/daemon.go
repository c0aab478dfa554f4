package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cairn-io/cairn/internal/backend"
	"github.com/cairn-io/cairn/internal/codec"
	"github.com/cairn-io/cairn/internal/config"
	"github.com/cairn-io/cairn/internal/events"
	"github.com/cairn-io/cairn/internal/frame"
	"github.com/cairn-io/cairn/internal/gc"
	"github.com/cairn-io/cairn/internal/journal"
	"github.com/cairn-io/cairn/internal/logging"
	"github.com/cairn-io/cairn/internal/metadata"
	"github.com/cairn-io/cairn/internal/metadata/oxia"
	"github.com/cairn-io/cairn/internal/metrics"
	"github.com/cairn-io/cairn/internal/migrate"
	"github.com/cairn-io/cairn/internal/objectstore"
	"github.com/cairn-io/cairn/internal/objectstore/s3"
	"github.com/cairn-io/cairn/internal/tier"
)

// DaemonOptions contains configuration for the daemon.
type DaemonOptions struct {
	Config  *config.Config
	Logger  *logging.Logger
	Version string
}

// Daemon owns the collector, the migration engine and their supporting
// infrastructure: metadata store, object store, journal, metrics server
// and optional event publisher.
type Daemon struct {
	config *config.Config
	logger *logging.Logger

	meta      metadata.Store
	objects   objectstore.Store
	queue     *journal.Queue
	engine    *migrate.Engine
	sweeper   *migrate.Sweeper
	collector *gc.Collector
	metrics   *metrics.Server
	publisher events.Publisher
}

// NewDaemon wires all components from the configuration. Unconfigured
// tier backends leave their tiers unavailable rather than failing
// startup; the metadata store is required because it holds the frame
// tree itself.
func NewDaemon(opts DaemonOptions) (*Daemon, error) {
	cfg := opts.Config
	logger := opts.Logger
	ctx := context.Background()

	if cfg.Metadata.OxiaEndpoint == "" {
		return nil, errors.New("metadata.oxiaEndpoint is required")
	}
	meta, err := oxia.New(ctx, oxia.Config{
		ServiceAddress: cfg.Metadata.OxiaEndpoint,
		Namespace:      cfg.Metadata.Namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to metadata store: %w", err)
	}

	migrationMetrics := metrics.NewMigrationMetrics()
	gcMetrics := metrics.NewGCMetrics()

	// Object storage is optional: without it the old and remote tiers
	// report unavailable and frames stay on the warmer tiers.
	var objects objectstore.Store
	if cfg.ObjectStore.Bucket != "" {
		s3Store, err := s3.New(ctx, s3.Config{
			Bucket:          cfg.ObjectStore.Bucket,
			Region:          cfg.ObjectStore.Region,
			Endpoint:        cfg.ObjectStore.Endpoint,
			AccessKeyID:     cfg.ObjectStore.AccessKey,
			SecretAccessKey: cfg.ObjectStore.SecretKey,
			UsePathStyle:    cfg.ObjectStore.UsePathStyle,
		})
		if err != nil {
			meta.Close()
			return nil, fmt.Errorf("connecting to object store: %w", err)
		}
		objects = objectstore.NewInstrumentedStore(s3Store, objectStoreMetrics{migrationMetrics})
	} else {
		logger.Warn("object store not configured; old and remote tiers unavailable")
	}

	registry, err := buildBackends(cfg, meta, objects)
	if err != nil {
		meta.Close()
		return nil, err
	}

	codecs, err := codec.NewRegistry(codec.Config{
		MatureCodec: cfg.Tiers.Compression.MatureCodec,
		OldCodec:    cfg.Tiers.Compression.OldCodec,
	})
	if err != nil {
		meta.Close()
		return nil, err
	}

	classifier, err := tier.NewClassifier(tier.Boundaries{
		YoungDays:  cfg.Tiers.Boundaries.YoungDays,
		MatureDays: cfg.Tiers.Boundaries.MatureDays,
		OldDays:    cfg.Tiers.Boundaries.OldDays,
	})
	if err != nil {
		meta.Close()
		return nil, err
	}

	queue, err := journal.Open(cfg.Journal.Path, journal.Config{
		AttemptCeiling: cfg.Migration.AttemptCeiling,
	})
	if err != nil {
		meta.Close()
		return nil, fmt.Errorf("opening journal: %w", err)
	}

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.Events.Enabled {
		kafka, err := events.NewKafkaPublisher(events.KafkaConfig{
			Brokers: cfg.Events.Brokers,
			Topic:   cfg.Events.Topic,
		}, logger)
		if err != nil {
			queue.Close()
			meta.Close()
			return nil, fmt.Errorf("connecting event publisher: %w", err)
		}
		publisher = kafka
	}

	frames := frame.NewKVStore(meta)

	engine, err := migrate.New(migrate.Options{
		Frames:         frames,
		Backends:       registry,
		Codecs:         codecs,
		Classifier:     classifier,
		Journal:        queue,
		Metrics:        migrationMetrics,
		Logger:         logger,
		Events:         publisher,
		OpTimeout:      time.Duration(cfg.Migration.BackendTimeoutMs) * time.Millisecond,
		Retries:        cfg.Migration.BackendRetries,
		SweepBatchSize: cfg.Migration.SweepBatchSize,
	})
	if err != nil {
		queue.Close()
		meta.Close()
		return nil, err
	}

	collector, err := gc.New(gc.Options{
		Frames:     frames,
		Classifier: classifier,
		Objects:    engine,
		Config: gc.Config{
			CycleInterval:  time.Duration(cfg.GC.CycleIntervalMs) * time.Millisecond,
			FramesPerCycle: cfg.GC.FramesPerCycle,
			MaxAge:         time.Duration(cfg.GC.MaxAgeDays) * 24 * time.Hour,
		},
		Metrics: gcMetrics,
		Logger:  logger,
		Events:  publisher,
	})
	if err != nil {
		queue.Close()
		meta.Close()
		return nil, err
	}

	return &Daemon{
		config:    cfg,
		logger:    logger,
		meta:      meta,
		objects:   objects,
		queue:     queue,
		engine:    engine,
		sweeper:   migrate.NewSweeper(engine, time.Duration(cfg.Migration.SweepIntervalMs)*time.Millisecond),
		collector: collector,
		metrics:   metrics.NewServer(cfg.Observability.MetricsAddr),
		publisher: publisher,
	}, nil
}

// buildBackends assembles the per-tier adapter registry. Nil stores
// yield unavailable adapters for their tiers.
func buildBackends(cfg *config.Config, meta metadata.Store, objects objectstore.Store) (*backend.Registry, error) {
	ttl := time.Duration(cfg.Cache.TTLMs) * time.Millisecond
	return backend.NewRegistry(
		backend.NewMemoryAdapter(ttl),
		backend.NewKVAdapter(meta),
		backend.NewObjectAdapter(objects),
		backend.NewArchiveAdapter(objects, cfg.ObjectStore.ArchiveClass),
	)
}

// Start brings up the metrics server and the background workers, then
// blocks until the context is cancelled.
func (d *Daemon) Start(ctx context.Context) error {
	if err := d.metrics.Start(); err != nil {
		return fmt.Errorf("starting metrics server: %w", err)
	}
	d.logger.Infof("metrics server listening", map[string]any{"addr": d.metrics.Addr()})

	d.sweeper.Start()
	d.collector.Start()
	d.logger.Infof("daemon started", map[string]any{
		"version": version,
		"journal": d.config.Journal.Path,
	})

	<-ctx.Done()
	return nil
}

// Shutdown stops the workers, letting in-flight work finish, then
// releases every resource.
func (d *Daemon) Shutdown(ctx context.Context) error {
	d.collector.Stop()
	d.sweeper.Stop()

	var errs []error
	if err := d.metrics.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stopping metrics server: %w", err))
	}
	if err := d.publisher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing event publisher: %w", err))
	}
	if err := d.queue.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing journal: %w", err))
	}
	if d.objects != nil {
		if err := d.objects.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing object store: %w", err))
		}
	}
	if err := d.meta.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing metadata store: %w", err))
	}
	return errors.Join(errs...)
}

// objectStoreMetrics adapts migration metrics to the object store
// instrumentation hook.
type objectStoreMetrics struct {
	m *metrics.MigrationMetrics
}

// Labeled separately from the engine's tier-level timings, which
// already cover these calls end to end.
func (o objectStoreMetrics) RecordPut(durationSeconds float64, _ bool, _ int64) {
	o.m.OpLatency.WithLabelValues("s3_put").Observe(durationSeconds)
}

func (o objectStoreMetrics) RecordGet(durationSeconds float64, _ bool) {
	o.m.OpLatency.WithLabelValues("s3_get").Observe(durationSeconds)
}

func (o objectStoreMetrics) RecordDelete(durationSeconds float64, _ bool) {
	o.m.OpLatency.WithLabelValues("s3_delete").Observe(durationSeconds)
}
