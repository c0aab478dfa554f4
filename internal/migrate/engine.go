// Package migrate implements the tier migration engine.
//
// The engine owns every durable copy of a frame: it stores frames into
// the backend matching their age tier, moves them between tiers as they
// age, and retrieves them by probing tiers from hottest to coldest. The
// classifier shared with the collector is the single authority on where
// a frame belongs, so storage placement and collection eligibility can
// never disagree.
//
// A migration is copy-then-delete: the target write must succeed before
// the source object is removed, so a frame always has at least one
// durable copy. Failed transitions are handed to the journal and
// retried with backoff; they are never dropped.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cairn-io/cairn/internal/backend"
	"github.com/cairn-io/cairn/internal/codec"
	"github.com/cairn-io/cairn/internal/events"
	"github.com/cairn-io/cairn/internal/frame"
	"github.com/cairn-io/cairn/internal/journal"
	"github.com/cairn-io/cairn/internal/logging"
	"github.com/cairn-io/cairn/internal/metrics"
	"github.com/cairn-io/cairn/internal/tier"
)

// StorageObject records one durable copy of a frame. A frame has at most
// one object per tier, and outside of an in-progress migration exactly
// one object overall.
type StorageObject struct {
	FrameID      string
	Tier         tier.Tier
	Codec        string
	PayloadBytes int64
	WrittenAt    time.Time
	BackendKey   string
}

// Options configures an Engine. Frames, Backends, Codecs, Classifier
// and Journal are required.
type Options struct {
	Frames     frame.Store
	Backends   *backend.Registry
	Codecs     *codec.Registry
	Classifier *tier.Classifier
	Journal    *journal.Queue

	Metrics *metrics.MigrationMetrics
	Logger  *logging.Logger
	Events  events.Publisher

	// OpTimeout bounds a single backend call on the young, mature and
	// old tiers. Default: 5s.
	OpTimeout time.Duration

	// ArchiveTimeout bounds backend calls on the remote tier, whose
	// archive storage class may take much longer to respond. Default: 1h.
	ArchiveTimeout time.Duration

	// Retries is the number of additional attempts after a failed
	// backend call. Default: 2.
	Retries int

	// SweepBatchSize bounds the frames examined per sweep. Default: 100.
	SweepBatchSize int

	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// Snapshot is a point-in-time view of the engine's storage state.
type Snapshot struct {
	TotalObjects      int
	StorageBytes      int64
	AvgLatencyMs      float64
	P50LatencyMs      float64
	P99LatencyMs      float64
	TierDistribution  map[tier.Tier]int
	MigrationsPending int
	LastMigration     time.Time
}

// Engine stores, migrates and retrieves frame payloads across tiers.
//
// Thread Safety: safe for concurrent use.
type Engine struct {
	frames     frame.Store
	backends   *backend.Registry
	codecs     *codec.Registry
	classifier *tier.Classifier
	journal    *journal.Queue

	metrics *metrics.MigrationMetrics
	latency *metrics.LatencyWindow
	logger  *logging.Logger
	events  events.Publisher

	opTimeout      time.Duration
	archiveTimeout time.Duration
	retries        int
	batchSize      int
	clock          func() time.Time

	locks *frameLocks

	mu            sync.Mutex
	objects       map[string]map[tier.Tier]StorageObject
	cursor        string
	lastMigration time.Time

	// storeRequests carries frame IDs the collector found without a
	// durable object; the next sweep stores them first.
	storeRequests chan string
}

// New creates an Engine from the given options.
func New(opts Options) (*Engine, error) {
	if opts.Frames == nil || opts.Backends == nil || opts.Codecs == nil ||
		opts.Classifier == nil || opts.Journal == nil {
		return nil, errors.New("migrate: frames, backends, codecs, classifier and journal are required")
	}

	if opts.OpTimeout <= 0 {
		opts.OpTimeout = 5 * time.Second
	}
	if opts.ArchiveTimeout <= 0 {
		opts.ArchiveTimeout = time.Hour
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	} else if opts.Retries == 0 {
		opts.Retries = 2
	}
	if opts.SweepBatchSize <= 0 {
		opts.SweepBatchSize = 100
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logging.DefaultLogger()
	}
	if opts.Events == nil {
		opts.Events = events.NopPublisher{}
	}

	return &Engine{
		frames:         opts.Frames,
		backends:       opts.Backends,
		codecs:         opts.Codecs,
		classifier:     opts.Classifier,
		journal:        opts.Journal,
		metrics:        opts.Metrics,
		latency:        metrics.NewLatencyWindow(4096),
		logger:         opts.Logger.With(map[string]any{"component": "migrate"}),
		events:         opts.Events,
		opTimeout:      opts.OpTimeout,
		archiveTimeout: opts.ArchiveTimeout,
		retries:        opts.Retries,
		batchSize:      opts.SweepBatchSize,
		clock:          opts.Clock,
		locks:          newFrameLocks(),
		objects:        make(map[string]map[tier.Tier]StorageObject),
		storeRequests:  make(chan string, 1024),
	}, nil
}

// LockFrame takes the frame's migration lock and returns the release
// function. The collector holds this lock while collecting a frame.
func (e *Engine) LockFrame(frameID string) func() {
	return e.locks.acquire(frameID)
}

// RequestStore asks the engine to store the frame on its next sweep.
// Used by the collector when a collectable frame has no durable object
// yet. Non-blocking; a full request buffer drops the hint, which the
// regular sweep scan recovers.
func (e *Engine) RequestStore(frameID string) {
	select {
	case e.storeRequests <- frameID:
	default:
	}
}

// StoreFrame writes the frame to the backend for its current age tier
// and records the storage object. Storing a frame that already has an
// object at that tier overwrites it in place.
func (e *Engine) StoreFrame(ctx context.Context, f *frame.Frame) (StorageObject, error) {
	t, err := e.classifier.Classify(e.clock(), f.CreatedAt)
	if err != nil {
		return StorageObject{}, fmt.Errorf("migrate: classify %s: %w", f.ID, err)
	}

	release := e.locks.acquire(f.ID)
	defer release()

	return e.storeAt(ctx, f, t)
}

// storeAt writes the frame at the given tier. Caller holds the frame lock.
func (e *Engine) storeAt(ctx context.Context, f *frame.Frame, t tier.Tier) (StorageObject, error) {
	raw, err := f.Encode()
	if err != nil {
		return StorageObject{}, err
	}

	c, err := e.codecs.ForTier(t)
	if err != nil {
		return StorageObject{}, err
	}
	compressed, err := c.Encode(raw)
	if err != nil {
		return StorageObject{}, err
	}
	payload, err := encodeEnvelope(c.Name(), compressed)
	if err != nil {
		return StorageObject{}, err
	}

	adapter, err := e.backends.For(t)
	if err != nil {
		return StorageObject{}, err
	}

	start := e.clock()
	if err := e.putWithRetry(ctx, adapter, f.ID, payload); err != nil {
		return StorageObject{}, fmt.Errorf("migrate: store %s at %s: %w", f.ID, t, err)
	}
	e.observeOp("put", start)

	obj := StorageObject{
		FrameID:      f.ID,
		Tier:         t,
		Codec:        c.Name(),
		PayloadBytes: int64(len(payload)),
		WrittenAt:    e.clock(),
		BackendKey:   f.ID,
	}
	e.recordObject(obj)
	return obj, nil
}

// RetrieveFrame probes tiers from hottest to coldest and returns the
// first copy found. Returns (nil, nil) when the frame is absent from
// every tier.
func (e *Engine) RetrieveFrame(ctx context.Context, frameID string) (*frame.Frame, error) {
	var lastErr error
	for _, adapter := range e.backends.ProbeOrder() {
		if !adapter.Available() {
			continue
		}

		start := e.clock()
		payload, err := e.getWithRetry(ctx, adapter, frameID)
		if errors.Is(err, backend.ErrNotFound) {
			continue
		}
		if err != nil {
			lastErr = fmt.Errorf("migrate: retrieve %s from %s: %w", frameID, adapter.Tier(), err)
			continue
		}
		e.observeOp("get", start)

		f, obj, err := e.decodePayload(frameID, adapter.Tier(), payload)
		if err != nil {
			return nil, err
		}
		e.recordObject(obj)
		return f, nil
	}
	return nil, lastErr
}

// HasObjectAt reports whether a durable object exists for the frame at
// the given tier. The collector calls this before dropping local detail.
func (e *Engine) HasObjectAt(ctx context.Context, frameID string, t tier.Tier) (bool, error) {
	e.mu.Lock()
	_, known := e.objects[frameID][t]
	e.mu.Unlock()
	if known {
		return true, nil
	}

	adapter, err := e.backends.For(t)
	if err != nil {
		return false, err
	}
	if !adapter.Available() {
		return false, nil
	}

	payload, err := e.getWithRetry(ctx, adapter, frameID)
	if errors.Is(err, backend.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	_, obj, err := e.decodePayload(frameID, t, payload)
	if err != nil {
		return false, err
	}
	e.recordObject(obj)
	return true, nil
}

// HasObject reports whether any tier holds a durable object for the
// frame, probing the backends when the in-memory index has no entry.
func (e *Engine) HasObject(ctx context.Context, frameID string) (bool, error) {
	if _, ok := e.currentTier(frameID); ok {
		return true, nil
	}
	_, ok := e.discoverTier(ctx, frameID)
	return ok, nil
}

// Metrics returns a snapshot of the engine's storage state. The
// snapshot always distinguishes idle from degraded: MigrationsPending
// is the journal depth, and LastMigration freezes during an outage.
func (e *Engine) Metrics() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := Snapshot{
		TierDistribution:  make(map[tier.Tier]int),
		MigrationsPending: e.journal.Depth(),
		LastMigration:     e.lastMigration,
		AvgLatencyMs:      e.latency.Avg(),
		P50LatencyMs:      e.latency.Percentile(50),
		P99LatencyMs:      e.latency.Percentile(99),
	}
	for _, tiers := range e.objects {
		for t, obj := range tiers {
			snap.TotalObjects++
			snap.StorageBytes += obj.PayloadBytes
			snap.TierDistribution[t]++
		}
	}
	return snap
}

// decodePayload unwraps the storage envelope and decodes the frame.
func (e *Engine) decodePayload(frameID string, t tier.Tier, payload []byte) (*frame.Frame, StorageObject, error) {
	codecName, compressed, err := decodeEnvelope(payload)
	if err != nil {
		return nil, StorageObject{}, fmt.Errorf("migrate: payload for %s at %s: %w", frameID, t, err)
	}
	c, err := e.codecs.ByName(codecName)
	if err != nil {
		return nil, StorageObject{}, err
	}
	raw, err := c.Decode(compressed)
	if err != nil {
		return nil, StorageObject{}, err
	}
	f, err := frame.Decode(raw)
	if err != nil {
		return nil, StorageObject{}, err
	}

	obj := StorageObject{
		FrameID:      frameID,
		Tier:         t,
		Codec:        codecName,
		PayloadBytes: int64(len(payload)),
		WrittenAt:    e.clock(),
		BackendKey:   frameID,
	}
	return f, obj, nil
}

func (e *Engine) recordObject(obj StorageObject) {
	e.mu.Lock()
	tiers, ok := e.objects[obj.FrameID]
	if !ok {
		tiers = make(map[tier.Tier]StorageObject, 1)
		e.objects[obj.FrameID] = tiers
	}
	prev, had := tiers[obj.Tier]
	tiers[obj.Tier] = obj
	e.mu.Unlock()

	if e.metrics != nil {
		if had {
			e.metrics.StorageBytes.Add(float64(obj.PayloadBytes - prev.PayloadBytes))
		} else {
			e.metrics.TierObjects.WithLabelValues(string(obj.Tier)).Inc()
			e.metrics.StorageBytes.Add(float64(obj.PayloadBytes))
		}
	}
}

func (e *Engine) forgetObject(frameID string, t tier.Tier) {
	e.mu.Lock()
	tiers := e.objects[frameID]
	obj, had := tiers[t]
	if had {
		delete(tiers, t)
		if len(tiers) == 0 {
			delete(e.objects, frameID)
		}
	}
	e.mu.Unlock()

	if had && e.metrics != nil {
		e.metrics.TierObjects.WithLabelValues(string(t)).Dec()
		e.metrics.StorageBytes.Sub(float64(obj.PayloadBytes))
	}
}

// objectAt returns the recorded object for the frame at the given tier.
func (e *Engine) objectAt(frameID string, t tier.Tier) (StorageObject, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	obj, ok := e.objects[frameID][t]
	return obj, ok
}

// currentTier returns the hottest tier holding a recorded object for
// the frame, or false when none is recorded.
func (e *Engine) currentTier(frameID string) (tier.Tier, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tiers := e.objects[frameID]
	for _, t := range tier.All {
		if _, ok := tiers[t]; ok {
			return t, true
		}
	}
	return "", false
}

func (e *Engine) timeoutFor(t tier.Tier) time.Duration {
	if t == tier.Remote {
		return e.archiveTimeout
	}
	return e.opTimeout
}

func (e *Engine) putWithRetry(ctx context.Context, a backend.Adapter, key string, payload []byte) error {
	var err error
	for attempt := 0; attempt <= e.retries; attempt++ {
		opCtx, cancel := context.WithTimeout(ctx, e.timeoutFor(a.Tier()))
		err = a.Put(opCtx, key, payload)
		cancel()
		if err == nil {
			return nil
		}
		if errors.Is(err, backend.ErrUnavailable) || ctx.Err() != nil {
			return err
		}
	}
	return err
}

func (e *Engine) getWithRetry(ctx context.Context, a backend.Adapter, key string) ([]byte, error) {
	var payload []byte
	var err error
	for attempt := 0; attempt <= e.retries; attempt++ {
		opCtx, cancel := context.WithTimeout(ctx, e.timeoutFor(a.Tier()))
		payload, err = a.Get(opCtx, key)
		cancel()
		if err == nil {
			return payload, nil
		}
		if errors.Is(err, backend.ErrNotFound) || errors.Is(err, backend.ErrUnavailable) || ctx.Err() != nil {
			return nil, err
		}
	}
	return nil, err
}

func (e *Engine) deleteWithRetry(ctx context.Context, a backend.Adapter, key string) error {
	var err error
	for attempt := 0; attempt <= e.retries; attempt++ {
		opCtx, cancel := context.WithTimeout(ctx, e.timeoutFor(a.Tier()))
		err = a.Delete(opCtx, key)
		cancel()
		if err == nil {
			return nil
		}
		if errors.Is(err, backend.ErrUnavailable) || ctx.Err() != nil {
			return err
		}
	}
	return err
}

func (e *Engine) observeOp(op string, start time.Time) {
	elapsed := e.clock().Sub(start)
	e.latency.Record(float64(elapsed) / float64(time.Millisecond))
	if e.metrics != nil {
		e.metrics.OpLatency.WithLabelValues(op).Observe(elapsed.Seconds())
	}
}

func (e *Engine) publish(ctx context.Context, event events.Event) {
	if err := e.events.Publish(ctx, event); err != nil {
		e.logger.Warnf("event publish failed", map[string]any{
			"type":  event.Type,
			"error": err.Error(),
		})
	}
}
