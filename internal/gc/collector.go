// Package gc implements the incremental frame collector.
//
// The collector walks the frame population in bounded batches and drops
// the locally-held detail of frames that have aged out of the young
// tier, are not protected, and already have a durable copy at their
// classifier tier. It never deletes durable storage objects; ownership
// of those stays with the migration engine.
//
// A frame is protected while it is active or is an ancestor of an
// active frame. Protection is answered by the frame store, which owns
// the tree, rather than re-derived here.
package gc

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cairn-io/cairn/internal/events"
	"github.com/cairn-io/cairn/internal/frame"
	"github.com/cairn-io/cairn/internal/logging"
	"github.com/cairn-io/cairn/internal/metrics"
	"github.com/cairn-io/cairn/internal/tier"
)

// historySize is the number of recent cycle records kept for operators.
const historySize = 32

// ObjectSource is the view of the migration engine the collector needs:
// durable object existence, prioritized store requests, and the shared
// per-frame lock that serializes collection against migration.
type ObjectSource interface {
	HasObjectAt(ctx context.Context, frameID string, t tier.Tier) (bool, error)
	HasObject(ctx context.Context, frameID string) (bool, error)
	RequestStore(frameID string)
	LockFrame(frameID string) func()
}

// defaultMaxAge is the retention ceiling applied when MaxAge is unset.
const defaultMaxAge = 30 * 24 * time.Hour

// Config controls cycle pacing and the per-cycle work bound.
type Config struct {
	// CycleInterval is the pause between automatic cycles. Default: 1m.
	CycleInterval time.Duration

	// FramesPerCycle bounds the frames examined per cycle. Default: 100.
	FramesPerCycle int

	// MaxAge is the local-detail retention ceiling. Frames older than
	// this are collected with a durable copy at any tier, not only at
	// their classifier tier, so a lagging migration cannot pin local
	// detail forever. Default: 30 days.
	MaxAge time.Duration
}

// DefaultConfig returns the standard collector pacing.
func DefaultConfig() Config {
	return Config{CycleInterval: time.Minute, FramesPerCycle: 100, MaxAge: defaultMaxAge}
}

// normalized fills defaults for unset fields and validates the rest.
func (c Config) normalized() (Config, error) {
	if c.MaxAge == 0 {
		c.MaxAge = defaultMaxAge
	}
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) validate() error {
	if c.CycleInterval <= 0 {
		return errBadInterval
	}
	if c.FramesPerCycle <= 0 {
		return errBadBudget
	}
	if c.MaxAge < 0 {
		return errBadMaxAge
	}
	return nil
}

// CycleRecord summarizes one collection cycle.
type CycleRecord struct {
	ID        string
	StartedAt time.Time
	Duration  time.Duration

	// Scanned is the number of frames examined this cycle.
	Scanned int
	// Collected is the number of frames whose local detail was dropped.
	Collected int
	// Protected is the number of frames skipped by the protection rule.
	Protected int
	// Deferred is the number of eligible frames lacking a durable object,
	// reported to the migration engine for prioritized store.
	Deferred int
	// Errors is the number of frames skipped due to per-frame errors.
	Errors int
}

// Stats is the collector's cumulative view, updated every cycle even
// when nothing was collected.
type Stats struct {
	CycleCount      int64
	AvgCycleTimeMs  float64
	CollectedFrames int64
	ProtectedFrames int64
	LastRunTime     time.Time
}

// Collector is the incremental garbage collector.
//
// Thread Safety: safe for concurrent use. At most one cycle runs at a
// time; RunCycle callers serialize on an internal lock.
type Collector struct {
	frames     frame.Store
	classifier *tier.Classifier
	objects    ObjectSource

	metrics *metrics.GCMetrics
	logger  *logging.Logger
	events  events.Publisher
	clock   func() time.Time

	cycleTimes *metrics.LatencyWindow

	// cycleMu serializes cycles; mu guards everything below it.
	cycleMu sync.Mutex
	mu      sync.Mutex
	config  Config
	cursor  string
	stats   Stats
	history []CycleRecord

	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	// kickCh wakes the loop after UpdateConfig so a new interval takes
	// effect without waiting out the old one.
	kickCh chan struct{}
}

// Options configures a Collector. Frames, Classifier and Objects are
// required.
type Options struct {
	Frames     frame.Store
	Classifier *tier.Classifier
	Objects    ObjectSource
	Config     Config

	Metrics *metrics.GCMetrics
	Logger  *logging.Logger
	Events  events.Publisher
	Clock   func() time.Time
}

// New creates a Collector. An invalid config is rejected here rather
// than at the first cycle.
func New(opts Options) (*Collector, error) {
	if opts.Frames == nil || opts.Classifier == nil || opts.Objects == nil {
		return nil, errMissingDeps
	}
	if opts.Config == (Config{}) {
		opts.Config = DefaultConfig()
	}
	config, err := opts.Config.normalized()
	if err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = logging.DefaultLogger()
	}
	if opts.Events == nil {
		opts.Events = events.NopPublisher{}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &Collector{
		frames:     opts.Frames,
		classifier: opts.Classifier,
		objects:    opts.Objects,
		metrics:    opts.Metrics,
		logger:     opts.Logger.With(map[string]any{"component": "gc"}),
		events:     opts.Events,
		clock:      opts.Clock,
		config:     config,
		cycleTimes: metrics.NewLatencyWindow(256),
		kickCh:     make(chan struct{}, 1),
	}, nil
}

// UpdateConfig replaces the pacing configuration. Invalid values are
// rejected synchronously and the previous configuration stays in force;
// a running loop picks up the new interval without a restart.
func (c *Collector) UpdateConfig(config Config) error {
	config, err := config.normalized()
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.config = config
	c.mu.Unlock()

	select {
	case c.kickCh <- struct{}{}:
	default:
	}
	return nil
}

// RunCycle executes one bounded collection cycle. The scan cursor
// persists across cycles, so repeated cycles cover the whole population
// round-robin regardless of the per-cycle budget.
func (c *Collector) RunCycle(ctx context.Context) (CycleRecord, error) {
	c.cycleMu.Lock()
	defer c.cycleMu.Unlock()

	c.mu.Lock()
	budget := c.config.FramesPerCycle
	cursor := c.cursor
	c.mu.Unlock()

	record := CycleRecord{
		ID:        uuid.New().String(),
		StartedAt: c.clock(),
	}

	frames, err := c.frames.ListFrames(ctx, frame.ListFilter{AfterID: cursor, Limit: budget})
	if err != nil {
		return record, err
	}

	for _, f := range frames {
		record.Scanned++
		c.examineFrame(ctx, f, &record)
	}

	next := ""
	if len(frames) == budget {
		next = frames[len(frames)-1].ID
	}

	record.Duration = c.clock().Sub(record.StartedAt)
	c.finishCycle(ctx, next, record)
	return record, nil
}

// examineFrame decides one frame's fate. Per-frame errors are logged
// and counted, never propagated; one bad frame must not stall the scan.
func (c *Collector) examineFrame(ctx context.Context, f *frame.Frame, record *CycleRecord) {
	if f.Collected {
		return
	}

	target, err := c.classifier.Classify(c.clock(), f.CreatedAt)
	if err != nil {
		record.Errors++
		c.logger.Warnf("classification failed", map[string]any{
			"frame": f.ID,
			"error": err.Error(),
		})
		return
	}
	// Protection is checked before the young-tier skip so that a brand
	// new active frame still shows up in the protected count.
	protected, err := c.frames.IsProtected(ctx, f.ID)
	if err != nil {
		record.Errors++
		c.logger.Warnf("protection check failed", map[string]any{
			"frame": f.ID,
			"error": err.Error(),
		})
		return
	}
	if protected {
		record.Protected++
		return
	}

	// Young frames keep their local detail.
	if target == tier.Young {
		return
	}

	has, err := c.objects.HasObjectAt(ctx, f.ID, target)
	if err != nil {
		record.Errors++
		c.logger.Warnf("durable object check failed", map[string]any{
			"frame": f.ID,
			"tier":  string(target),
			"error": err.Error(),
		})
		return
	}
	if !has && c.clock().Sub(f.CreatedAt) > c.maxAge() {
		// Past the retention ceiling a durable copy at any tier is
		// enough; a lagging migration must not pin local detail.
		has, err = c.objects.HasObject(ctx, f.ID)
		if err != nil {
			record.Errors++
			c.logger.Warnf("durable object check failed", map[string]any{
				"frame": f.ID,
				"error": err.Error(),
			})
			return
		}
	}
	if !has {
		// Not durable yet: hand it to the migration engine and collect
		// it on a later cycle.
		c.objects.RequestStore(f.ID)
		record.Deferred++
		return
	}

	release := c.objects.LockFrame(f.ID)
	defer release()

	if err := c.frames.MarkCollected(ctx, f.ID); err != nil {
		record.Errors++
		c.logger.Warnf("mark collected failed", map[string]any{
			"frame": f.ID,
			"error": err.Error(),
		})
		return
	}
	record.Collected++

	event := events.NewEvent(events.TypeFrameCollected, f.ID)
	event.Tier = string(target)
	if err := c.events.Publish(ctx, event); err != nil {
		c.logger.Warnf("event publish failed", map[string]any{
			"frame": f.ID,
			"error": err.Error(),
		})
	}
}

// finishCycle commits the cursor, stats, history and metrics for a
// completed cycle.
func (c *Collector) finishCycle(ctx context.Context, nextCursor string, record CycleRecord) {
	c.cycleTimes.Record(float64(record.Duration) / float64(time.Millisecond))

	c.mu.Lock()
	c.cursor = nextCursor
	c.stats.CycleCount++
	c.stats.CollectedFrames += int64(record.Collected)
	c.stats.ProtectedFrames += int64(record.Protected)
	c.stats.LastRunTime = record.StartedAt
	c.stats.AvgCycleTimeMs = c.cycleTimes.Avg()
	c.history = append(c.history, record)
	if len(c.history) > historySize {
		c.history = c.history[len(c.history)-historySize:]
	}
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.Cycles.Inc()
		c.metrics.FramesScanned.Add(float64(record.Scanned))
		c.metrics.FramesCollected.Add(float64(record.Collected))
		c.metrics.FramesProtected.Add(float64(record.Protected))
		c.metrics.CycleDuration.Observe(record.Duration.Seconds())
		c.metrics.LastRunTime.Set(float64(record.StartedAt.Unix()))
	}

	if record.Collected > 0 {
		event := events.NewEvent(events.TypeGCCycleCompleted, "")
		event.Fields = map[string]string{
			"cycle":     record.ID,
			"scanned":   strconv.Itoa(record.Scanned),
			"collected": strconv.Itoa(record.Collected),
		}
		if err := c.events.Publish(ctx, event); err != nil {
			c.logger.Warnf("event publish failed", map[string]any{
				"cycle": record.ID,
				"error": err.Error(),
			})
		}
	}
}

// ForceCollection runs a cycle immediately, outside the timer.
func (c *Collector) ForceCollection(ctx context.Context) (CycleRecord, error) {
	return c.RunCycle(ctx)
}

// Stats returns the cumulative collector statistics.
func (c *Collector) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// History returns the most recent cycle records, oldest first.
func (c *Collector) History() []CycleRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]CycleRecord, len(c.history))
	copy(out, c.history)
	return out
}

// Start begins the background cycle loop. Idempotent.
func (c *Collector) Start() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})
	c.mu.Unlock()

	go c.run()
}

// Stop halts the loop and waits for the in-flight cycle to finish.
// Idempotent; running flips false before the channel close so that
// concurrent Stop calls cannot close stopCh twice.
func (c *Collector) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.stopCh)
	done := c.doneCh
	c.mu.Unlock()

	<-done
}

func (c *Collector) run() {
	defer close(c.doneCh)

	interval := c.interval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctx := context.Background()
	c.cycle(ctx)

	for {
		select {
		case <-c.stopCh:
			return
		case <-c.kickCh:
			if next := c.interval(); next != interval {
				interval = next
				ticker.Reset(interval)
			}
		case <-ticker.C:
			c.cycle(ctx)
			if next := c.interval(); next != interval {
				interval = next
				ticker.Reset(interval)
			}
		}
	}
}

func (c *Collector) interval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config.CycleInterval
}

func (c *Collector) maxAge() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config.MaxAge
}

func (c *Collector) cycle(ctx context.Context) {
	if _, err := c.RunCycle(ctx); err != nil {
		c.logger.Errorf("cycle failed", map[string]any{"error": err.Error()})
	}
}
