package migrate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cairn-io/cairn/internal/events"
	"github.com/cairn-io/cairn/internal/frame"
	"github.com/cairn-io/cairn/internal/journal"
	"github.com/cairn-io/cairn/internal/tier"
)

// BatchResult summarizes one migration sweep.
type BatchResult struct {
	// Scanned is the number of frames examined.
	Scanned int
	// Stored is the number of frames written for the first time.
	Stored int
	// Migrated is the number of completed tier transitions.
	Migrated int
	// Requeued is the number of transitions handed to the journal.
	Requeued int
	// Replayed is the number of journal jobs attempted this sweep.
	Replayed int
}

// SweepMigrations runs one bounded migration pass: replay due journal
// jobs, store frames the collector flagged, then scan a batch of frames
// and move any whose object tier disagrees with the classifier.
//
// The scan cursor persists across sweeps so the full population is
// covered round-robin regardless of batch size.
func (e *Engine) SweepMigrations(ctx context.Context) (BatchResult, error) {
	var result BatchResult

	if err := e.replayJournal(ctx, &result); err != nil {
		return result, err
	}
	if err := e.drainStoreRequests(ctx, &result); err != nil {
		return result, err
	}
	if err := e.scanBatch(ctx, &result); err != nil {
		return result, err
	}

	if e.metrics != nil {
		e.metrics.Pending.Set(float64(e.journal.Depth()))
	}
	return result, nil
}

// replayJournal attempts every due job. Outcomes go straight back to
// the journal; a journal write failure is fatal and escalates.
func (e *Engine) replayJournal(ctx context.Context, result *BatchResult) error {
	for _, job := range e.journal.DequeueDue(e.clock()) {
		result.Replayed++

		err := e.executeJob(ctx, job)
		if err == nil {
			if jErr := e.journal.MarkDone(job.ID); jErr != nil {
				return jErr
			}
			e.noteMigration(ctx, job.FrameID, job.FromTier, job.ToTier)
			result.Migrated++
			continue
		}

		permanent := isPermanent(err)
		if jErr := e.journal.MarkFailed(job.ID, err, permanent); jErr != nil {
			return jErr
		}
		e.logger.Warnf("journal job failed", map[string]any{
			"job":       job.ID,
			"attempt":   job.AttemptCount + 1,
			"permanent": permanent,
			"error":     err.Error(),
		})
		if permanent {
			e.publish(ctx, failureEvent(job.FrameID, job.FromTier, job.ToTier, err))
			if e.metrics != nil {
				e.metrics.Migrations.WithLabelValues("permanent").Inc()
			}
		} else if e.metrics != nil {
			e.metrics.Migrations.WithLabelValues("retryable").Inc()
		}
	}
	return nil
}

// executeJob runs one journal job. Jobs without a source tier are
// initial stores that failed; the rest are tier transitions.
func (e *Engine) executeJob(ctx context.Context, job journal.Job) error {
	if job.FromTier == "" {
		f, err := e.frames.GetFrame(ctx, job.FrameID)
		if err != nil {
			return err
		}
		_, err = e.StoreFrame(ctx, f)
		return err
	}
	return e.migrateFrame(ctx, job.FrameID, job.ToTier)
}

// drainStoreRequests stores frames the collector reported as lacking a
// durable object.
func (e *Engine) drainStoreRequests(ctx context.Context, result *BatchResult) error {
	for {
		select {
		case frameID := <-e.storeRequests:
			f, err := e.frames.GetFrame(ctx, frameID)
			if errors.Is(err, frame.ErrFrameNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if _, err := e.StoreFrame(ctx, f); err != nil {
				e.logger.Warnf("requested store failed", map[string]any{
					"frame": frameID,
					"error": err.Error(),
				})
				continue
			}
			result.Stored++
		default:
			return nil
		}
	}
}

// scanBatch examines the next batch of frames and reconciles each
// frame's object tier with its classifier tier.
func (e *Engine) scanBatch(ctx context.Context, result *BatchResult) error {
	e.mu.Lock()
	cursor := e.cursor
	e.mu.Unlock()

	frames, err := e.frames.ListFrames(ctx, frame.ListFilter{AfterID: cursor, Limit: e.batchSize})
	if err != nil {
		return fmt.Errorf("migrate: sweep scan: %w", err)
	}

	for _, f := range frames {
		result.Scanned++
		if err := e.reconcileFrame(ctx, f, result); err != nil {
			// Journal write failures escalate; everything else was
			// already absorbed per-frame.
			return err
		}
	}

	next := ""
	if len(frames) == e.batchSize {
		next = frames[len(frames)-1].ID
	}
	e.mu.Lock()
	e.cursor = next
	e.mu.Unlock()
	return nil
}

// reconcileFrame moves one frame toward its classifier tier. Per-frame
// errors are logged and enqueued, never returned, except for journal
// write failures.
func (e *Engine) reconcileFrame(ctx context.Context, f *frame.Frame, result *BatchResult) error {
	target, err := e.classifier.Classify(e.clock(), f.CreatedAt)
	if err != nil {
		e.logger.Warnf("classification failed", map[string]any{
			"frame": f.ID,
			"error": err.Error(),
		})
		return nil
	}

	current, has := e.currentTier(f.ID)
	if !has {
		// Probe backends before assuming the frame was never stored;
		// the in-memory object index is empty after a restart.
		current, has = e.discoverTier(ctx, f.ID)
	}

	if !has {
		if _, err := e.StoreFrame(ctx, f); err != nil {
			e.logger.Warnf("initial store failed", map[string]any{
				"frame": f.ID,
				"tier":  string(target),
				"error": err.Error(),
			})
			return e.journal.Enqueue(f.ID, "", target, err)
		}
		result.Stored++
		return nil
	}

	if current == target {
		return nil
	}

	if err := e.migrateFrame(ctx, f.ID, target); err != nil {
		e.logger.Warnf("migration failed", map[string]any{
			"frame": f.ID,
			"from":  string(current),
			"to":    string(target),
			"error": err.Error(),
		})
		result.Requeued++
		return e.journal.Enqueue(f.ID, current, target, err)
	}

	e.noteMigration(ctx, f.ID, current, target)
	result.Migrated++
	return nil
}

// discoverTier probes the backends for an existing object and records
// what it finds.
func (e *Engine) discoverTier(ctx context.Context, frameID string) (tier.Tier, bool) {
	for _, adapter := range e.backends.ProbeOrder() {
		if !adapter.Available() {
			continue
		}
		payload, err := e.getWithRetry(ctx, adapter, frameID)
		if err != nil {
			continue
		}
		if _, obj, err := e.decodePayload(frameID, adapter.Tier(), payload); err == nil {
			e.recordObject(obj)
			return adapter.Tier(), true
		}
	}
	return "", false
}

// migrateFrame moves the frame's object to the target tier:
// read source, re-encode with the target codec, write target, and only
// then delete the source copy.
func (e *Engine) migrateFrame(ctx context.Context, frameID string, target tier.Tier) error {
	release := e.locks.acquire(frameID)
	defer release()

	// Re-check under the lock: a concurrent sweep or journal replay may
	// already have moved it.
	current, has := e.currentTier(frameID)
	if !has {
		current, has = e.discoverTier(ctx, frameID)
	}
	if !has {
		return fmt.Errorf("migrate: no object for frame %s", frameID)
	}
	if current == target {
		return nil
	}

	source, err := e.backends.For(current)
	if err != nil {
		return err
	}
	start := e.clock()
	payload, err := e.getWithRetry(ctx, source, frameID)
	if err != nil {
		return fmt.Errorf("migrate: read %s from %s: %w", frameID, current, err)
	}
	e.observeOp("get", start)

	f, _, err := e.decodePayload(frameID, current, payload)
	if err != nil {
		return err
	}

	if _, err := e.storeAt(ctx, f, target); err != nil {
		return err
	}

	// Target copy is durable; removing the source is safe now. A delete
	// failure leaves a harmless extra copy that the next sweep retries.
	if err := e.deleteWithRetry(ctx, source, frameID); err != nil {
		e.logger.Warnf("source cleanup failed", map[string]any{
			"frame": frameID,
			"tier":  string(current),
			"error": err.Error(),
		})
		return nil
	}
	e.forgetObject(frameID, current)
	return nil
}

// noteMigration records a successful transition in metrics and events.
func (e *Engine) noteMigration(ctx context.Context, frameID string, from, to tier.Tier) {
	now := e.clock()
	e.mu.Lock()
	e.lastMigration = now
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.Migrations.WithLabelValues("success").Inc()
		e.metrics.LastMigration.Set(float64(now.Unix()))
	}

	event := events.NewEvent(events.TypeMigrationCompleted, frameID)
	event.Tier = string(to)
	event.Fields = map[string]string{"from": string(from)}
	e.publish(ctx, event)
}

func failureEvent(frameID string, from, to tier.Tier, cause error) events.Event {
	event := events.NewEvent(events.TypeMigrationFailed, frameID)
	event.Tier = string(to)
	event.Fields = map[string]string{"from": string(from), "error": cause.Error()}
	return event
}

// isPermanent reports whether a migration error can never succeed on
// retry. Transient backend failures are retryable; a corrupt envelope
// or a frame deleted out from under the job is not.
func isPermanent(err error) bool {
	return errors.Is(err, errBadEnvelope) || errors.Is(err, frame.ErrFrameNotFound)
}

// Sweeper runs SweepMigrations on an interval in the background.
type Sweeper struct {
	engine *Engine

	mu       sync.Mutex
	interval time.Duration
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}

	// kickCh wakes the loop after SetInterval so the new pacing takes
	// effect without waiting out the old interval.
	kickCh chan struct{}
}

// NewSweeper creates a background sweeper. A non-positive interval
// defaults to one minute.
func NewSweeper(engine *Engine, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{engine: engine, interval: interval, kickCh: make(chan struct{}, 1)}
}

// SetInterval changes the sweep pacing. A running loop picks the new
// interval up without a restart; non-positive values default to one
// minute.
func (s *Sweeper) SetInterval(interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	s.mu.Lock()
	s.interval = interval
	s.mu.Unlock()

	select {
	case s.kickCh <- struct{}{}:
	default:
	}
}

// Start begins the sweep loop. Idempotent.
func (s *Sweeper) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.run()
}

// Stop halts the loop and waits for the in-flight sweep to finish.
// Idempotent; running flips false before the channel close so that
// concurrent Stop calls cannot close stopCh twice.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	done := s.doneCh
	s.mu.Unlock()

	<-done
}

func (s *Sweeper) run() {
	defer close(s.doneCh)

	interval := s.currentInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctx := context.Background()
	s.sweep(ctx)

	for {
		select {
		case <-s.stopCh:
			return
		case <-s.kickCh:
			if next := s.currentInterval(); next != interval {
				interval = next
				ticker.Reset(interval)
			}
		case <-ticker.C:
			s.sweep(ctx)
			if next := s.currentInterval(); next != interval {
				interval = next
				ticker.Reset(interval)
			}
		}
	}
}

func (s *Sweeper) currentInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

func (s *Sweeper) sweep(ctx context.Context) {
	if _, err := s.engine.SweepMigrations(ctx); err != nil {
		s.engine.logger.Errorf("sweep failed", map[string]any{"error": err.Error()})
	}
}
