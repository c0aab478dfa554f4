// Package journal implements the durable migration job queue.
//
// The queue is a CRC32C-framed append log on local disk, independent of
// every tier backend. Each state change appends a full copy of the job;
// replay on open reduces the log to its live jobs and rewrites it. Every
// append is fsynced before it is acknowledged: the journal is the sole
// recovery mechanism after a backend outage, so a write failure here is
// fatal for the caller.
//
// Delivery is at-least-once. A job observed in_flight during replay is
// treated as pending again; downstream migration writes are idempotent
// on frame ID + target tier, which makes redelivery harmless.
package journal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/cairn-io/cairn/internal/tier"
)

// Status is the lifecycle state of a migration job.
type Status string

const (
	// StatusPending marks a job awaiting its first attempt.
	StatusPending Status = "pending"
	// StatusInFlight marks a job currently being executed.
	StatusInFlight Status = "in_flight"
	// StatusDone marks a completed job. Done records act as tombstones.
	StatusDone Status = "done"
	// StatusFailedRetryable marks a job that failed transiently and will
	// be retried after its backoff expires.
	StatusFailedRetryable Status = "failed_retryable"
	// StatusFailedPermanent marks a job past the attempt ceiling. It is
	// surfaced to operators and never retried or silently dropped.
	StatusFailedPermanent Status = "failed_permanent"
)

// Job is one pending tier transition.
type Job struct {
	// ID is FrameID + ":" + ToTier: the idempotency key for replay.
	ID           string    `json:"id"`
	FrameID      string    `json:"frameId"`
	FromTier     tier.Tier `json:"fromTier"`
	ToTier       tier.Tier `json:"toTier"`
	Status       Status    `json:"status"`
	AttemptCount int       `json:"attemptCount"`
	LastError    string    `json:"lastError,omitempty"`
	// NotBefore is the earliest time (Unix ms) the next attempt may run.
	NotBefore  int64 `json:"notBefore,omitempty"`
	EnqueuedAt int64 `json:"enqueuedAt"`
}

// JobID builds the idempotency key for a frame and target tier.
func JobID(frameID string, to tier.Tier) string {
	return frameID + ":" + string(to)
}

// Config configures the queue's retry policy.
type Config struct {
	// AttemptCeiling is the number of failed attempts after which a job
	// becomes failed_permanent. Default: 5.
	AttemptCeiling int

	// BackoffBase is the delay after the first failure; it doubles per
	// attempt. Default: 1 minute.
	BackoffBase time.Duration

	// BackoffMax caps the delay between attempts. Default: 1 hour.
	BackoffMax time.Duration

	// Clock supplies the current time for enqueue and backoff stamps.
	// Default: time.Now. Tests inject a fixed clock for deterministic
	// backoff timing.
	Clock func() time.Time
}

// DefaultConfig returns the default retry policy.
func DefaultConfig() Config {
	return Config{
		AttemptCeiling: 5,
		BackoffBase:    time.Minute,
		BackoffMax:     time.Hour,
	}
}

// Queue is the durable migration job queue.
type Queue struct {
	path   string
	config Config

	mu        sync.Mutex
	file      *os.File
	live      map[string]Job // pending / in_flight / failed_retryable
	permanent map[string]Job
	closed    bool
}

// Open opens (or creates) the journal at path, replays it, and compacts
// the log down to its live jobs.
func Open(path string, config Config) (*Queue, error) {
	if config.AttemptCeiling <= 0 {
		config.AttemptCeiling = 5
	}
	if config.BackoffBase <= 0 {
		config.BackoffBase = time.Minute
	}
	if config.BackoffMax <= 0 {
		config.BackoffMax = time.Hour
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}

	q := &Queue{
		path:      path,
		config:    config,
		live:      make(map[string]Job),
		permanent: make(map[string]Job),
	}

	if err := q.replay(); err != nil {
		return nil, err
	}
	if err := q.compact(); err != nil {
		return nil, err
	}
	return q, nil
}

// replay reduces the existing log into the in-memory job maps.
func (q *Queue) replay() error {
	f, err := os.Open(q.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("journal: open %s: %w", q.path, err)
	}
	defer f.Close()

	for {
		job, err := decodeRecord(f)
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, errTornRecord) {
			// Torn tail from a crash mid-append. Everything before it
			// was fsynced, so stop here and let compaction drop it.
			break
		}
		if err != nil {
			return err
		}
		q.apply(job)
	}
	return nil
}

func (q *Queue) apply(job Job) {
	switch job.Status {
	case StatusDone:
		delete(q.live, job.ID)
	case StatusFailedPermanent:
		delete(q.live, job.ID)
		q.permanent[job.ID] = job
	case StatusInFlight:
		// Redelivery after a crash: treat as pending.
		job.Status = StatusPending
		q.live[job.ID] = job
	default:
		q.live[job.ID] = job
	}
}

// compact rewrites the log with only live and permanent jobs, then
// reopens it for appending.
func (q *Queue) compact() error {
	tmp := q.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("journal: create %s: %w", tmp, err)
	}

	writeAll := func(jobs map[string]Job) error {
		ids := make([]string, 0, len(jobs))
		for id := range jobs {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			buf, err := encodeRecord(jobs[id])
			if err != nil {
				return err
			}
			if _, err := f.Write(buf); err != nil {
				return fmt.Errorf("journal: write %s: %w", tmp, err)
			}
		}
		return nil
	}

	if err := writeAll(q.live); err != nil {
		f.Close()
		return err
	}
	if err := writeAll(q.permanent); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("journal: sync %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("journal: close %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, q.path); err != nil {
		return fmt.Errorf("journal: rename %s: %w", tmp, err)
	}
	if err := syncDir(filepath.Dir(q.path)); err != nil {
		return err
	}

	q.file, err = os.OpenFile(q.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("journal: reopen %s: %w", q.path, err)
	}
	return nil
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("journal: open dir %s: %w", dir, err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("journal: sync dir %s: %w", dir, err)
	}
	return nil
}

// append writes one record and fsyncs it.
func (q *Queue) append(job Job) error {
	buf, err := encodeRecord(job)
	if err != nil {
		return err
	}
	if _, err := q.file.Write(buf); err != nil {
		return fmt.Errorf("journal: append: %w", err)
	}
	if err := q.file.Sync(); err != nil {
		return fmt.Errorf("journal: fsync: %w", err)
	}
	return nil
}

// Enqueue adds a job for the given frame and tier transition.
// Enqueueing a transition that is already live is a no-op.
func (q *Queue) Enqueue(frameID string, from, to tier.Tier, cause error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return errors.New("journal: closed")
	}

	id := JobID(frameID, to)
	if _, exists := q.live[id]; exists {
		return nil
	}
	// A transition that already failed permanently is not re-enqueued
	// behind the operator's back.
	if _, exists := q.permanent[id]; exists {
		return nil
	}

	job := Job{
		ID:         id,
		FrameID:    frameID,
		FromTier:   from,
		ToTier:     to,
		Status:     StatusPending,
		EnqueuedAt: q.config.Clock().UnixMilli(),
	}
	if cause != nil {
		job.LastError = cause.Error()
	}

	if err := q.append(job); err != nil {
		return err
	}
	q.live[id] = job
	return nil
}

// DequeueDue returns all jobs whose backoff has expired, marking them
// in_flight. The in_flight mark is in-memory only: after a crash the
// jobs are redelivered, which downstream idempotency absorbs.
func (q *Queue) DequeueDue(now time.Time) []Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	nowMs := now.UnixMilli()
	var due []Job
	for id, job := range q.live {
		if job.Status == StatusInFlight {
			continue
		}
		if job.NotBefore > nowMs {
			continue
		}
		job.Status = StatusInFlight
		q.live[id] = job
		due = append(due, job)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ID < due[j].ID })
	return due
}

// MarkDone records successful completion of a job.
func (q *Queue) MarkDone(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.live[id]
	if !ok {
		return nil
	}
	job.Status = StatusDone
	if err := q.append(job); err != nil {
		return err
	}
	delete(q.live, id)
	return nil
}

// MarkFailed records a failed attempt. Transient failures back off
// exponentially until the attempt ceiling, after which (or when
// permanent is set) the job becomes failed_permanent.
func (q *Queue) MarkFailed(id string, cause error, permanent bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.live[id]
	if !ok {
		return nil
	}

	job.AttemptCount++
	if cause != nil {
		job.LastError = cause.Error()
	}

	if permanent || job.AttemptCount >= q.config.AttemptCeiling {
		job.Status = StatusFailedPermanent
		if err := q.append(job); err != nil {
			return err
		}
		delete(q.live, id)
		q.permanent[id] = job
		return nil
	}

	backoff := q.config.BackoffBase << (job.AttemptCount - 1)
	if backoff > q.config.BackoffMax || backoff <= 0 {
		backoff = q.config.BackoffMax
	}
	job.Status = StatusFailedRetryable
	job.NotBefore = q.config.Clock().Add(backoff).UnixMilli()

	if err := q.append(job); err != nil {
		return err
	}
	q.live[id] = job
	return nil
}

// Depth returns the number of live (not done, not permanent) jobs.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.live)
}

// Jobs returns the live jobs in ID order, for inspection.
func (q *Queue) Jobs() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Job, 0, len(q.live))
	for _, job := range q.live {
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PermanentFailures returns jobs past the attempt ceiling, for operators.
func (q *Queue) PermanentFailures() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Job, 0, len(q.permanent))
	for _, job := range q.permanent {
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Close releases the log file.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	return q.file.Close()
}
