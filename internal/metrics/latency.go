package metrics

import (
	"sort"
	"sync"
)

// LatencyWindow keeps a bounded window of recent latency samples and
// computes percentiles over it. The engine's P50/P99 numbers are the
// externally-visible SLO, so they are served from this window rather
// than requiring a Prometheus scrape to observe.
type LatencyWindow struct {
	mu      sync.Mutex
	samples []float64
	next    int
	full    bool
}

// NewLatencyWindow creates a window holding the most recent size samples.
func NewLatencyWindow(size int) *LatencyWindow {
	if size <= 0 {
		size = 1024
	}
	return &LatencyWindow{samples: make([]float64, size)}
}

// Record adds a sample in milliseconds.
func (w *LatencyWindow) Record(ms float64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.samples[w.next] = ms
	w.next++
	if w.next == len(w.samples) {
		w.next = 0
		w.full = true
	}
}

// Count returns the number of samples currently in the window.
func (w *LatencyWindow) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count()
}

func (w *LatencyWindow) count() int {
	if w.full {
		return len(w.samples)
	}
	return w.next
}

// Avg returns the mean of the window, or 0 when empty.
func (w *LatencyWindow) Avg() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	n := w.count()
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += w.samples[i]
	}
	return sum / float64(n)
}

// Percentile returns the p-th percentile (0 < p <= 100) of the window,
// or 0 when empty.
func (w *LatencyWindow) Percentile(p float64) float64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	n := w.count()
	if n == 0 {
		return 0
	}

	sorted := make([]float64, n)
	copy(sorted, w.samples[:n])
	sort.Float64s(sorted)

	idx := int(float64(n)*p/100+0.5) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return sorted[idx]
}
