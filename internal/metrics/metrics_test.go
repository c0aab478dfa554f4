package metrics

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatencyWindowPercentiles(t *testing.T) {
	w := NewLatencyWindow(1000)
	for i := 1; i <= 100; i++ {
		w.Record(float64(i))
	}

	assert.Equal(t, 100, w.Count())
	assert.InDelta(t, 50.5, w.Avg(), 0.01)
	assert.InDelta(t, 50, w.Percentile(50), 1)
	assert.InDelta(t, 99, w.Percentile(99), 1)
}

func TestLatencyWindowEmpty(t *testing.T) {
	w := NewLatencyWindow(16)
	assert.Zero(t, w.Avg())
	assert.Zero(t, w.Percentile(50))
	assert.Zero(t, w.Count())
}

func TestLatencyWindowWraps(t *testing.T) {
	w := NewLatencyWindow(10)
	for i := 0; i < 25; i++ {
		w.Record(float64(i))
	}

	// Only the last 10 samples (15..24) remain.
	assert.Equal(t, 10, w.Count())
	assert.InDelta(t, 19.5, w.Avg(), 0.01)
}

func findMetric(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func TestGCMetricsRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewGCMetricsWithRegistry(reg)

	m.Cycles.Inc()
	m.FramesScanned.Add(42)
	m.FramesCollected.Add(7)
	m.CycleDuration.Observe(0.05)

	mf := findMetric(t, reg, "cairn_gc_frames_scanned_total")
	require.NotNil(t, mf)
	assert.Equal(t, float64(42), mf.GetMetric()[0].GetCounter().GetValue())
}

func TestMigrationMetricsRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMigrationMetricsWithRegistry(reg)

	m.Migrations.WithLabelValues("success").Inc()
	m.Migrations.WithLabelValues("retryable").Add(3)
	m.Pending.Set(3)
	m.TierObjects.WithLabelValues("old").Set(12)

	mf := findMetric(t, reg, "cairn_migration_migrations_total")
	require.NotNil(t, mf)
	require.Len(t, mf.GetMetric(), 2)

	mf = findMetric(t, reg, "cairn_migration_pending_jobs")
	require.NotNil(t, mf)
	assert.Equal(t, float64(3), mf.GetMetric()[0].GetGauge().GetValue())
}

func TestServerServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewGCMetricsWithRegistry(reg)
	m.Cycles.Inc()

	srv := NewServerWithRegistry("127.0.0.1:0", reg)
	require.NoError(t, srv.Start())
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Stop(ctx)
	}()

	resp, err := http.Get(fmt.Sprintf("http://%s/metrics", srv.Addr()))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "cairn_gc_cycles_total"))
}
