// Package metrics provides Prometheus metrics for observability.
//
// This package exposes metrics for the two background subsystems:
//   - GC cycle counts, scan/collect/protect totals, and cycle duration
//   - Migration counts by outcome, journal backlog depth, per-tier
//     object distribution, and read/write latency (p50, p99)
//
// Metrics are exposed via a dedicated HTTP server on /metrics in
// Prometheus format.
//
// Usage:
//
//	gcMetrics := metrics.NewGCMetrics()
//	migMetrics := metrics.NewMigrationMetrics()
//
//	collector := gc.NewCollector(store, classifier, gc.Config{Metrics: gcMetrics})
//	engine := migrate.New(migrate.Options{Metrics: migMetrics, ...})
//
//	server := metrics.NewServer(":9090")
//	server.Start()
package metrics
