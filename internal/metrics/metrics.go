// Package metrics collects Prometheus telemetry for statement compilation,
// execution, schema extraction and migration runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector owns a private registry so that several collectors (one per CLI
// run or per test) never clash on registration.
type Collector struct {
	registry *prometheus.Registry

	compileTotal      *prometheus.CounterVec
	statementTotal    *prometheus.CounterVec
	statementDuration *prometheus.HistogramVec

	extractTotal    *prometheus.CounterVec
	extractDuration *prometheus.HistogramVec
	extractedTables *prometheus.GaugeVec

	migrationOps  *prometheus.CounterVec
	applyTotal    *prometheus.CounterVec
	applyDuration prometheus.Histogram
}

// NewCollector creates a collector. The namespace defaults to "sqlkit".
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "sqlkit"
	}

	c := &Collector{registry: prometheus.NewRegistry()}

	c.compileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "compile",
			Name:      "total",
			Help:      "Total number of compiled statements",
		},
		[]string{"dialect", "kind", "status"},
	)

	c.statementTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "statements_total",
			Help:      "Total number of executed statements",
		},
		[]string{"dialect", "kind", "status"},
	)

	c.statementDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "statement_duration_seconds",
			Help:      "Time taken to execute a statement",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
		},
		[]string{"dialect", "kind"},
	)

	c.extractTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extract",
			Name:      "total",
			Help:      "Total number of schema extractions",
		},
		[]string{"dialect", "status"},
	)

	c.extractDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "extract",
			Name:      "duration_seconds",
			Help:      "Time taken to extract a live schema",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
		[]string{"dialect"},
	)

	c.extractedTables = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "extract",
			Name:      "tables",
			Help:      "Number of tables found by the last extraction",
		},
		[]string{"dialect"},
	)

	c.migrationOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "migration",
			Name:      "operations_total",
			Help:      "Generated migration operations by kind",
		},
		[]string{"dialect", "kind"},
	)

	c.applyTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "apply",
			Name:      "runs_total",
			Help:      "Total number of migration apply runs",
		},
		[]string{"mode", "status"},
	)

	c.applyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "apply",
			Name:      "duration_seconds",
			Help:      "Time taken to apply a migration",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		},
	)

	c.registry.MustRegister(
		c.compileTotal,
		c.statementTotal,
		c.statementDuration,
		c.extractTotal,
		c.extractDuration,
		c.extractedTables,
		c.migrationOps,
		c.applyTotal,
		c.applyDuration,
	)

	return c
}

// Registry returns the Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordCompile counts a compilation attempt.
func (c *Collector) RecordCompile(dialect, kind string, err error) {
	if c == nil {
		return
	}
	c.compileTotal.WithLabelValues(dialect, kind, status(err)).Inc()
}

// RecordStatement records one statement execution.
func (c *Collector) RecordStatement(dialect, kind string, duration time.Duration, err error) {
	if c == nil {
		return
	}
	c.statementTotal.WithLabelValues(dialect, kind, status(err)).Inc()
	c.statementDuration.WithLabelValues(dialect, kind).Observe(duration.Seconds())
}

// RecordExtraction records a schema extraction and the number of tables found.
func (c *Collector) RecordExtraction(dialect string, tables int, duration time.Duration, err error) {
	if c == nil {
		return
	}
	c.extractTotal.WithLabelValues(dialect, status(err)).Inc()
	c.extractDuration.WithLabelValues(dialect).Observe(duration.Seconds())
	if err == nil {
		c.extractedTables.WithLabelValues(dialect).Set(float64(tables))
	}
}

// RecordMigrationOperation counts one generated migration operation.
func (c *Collector) RecordMigrationOperation(dialect, kind string) {
	if c == nil {
		return
	}
	c.migrationOps.WithLabelValues(dialect, kind).Inc()
}

// RecordApply records a migration run. mode is "transaction" or "sequential".
func (c *Collector) RecordApply(mode string, duration time.Duration, err error) {
	if c == nil {
		return
	}
	c.applyTotal.WithLabelValues(mode, status(err)).Inc()
	c.applyDuration.Observe(duration.Seconds())
}
