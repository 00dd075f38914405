// Package metrics exposes Prometheus instrumentation for the filtering
// pipeline: per-analysis counters and histograms, rule hit counters, and
// rule cache refresh outcomes.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"guardian-hq/sentinel/pkg/filter"
)

// Config contains metrics configuration.
type Config struct {
	// Namespace prefixes every metric name.
	Namespace string
}

// Collector owns the registry and every sentinel metric family.
type Collector struct {
	registry *prometheus.Registry

	analysesTotal    *prometheus.CounterVec
	analysisDuration prometheus.Histogram
	severity         prometheus.Histogram
	ruleHitsTotal    *prometheus.CounterVec
	refreshesTotal   *prometheus.CounterVec
	snapshotRules    prometheus.Gauge
	snapshotSkipped  prometheus.Gauge
}

// NewCollector creates and registers the sentinel metrics.
func NewCollector(cfg Config) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,

		analysesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "filter",
				Name:      "analyses_total",
				Help:      "Total content analyses by resulting action",
			},
			[]string{"action"},
		),

		analysisDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "filter",
				Name:      "analysis_duration_seconds",
				Help:      "Duration of a single content analysis in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 2, 15), // 10µs to 160ms
			},
		),

		severity: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "filter",
				Name:      "severity",
				Help:      "Distribution of normalized severity scores",
				Buckets:   prometheus.LinearBuckets(0, 0.1, 11), // 0.0 to 1.0
			},
		),

		ruleHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "filter",
				Name:      "rule_hits_total",
				Help:      "Total rule matches by rule",
			},
			[]string{"rule_id", "rule_name"},
		),

		refreshesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "cache",
				Name:      "refreshes_total",
				Help:      "Total rule cache refreshes by outcome",
			},
			[]string{"outcome"},
		),

		snapshotRules: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: "cache",
				Name:      "snapshot_rules",
				Help:      "Rules in the current snapshot",
			},
		),

		snapshotSkipped: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: "cache",
				Name:      "snapshot_skipped_rules",
				Help:      "Rules skipped by the last successful refresh",
			},
		),
	}

	registry.MustRegister(
		c.analysesTotal,
		c.analysisDuration,
		c.severity,
		c.ruleHitsTotal,
		c.refreshesTotal,
		c.snapshotRules,
		c.snapshotSkipped,
	)

	return c
}

// RecordAnalysis implements the engine's metrics recorder.
func (c *Collector) RecordAnalysis(action filter.Action, severity float64, d time.Duration) {
	c.analysesTotal.WithLabelValues(string(action)).Inc()
	c.analysisDuration.Observe(d.Seconds())
	c.severity.Observe(severity)
}

// RecordRuleHit implements the engine's metrics recorder.
func (c *Collector) RecordRuleHit(ruleID int64, ruleName string) {
	c.ruleHitsTotal.WithLabelValues(strconv.FormatInt(ruleID, 10), ruleName).Inc()
}

// RecordRefresh implements the cache's metrics recorder.
func (c *Collector) RecordRefresh(outcome string, ruleCount, skipped int) {
	c.refreshesTotal.WithLabelValues(outcome).Inc()
	if outcome == "ok" {
		c.snapshotRules.Set(float64(ruleCount))
		c.snapshotSkipped.Set(float64(skipped))
	}
}

// Handler returns the Prometheus exposition endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}

// Registry exposes the underlying registry, for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
