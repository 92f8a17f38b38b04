// Package metrics collects build statistics with Prometheus and exports them
// in the text exposition format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.trai.ch/zerr"
)

const (
	namespace = "mallard"
	subsystem = "build"
)

// Collector implements ports.Metrics on a private registry.
type Collector struct {
	registry *prometheus.Registry

	targetDuration *prometheus.HistogramVec
	attempts       *prometheus.CounterVec
	outdated       prometheus.Gauge
}

// NewCollector creates a collector with its metrics registered.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		targetDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "target_duration_seconds",
				Help:      "Wall clock time spent on a target, retries included.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10), // 1ms to ~4m
			},
			[]string{"status"},
		),
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "attempts_total",
				Help:      "Command attempts by result.",
			},
			[]string{"result"}, // "success" or "error"
		),
		outdated: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "outdated_targets",
				Help:      "Size of the outdated set of the last build.",
			},
		),
	}
	c.registry.MustRegister(c.targetDuration, c.attempts, c.outdated)
	return c
}

// Registry returns the registry the collector writes to.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveTarget records the outcome and duration of one target.
func (c *Collector) ObserveTarget(status string, d time.Duration) {
	c.targetDuration.WithLabelValues(status).Observe(d.Seconds())
}

// ObserveAttempt records one attempt.
func (c *Collector) ObserveAttempt(failed bool) {
	result := "success"
	if failed {
		result = "error"
	}
	c.attempts.WithLabelValues(result).Inc()
}

// SetOutdated records the size of the outdated set.
func (c *Collector) SetOutdated(n int) {
	c.outdated.Set(float64(n))
}

// Write exports the metrics to path in the text exposition format.
func (c *Collector) Write(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to write metrics"), "path", path)
	}
	return nil
}
