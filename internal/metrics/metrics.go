// Package metrics wraps the prometheus collectors for indicator caching,
// mission evaluation and rewards. A nil *Collector is valid and records
// nothing, so components can be constructed without metrics in tests.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds every metric the quest core emits.
type Collector struct {
	registry *prometheus.Registry

	cacheLookups      *prometheus.CounterVec
	recomputeDuration prometheus.Histogram
	invalidations     prometheus.Counter

	evaluations *prometheus.CounterVec
	transitions *prometheus.CounterVec
	assignments *prometheus.CounterVec

	rewards   *prometheus.CounterVec
	xpAwarded prometheus.Counter

	sweeps        *prometheus.CounterVec
	sweepDuration prometheus.Histogram
}

// NewCollector creates a collector backed by its own registry.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "quest"
	}

	c := &Collector{registry: prometheus.NewRegistry()}

	c.cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "indicator",
			Name:      "cache_lookups_total",
			Help:      "Indicator summary lookups by cache result (hit or miss)",
		},
		[]string{"result"},
	)

	c.recomputeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "indicator",
			Name:      "recompute_duration_seconds",
			Help:      "Time taken to recompute indicators from the ledger",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
		},
	)

	c.invalidations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "indicator",
			Name:      "invalidations_total",
			Help:      "Total number of indicator cache invalidations",
		},
	)

	c.evaluations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mission",
			Name:      "evaluations_total",
			Help:      "Mission progress evaluations by validation strategy and result",
		},
		[]string{"strategy", "result"},
	)

	c.transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mission",
			Name:      "transitions_total",
			Help:      "Mission progress state transitions",
		},
		[]string{"from", "to"},
	)

	c.assignments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mission",
			Name:      "assignments_total",
			Help:      "Missions assigned by selection tier",
		},
		[]string{"tier"},
	)

	c.rewards = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reward",
			Name:      "applications_total",
			Help:      "Reward applications by result",
		},
		[]string{"result"},
	)

	c.xpAwarded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reward",
			Name:      "xp_awarded_total",
			Help:      "Total XP credited to profiles",
		},
	)

	c.sweeps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "sweeps_total",
			Help:      "Periodic mission sweeps by result",
		},
		[]string{"result"},
	)

	c.sweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "sweep_duration_seconds",
			Help:      "Time taken by a periodic mission sweep",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
	)

	c.registry.MustRegister(
		c.cacheLookups,
		c.recomputeDuration,
		c.invalidations,
		c.evaluations,
		c.transitions,
		c.assignments,
		c.rewards,
		c.xpAwarded,
		c.sweeps,
		c.sweepDuration,
	)

	return c
}

// Registry returns the underlying prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// CacheHit records a summary served from the profile snapshot.
func (c *Collector) CacheHit() {
	if c == nil {
		return
	}
	c.cacheLookups.WithLabelValues("hit").Inc()
}

// CacheMiss records a summary that had to be recomputed.
func (c *Collector) CacheMiss() {
	if c == nil {
		return
	}
	c.cacheLookups.WithLabelValues("miss").Inc()
}

// ObserveRecompute records how long a recompute took.
func (c *Collector) ObserveRecompute(d time.Duration) {
	if c == nil {
		return
	}
	c.recomputeDuration.Observe(d.Seconds())
}

// Invalidated records a cache invalidation.
func (c *Collector) Invalidated() {
	if c == nil {
		return
	}
	c.invalidations.Inc()
}

// Evaluated records one validator run.
func (c *Collector) Evaluated(strategy, result string) {
	if c == nil {
		return
	}
	c.evaluations.WithLabelValues(strategy, result).Inc()
}

// Transitioned records a mission progress state change.
func (c *Collector) Transitioned(from, to string) {
	if c == nil {
		return
	}
	c.transitions.WithLabelValues(from, to).Inc()
}

// Assigned records a mission assignment and the tier that produced it.
func (c *Collector) Assigned(tier string) {
	if c == nil {
		return
	}
	c.assignments.WithLabelValues(tier).Inc()
}

// Rewarded records a reward application outcome. Points are only counted
// for applied rewards.
func (c *Collector) Rewarded(result string, points int) {
	if c == nil {
		return
	}
	c.rewards.WithLabelValues(result).Inc()
	if result == "applied" {
		c.xpAwarded.Add(float64(points))
	}
}

// Swept records a periodic sweep.
func (c *Collector) Swept(result string, d time.Duration) {
	if c == nil {
		return
	}
	c.sweeps.WithLabelValues(result).Inc()
	c.sweepDuration.Observe(d.Seconds())
}
