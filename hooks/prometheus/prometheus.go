// Package promhooks exports regioncache events as Prometheus metrics.
//
//	reg := prometheus.NewRegistry()
//	hooks, err := promhooks.New(reg, "myapp")
//	cache, _ := regioncache.New[User](regioncache.Options[User]{..., Hooks: hooks})
package promhooks

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/regioncache"
)

const subsystem = "regioncache"

type Hooks struct {
	lookups     *prometheus.CounterVec   // region, result
	generation  *prometheus.GaugeVec     // region
	restores    *prometheus.CounterVec   // region
	conflicts   *prometheus.CounterVec   // region, method
	selfHeals   *prometheus.CounterVec   // region, reason
	slides      *prometheus.CounterVec   // region
	suppressed  *prometheus.CounterVec   // region, method
	lockWait    *prometheus.HistogramVec // region, outcome
	unlockFails *prometheus.CounterVec   // region, held
}

var _ regioncache.Hooks = (*Hooks)(nil)

// New registers the collectors on reg. namespace may be empty.
func New(reg prometheus.Registerer, namespace string) (*Hooks, error) {
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem, Name: name, Help: help,
		}, labels)
	}
	h := &Hooks{
		lookups: counter("lookups_total", "Get calls by result.", "region", "result"),
		generation: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "generation", Help: "Generation this process holds per region.",
		}, []string{"region"}),
		restores:   counter("generation_restores_total", "Generation keys written back after the store lost them.", "region"),
		conflicts:  counter("generation_conflicts_total", "Guarded operations that lost their generation precondition.", "region", "method"),
		selfHeals:  counter("self_heals_total", "Entries dropped on read.", "region", "reason"),
		slides:     counter("sliding_renewals_total", "Hits that renewed an entry's TTL.", "region"),
		suppressed: counter("errors_suppressed_total", "Errors swallowed by the error handler.", "region", "method"),
		lockWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name:    "lock_wait_seconds",
			Help:    "Time spent acquiring locks.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"region", "outcome"}),
		unlockFails: counter("unlock_failures_total", "Unlocks that released nothing.", "region", "held"),
	}
	for _, c := range []prometheus.Collector{
		h.lookups, h.generation, h.restores, h.conflicts, h.selfHeals,
		h.slides, h.suppressed, h.lockWait, h.unlockFails,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("promhooks: register: %w", err)
		}
	}
	return h, nil
}

func (h *Hooks) Lookup(region string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	h.lookups.WithLabelValues(region, result).Inc()
}

func (h *Hooks) GenerationAdvanced(region string, _, to int64, _ string) {
	h.generation.WithLabelValues(region).Set(float64(to))
}

func (h *Hooks) GenerationRestored(region string, gen int64) {
	h.restores.WithLabelValues(region).Inc()
	h.generation.WithLabelValues(region).Set(float64(gen))
}

func (h *Hooks) GenerationConflict(region string, method regioncache.Method, _ int) {
	h.conflicts.WithLabelValues(region, method.String()).Inc()
}

func (h *Hooks) SelfHeal(region, _, reason string) {
	h.selfHeals.WithLabelValues(region, reason).Inc()
}

func (h *Hooks) ExpirationSlid(region, _ string) {
	h.slides.WithLabelValues(region).Inc()
}

func (h *Hooks) ErrorSuppressed(region string, method regioncache.Method, _ error) {
	h.suppressed.WithLabelValues(region, method.String()).Inc()
}

func (h *Hooks) LockAcquired(region, _ string, _ int, waited time.Duration) {
	h.lockWait.WithLabelValues(region, "acquired").Observe(waited.Seconds())
}

func (h *Hooks) LockFailed(region, _ string, _ int, waited time.Duration) {
	h.lockWait.WithLabelValues(region, "failed").Observe(waited.Seconds())
}

func (h *Hooks) UnlockFailed(region, _ string, held bool) {
	h.unlockFails.WithLabelValues(region, strconv.FormatBool(held)).Inc()
}
