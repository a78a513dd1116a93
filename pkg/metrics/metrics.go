// Package metrics exposes the Prometheus counters and gauges the tree
// builder service increments, per SPEC_FULL.md §5.
// No teacher package covers this role (eigenx-kms-go has no metrics
// surface); grounded instead on the pack's broader use of
// github.com/prometheus/client_golang as the ecosystem's default choice
// for "count and expose service health".
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Builder holds the counters and gauges scoped to one tree builder
// instance (one per accumulator kind).
type Builder struct {
	RowsIncluded         prometheus.Counter
	RowsFailed           prometheus.Counter
	RebuildDurationSecs  prometheus.Histogram
	PollTickErrors       prometheus.Counter
	AccumulatorLeafCount prometheus.Gauge
	BuilderHalted        prometheus.Gauge
}

// NewBuilder registers and returns the metrics for a builder of the given
// accumulator kind. kind is used as a constant label so a single registry
// can serve both the MMR and Poseidon builders.
func NewBuilder(reg prometheus.Registerer, kind string) *Builder {
	labels := prometheus.Labels{"kind": kind}

	b := &Builder{
		RowsIncluded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "bridge_sequencer",
			Name:        "builder_rows_included_total",
			Help:        "Total commitments marked included by this builder.",
			ConstLabels: labels,
		}),
		RowsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "bridge_sequencer",
			Name:        "builder_rows_failed_total",
			Help:        "Total commitments marked FAILED by this builder.",
			ConstLabels: labels,
		}),
		RebuildDurationSecs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "bridge_sequencer",
			Name:        "builder_rebuild_duration_seconds",
			Help:        "Time spent replaying included rows on startup.",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),
		PollTickErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "bridge_sequencer",
			Name:        "builder_poll_tick_errors_total",
			Help:        "Total poll ticks aborted due to a transient store error.",
			ConstLabels: labels,
		}),
		AccumulatorLeafCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "bridge_sequencer",
			Name:        "builder_accumulator_leaf_count",
			Help:        "Current number of leaves in the in-memory accumulator.",
			ConstLabels: labels,
		}),
		BuilderHalted: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "bridge_sequencer",
			Name:        "builder_halted",
			Help:        "1 if the builder has halted on an InvariantViolation, else 0.",
			ConstLabels: labels,
		}),
	}

	if reg != nil {
		reg.MustRegister(
			b.RowsIncluded,
			b.RowsFailed,
			b.RebuildDurationSecs,
			b.PollTickErrors,
			b.AccumulatorLeafCount,
			b.BuilderHalted,
		)
	}

	return b
}
