package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service's Prometheus instruments.
type Metrics struct {
	PollCycles     *prometheus.CounterVec
	PollErrors     *prometheus.CounterVec
	SwapsIngested  prometheus.Counter
	SwapsDropped   prometheus.Counter
	PendingSwaps   prometheus.Gauge
	TrackedPools   prometheus.Gauge
	SnapshotAgeSec *prometheus.GaugeVec
}

// New creates and registers the metrics set.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	return &Metrics{
		PollCycles: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "poolscope_poll_cycles_total",
				Help: "Completed poll cycles per pool",
			},
			[]string{"pool"},
		),
		PollErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "poolscope_poll_errors_total",
				Help: "Failed poll cycles per pool and stage",
			},
			[]string{"pool", "stage"},
		),
		SwapsIngested: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "poolscope_swaps_ingested_total",
				Help: "Swap events accepted into the pending queue",
			},
		),
		SwapsDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "poolscope_swaps_dropped_total",
				Help: "Swap events dropped due to queue overflow",
			},
		),
		PendingSwaps: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "poolscope_pending_swaps",
				Help: "Swap events waiting in the pending queue",
			},
		),
		TrackedPools: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "poolscope_tracked_pools",
				Help: "Pools with a live snapshot",
			},
		),
		SnapshotAgeSec: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "poolscope_snapshot_age_seconds",
				Help: "Age of the freshest snapshot per pool",
			},
			[]string{"pool"},
		),
	}
}
