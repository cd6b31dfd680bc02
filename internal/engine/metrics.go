package engine

import "github.com/prometheus/client_golang/prometheus"

var (
	explorationsSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prospect_explorations_submitted_total",
			Help: "Total number of explorations submitted to the engine.",
		},
		[]string{"type"},
	)

	explorationsTerminal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prospect_explorations_terminal_total",
			Help: "Total number of explorations that reached a terminal state.",
		},
		[]string{"type", "status"},
	)

	activeExplorations = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "prospect_active_explorations",
			Help: "Number of explorations currently executing in worker slots.",
		},
	)

	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "prospect_queue_depth",
			Help: "Number of explorations waiting in the pending queue.",
		},
	)

	executionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "prospect_execution_seconds",
			Help:    "Handler execution time from running transition to terminal state, in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(explorationsSubmitted)
	prometheus.MustRegister(explorationsTerminal)
	prometheus.MustRegister(activeExplorations)
	prometheus.MustRegister(queueDepth)
	prometheus.MustRegister(executionDuration)
}

// preinitMetrics initializes counter label combinations for the registered
// handler types so they appear in /metrics with value 0 from startup, rather
// than only after first observation.
func preinitMetrics(types []string) {
	for _, tag := range types {
		explorationsSubmitted.WithLabelValues(tag)
		for _, status := range []string{"completed", "failed", "cancelled"} {
			explorationsTerminal.WithLabelValues(tag, status)
		}
	}
}
