package risk

import "github.com/prometheus/client_golang/prometheus"

var (
	breakerTrips = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_breaker_trips_total",
			Help: "Circuit breaker trips by breaker kind and scope.",
		},
		[]string{"breaker", "scope"},
	)

	breakerResets = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_breaker_resets_total",
			Help: "Circuit breaker resets to CLOSED by breaker kind and scope.",
		},
		[]string{"breaker", "scope"},
	)

	breakerProbes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_breaker_probes_total",
			Help: "Circuit breaker HALF_OPEN probes by breaker kind, scope and outcome.",
		},
		[]string{"breaker", "scope", "outcome"},
	)

	preTradeRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_pretrade_rejections_total",
			Help: "Pre-trade gate rejections by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(breakerTrips, breakerResets, breakerProbes, preTradeRejections)
}
