package conversation

import "github.com/prometheus/client_golang/prometheus"

var (
	cyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agenda",
			Subsystem: "conversation",
			Name:      "cycles_total",
			Help:      "Inbound messages handled, by routed action and outcome.",
		},
		[]string{"action", "outcome"},
	)
	cycleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "agenda",
			Subsystem: "conversation",
			Name:      "cycle_duration_seconds",
			Help:      "Time from receiving a message to sending the reply.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		},
		[]string{"action"},
	)
)

func init() {
	prometheus.MustRegister(cyclesTotal, cycleDuration)
}
