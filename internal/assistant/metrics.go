package assistant

import "github.com/prometheus/client_golang/prometheus"

var llmLatency = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "agenda",
		Subsystem: "assistant",
		Name:      "llm_latency_seconds",
		Help:      "Latency of LLM completions",
		Buckets:   []float64{0.25, 0.5, 1, 2, 3, 5, 8, 10, 15, 20, 30},
	},
	[]string{"purpose", "status"},
)

var llmTokensTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "agenda",
		Subsystem: "assistant",
		Name:      "llm_tokens_total",
		Help:      "Tokens used by the LLM",
	},
	[]string{"purpose", "type"}, // type: input, output
)

var llmFallbacksTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "agenda",
		Subsystem: "assistant",
		Name:      "fallbacks_total",
		Help:      "Answers replaced by their fixed fallback",
	},
	[]string{"purpose"},
)

var providerFailoversTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "agenda",
		Subsystem: "assistant",
		Name:      "provider_failovers_total",
		Help:      "Completions retried on the secondary provider",
	},
	[]string{"outcome"}, // outcome: recovered, failed
)

func init() {
	prometheus.MustRegister(llmLatency, llmTokensTotal, llmFallbacksTotal, providerFailoversTotal)
}
