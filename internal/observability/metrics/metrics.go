package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WebhookMetrics exposes counters/histograms for the WhatsApp webhook.
type WebhookMetrics struct {
	inboundTotal   *prometheus.CounterVec
	webhookLatency *prometheus.HistogramVec
}

func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	m := &WebhookMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agenda",
			Subsystem: "webhook",
			Name:      "inbound_total",
			Help:      "Total inbound WhatsApp webhook deliveries by outcome",
		}, []string{"provider", "status"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agenda",
			Subsystem: "webhook",
			Name:      "latency_seconds",
			Help:      "Latency of webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.webhookLatency)
	return m
}

func (m *WebhookMetrics) ObserveInbound(provider, status string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(provider, status).Inc()
}

func (m *WebhookMetrics) ObserveLatency(provider string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(provider).Observe(seconds)
}

// Handler serves the registry in the Prometheus text format. A nil gatherer
// serves the default registry.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
