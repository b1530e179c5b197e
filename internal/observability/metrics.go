package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the process-wide counters that cut across subsystems:
// provider request latency/throughput and channel message flow. Each
// subsystem that owns its own counters (internal/orchestrator's turn and
// tool-call counters) registers directly against the same Registerer
// the caller passes to NewMetrics, rather than funneling through here.
//
// Grounded on internal/observability/metrics.go's Metrics struct,
// narrowed to the two concerns that don't already have a home in a
// subsystem-owned metrics.go: LLM provider call latency and channel
// message flow.
type Metrics struct {
	ProviderRequestDuration *prometheus.HistogramVec
	ProviderRequestTotal    *prometheus.CounterVec
	ChannelMessagesTotal    *prometheus.CounterVec
}

// NewMetrics registers and returns the shared Metrics set against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ProviderRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "meao_provider_request_duration_seconds",
			Help:    "LLM provider call latency in seconds.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"provider", "model"}),
		ProviderRequestTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "meao_provider_requests_total",
			Help: "LLM provider calls by outcome.",
		}, []string{"provider", "model", "status"}),
		ChannelMessagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "meao_channel_messages_total",
			Help: "Messages flowing through a channel by direction.",
		}, []string{"channel", "direction"}),
	}
}

// Handler returns the HTTP handler serving /metrics in Prometheus
// exposition format, grounded on the teacher's promhttp.Handler() use in
// its metrics HTTP server wiring.
func Handler() http.Handler {
	return promhttp.Handler()
}
