package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewMetricsRegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ProviderRequestDuration.WithLabelValues("anthropic", "claude-sonnet-4").Observe(1.2)
	m.ProviderRequestTotal.WithLabelValues("anthropic", "claude-sonnet-4", "success").Inc()
	m.ChannelMessagesTotal.WithLabelValues("cli", "inbound").Inc()

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	if len(families) != 3 {
		t.Errorf("expected 3 registered metric families, got %d", len(families))
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	if Handler() == nil {
		t.Fatal("expected a non-nil metrics handler")
	}
}
