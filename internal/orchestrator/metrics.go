package orchestrator

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the orchestrator's Prometheus instrumentation. Grounded on
// internal/observability's metrics registration pattern in the teacher
// repo, narrowed to the counters spec.md §4.1 calls for: turn and
// tool-call counts, plus token throughput.
type Metrics struct {
	TurnsStarted      prometheus.Counter
	TurnsCompleted     prometheus.Counter
	ToolCallsExecuted prometheus.Counter
	InputTokens       prometheus.Counter
	OutputTokens      prometheus.Counter
}

// NewMetrics constructs unregistered collectors; callers that want them
// exported call Register against a prometheus.Registerer.
func NewMetrics() *Metrics {
	return &Metrics{
		TurnsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meao_orchestrator_turns_started_total",
			Help: "Turns begun by the orchestrator.",
		}),
		TurnsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meao_orchestrator_turns_completed_total",
			Help: "Turns that reached end_turn or a terminal failure.",
		}),
		ToolCallsExecuted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meao_orchestrator_tool_calls_total",
			Help: "Tool calls dispatched to the ToolExecutor.",
		}),
		InputTokens: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meao_orchestrator_input_tokens_total",
			Help: "Cumulative input tokens billed across all turns.",
		}),
		OutputTokens: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meao_orchestrator_output_tokens_total",
			Help: "Cumulative output tokens billed across all turns.",
		}),
	}
}

// Register adds every collector to reg. Safe to call once per process.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.TurnsStarted, m.TurnsCompleted, m.ToolCallsExecuted, m.InputTokens, m.OutputTokens,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
