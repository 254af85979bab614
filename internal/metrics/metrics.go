package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var (
	ToolInvocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agent",
		Name:      "tool_invocations_total",
		Help:      "Tool invocations by tool and envelope outcome.",
	}, []string{"tool", "outcome"})

	ToolDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "agent",
		Name:      "tool_invocation_duration_seconds",
		Help:      "Wall time of tool invocations, including the backend round trip.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"tool"})

	SideEffectFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agent",
		Name:      "tool_side_effect_failures_total",
		Help:      "Failures to record, publish or journal a tool invocation.",
	}, []string{"sink"})
)

func Outcome(success bool) string {
	if success {
		return OutcomeSuccess
	}
	return OutcomeFailure
}
