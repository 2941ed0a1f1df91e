package execution

import (
	"testing"
)

// TestMetrics_Registration tests all metrics are initialized
func TestMetrics_Registration(t *testing.T) {
	if PhaseDurationSeconds == nil {
		t.Error("PhaseDurationSeconds not registered")
	}

	if PhaseFailuresTotal == nil {
		t.Error("PhaseFailuresTotal not registered")
	}

	if FlowAttemptsTotal == nil {
		t.Error("FlowAttemptsTotal not registered")
	}

	if FlowsCompletedTotal == nil {
		t.Error("FlowsCompletedTotal not registered")
	}

	if FlowsFailedTotal == nil {
		t.Error("FlowsFailedTotal not registered")
	}

	if DryRunsTotal == nil {
		t.Error("DryRunsTotal not registered")
	}

	if ExecutionsBlockedTotal == nil {
		t.Error("ExecutionsBlockedTotal not registered")
	}

	if ActiveRuns == nil {
		t.Error("ActiveRuns not registered")
	}

	if ListenerPanicsTotal == nil {
		t.Error("ListenerPanicsTotal not registered")
	}
}

// TestMetrics_Labels tests label values are accepted
func TestMetrics_Labels(t *testing.T) {
	PhaseDurationSeconds.WithLabelValues("SWAPPING").Observe(1.5)
	PhaseFailuresTotal.WithLabelValues("BRIDGING").Inc()
	FlowsFailedTotal.WithLabelValues("exhausted").Inc()
	FlowsFailedTotal.WithLabelValues("not_ready").Inc()
	ListenerPanicsTotal.WithLabelValues("progress").Inc()
}
