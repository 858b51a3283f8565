package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecordLLMCallAccumulates(t *testing.T) {
	m := NewMetrics()
	m.RecordLLMCall("backward", 100, 40)
	m.RecordLLMCall("backward", 50, 10)

	require.Equal(t, 2.0, testutil.ToFloat64(m.llmCalls.WithLabelValues("backward")))
	require.Equal(t, 150.0, testutil.ToFloat64(m.llmTokensInput.WithLabelValues("backward")))
	require.Equal(t, 50.0, testutil.ToFloat64(m.llmTokensOutput.WithLabelValues("backward")))
}

func TestObserveBackwardRunCountsRowsAndRuns(t *testing.T) {
	m := NewMetrics()
	m.ObserveBackwardRun(2*time.Second, 20)

	require.Equal(t, 1.0, testutil.ToFloat64(m.backwardRuns))
	require.Equal(t, 20.0, testutil.ToFloat64(m.backwardOSPARows))
}

func TestNilMetricsRecordersAreNoOps(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.RecordLLMCall("chat", 1, 1)
		m.ObserveBackwardRun(time.Second, 1)
		_ = m.Registry()
	})
}
