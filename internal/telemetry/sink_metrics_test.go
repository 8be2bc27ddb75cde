package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSinkMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSinkMetrics(reg)

	m.PointsWritten(5)
	m.PointsWritten(2)
	assert.Equal(t, 7.0, testutil.ToFloat64(m.written))

	m.PointsDropped(ReasonQueueFull, 3)
	m.PointsDropped(ReasonWriteFailed, 1)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.dropped.WithLabelValues(ReasonQueueFull)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dropped.WithLabelValues(ReasonWriteFailed)))

	m.WriteFailed()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures))

	m.SetQueueLength(42)
	assert.Equal(t, 42.0, testutil.ToFloat64(m.queue))

	m.ObserveFlush(0.25)
	assert.Equal(t, 1, testutil.CollectAndCount(m.latency))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.ElementsMatch(t, []string{PointsWrittenTotal, PointsDroppedTotal, WriteFailuresTotal, QueueLength, FlushLatency}, names)
}

func TestSinkMetricsWithoutRegistry(t *testing.T) {
	m := NewSinkMetrics(nil)
	m.PointsWritten(1)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.written))
}
