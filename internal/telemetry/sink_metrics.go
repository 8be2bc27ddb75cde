package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	PointsWrittenTotal = "influxdb_listener_points_written_total"
	PointsDroppedTotal = "influxdb_listener_points_dropped_total"
	WriteFailuresTotal = "influxdb_listener_write_failures_total"
	QueueLength        = "influxdb_listener_queue_length"
	FlushLatency       = "influxdb_listener_flush_latency_seconds"
)

// Drop reasons used as the "reason" label.
const (
	ReasonQueueFull    = "queue_full"
	ReasonInvalidPoint = "invalid_point"
	ReasonWriteFailed  = "write_failed"
	ReasonClosed       = "closed"
)

// SinkMetrics counts what happens to points handed to the write sink.
type SinkMetrics struct {
	written  prometheus.Counter
	dropped  *prometheus.CounterVec
	failures prometheus.Counter
	queue    prometheus.Gauge
	latency  prometheus.Histogram
}

// NewSinkMetrics registers the collectors on reg. A nil reg leaves them
// unregistered.
func NewSinkMetrics(reg prometheus.Registerer) *SinkMetrics {
	m := &SinkMetrics{
		written: prometheus.NewCounter(prometheus.CounterOpts{
			Name: PointsWrittenTotal,
			Help: "Points accepted by the storage backend.",
		}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: PointsDroppedTotal,
			Help: "Points discarded before reaching the storage backend.",
		}, []string{"reason"}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: WriteFailuresTotal,
			Help: "Batch writes rejected by the storage backend.",
		}),
		queue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: QueueLength,
			Help: "Points buffered in the sink waiting for the next flush.",
		}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    FlushLatency,
			Help:    "Time spent writing one batch to the storage backend.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
	}

	if reg != nil {
		reg.MustRegister(m.written, m.dropped, m.failures, m.queue, m.latency)
	}
	return m
}

func (m *SinkMetrics) PointsWritten(n int) { m.written.Add(float64(n)) }

func (m *SinkMetrics) PointsDropped(reason string, n int) {
	m.dropped.WithLabelValues(reason).Add(float64(n))
}

func (m *SinkMetrics) WriteFailed() { m.failures.Inc() }

func (m *SinkMetrics) SetQueueLength(n int) { m.queue.Set(float64(n)) }

func (m *SinkMetrics) ObserveFlush(seconds float64) { m.latency.Observe(seconds) }

func (m *SinkMetrics) Written() prometheus.Counter { return m.written }

func (m *SinkMetrics) Dropped() *prometheus.CounterVec { return m.dropped }

func (m *SinkMetrics) Failures() prometheus.Counter { return m.failures }
