package sink

import (
	"context"
	"fmt"
	"sync"
	"time"

	"influxdb-listener/internal/domain"
	"influxdb-listener/internal/telemetry"
	"influxdb-listener/internal/util"
)

const (
	DefaultBatchSize     = 1000
	DefaultFlushInterval = 1 * time.Second
	DefaultQueueSize     = 10000
	DefaultWriteTimeout  = 1 * time.Minute
)

type Options struct {
	BatchSize     int
	FlushInterval time.Duration
	QueueSize     int
	WriteTimeout  time.Duration
}

func (o *Options) applyDefaults() {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = DefaultFlushInterval
	}
	if o.QueueSize <= 0 {
		o.QueueSize = DefaultQueueSize
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
}

// Sink buffers points and writes them to a PointStore in batches. Storage
// problems are logged and counted, never returned: losing telemetry must not
// disturb the test run.
type Sink struct {
	store   domain.PointStore
	logger  util.Logger
	metrics *telemetry.SinkMetrics
	opts    Options

	queue     chan domain.Point
	done      chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex // held for reading while queueing, for writing while closing
	closed    bool
	closeOnce sync.Once
}

func New(store domain.PointStore, logger util.Logger, metrics *telemetry.SinkMetrics, opts Options) *Sink {
	opts.applyDefaults()
	if metrics == nil {
		metrics = telemetry.NewSinkMetrics(nil)
	}

	s := &Sink{
		store:   store,
		logger:  logger,
		metrics: metrics,
		opts:    opts,
		queue:   make(chan domain.Point, opts.QueueSize),
		done:    make(chan struct{}),
	}

	s.wg.Add(1)
	go s.runLoop()

	return s
}

// Write queues p for the next flush. It never blocks on the backend.
func (s *Sink) Write(p domain.Point) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		s.metrics.PointsDropped(telemetry.ReasonClosed, 1)
		return
	}
	if err := p.Validate(); err != nil {
		s.metrics.PointsDropped(telemetry.ReasonInvalidPoint, 1)
		s.logger.LogEvent(util.LOG_LEVEL_ERROR, "Dropping invalid point for measurement ", p.Measurement, ". Err - ", err)
		return
	}

	select {
	case s.queue <- p:
		s.metrics.SetQueueLength(len(s.queue))
	default:
		s.metrics.PointsDropped(telemetry.ReasonQueueFull, 1)
		s.logger.LogEvent(util.LOG_LEVEL_WARN, "Sink queue full, dropping point for measurement ", p.Measurement)
	}
}

// EnsureStorageExists creates the named storage when the backend does not
// list it. Failures are logged only.
func (s *Sink) EnsureStorageExists(ctx context.Context, name string) {
	names, err := s.store.ListStorages(ctx)
	if err != nil {
		s.logger.LogEvent(util.LOG_LEVEL_ERROR, "Failed to list storages. Err - ", err)
		return
	}
	for _, n := range names {
		if n == name {
			return
		}
	}

	if err := s.store.CreateStorage(ctx, name); err != nil {
		s.logger.LogEvent(util.LOG_LEVEL_ERROR, "Failed to create storage: ", name, ". Err - ", err)
		return
	}
	s.logger.LogEvent(util.LOG_LEVEL_INFO, "Created storage ", name)
}

// Close flushes queued points and closes the store. Later calls are no-ops.
func (s *Sink) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		close(s.done)
		s.wg.Wait()

		if err := s.store.Close(); err != nil {
			s.logger.LogEvent(util.LOG_LEVEL_ERROR, "Failed to close storage backend. Err - ", err)
		}
	})
}

func (s *Sink) runLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.opts.FlushInterval)
	defer ticker.Stop()

	batch := make([]domain.Point, 0, s.opts.BatchSize)

	send := func() {
		if len(batch) == 0 {
			return
		}
		s.flush(batch)
		batch = make([]domain.Point, 0, s.opts.BatchSize)
		s.metrics.SetQueueLength(len(s.queue))
	}

	for {
		select {
		case p := <-s.queue:
			batch = append(batch, p)
			if len(batch) >= s.opts.BatchSize {
				send()
			}
		case <-ticker.C:
			send()
		case <-s.done:
			for {
				select {
				case p := <-s.queue:
					batch = append(batch, p)
					if len(batch) >= s.opts.BatchSize {
						send()
					}
				default:
					send()
					return
				}
			}
		}
	}
}

// flush writes batch grouped by precision, keeping arrival order within a group.
func (s *Sink) flush(batch []domain.Point) {
	var order []domain.Precision
	groups := make(map[domain.Precision][]domain.Point)
	for _, p := range batch {
		if _, ok := groups[p.Precision]; !ok {
			order = append(order, p.Precision)
		}
		groups[p.Precision] = append(groups[p.Precision], p)
	}

	for _, precision := range order {
		points := groups[precision]
		start := time.Now()
		err := s.writeGroup(points)
		s.metrics.ObserveFlush(time.Since(start).Seconds())

		if err != nil {
			s.metrics.WriteFailed()
			s.metrics.PointsDropped(telemetry.ReasonWriteFailed, len(points))
			s.logger.LogEvent(util.LOG_LEVEL_ERROR, "Failed writing ", len(points), " points. Err - ", err)
			continue
		}
		s.metrics.PointsWritten(len(points))
	}
}

func (s *Sink) writeGroup(points []domain.Point) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("storage backend panicked: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.WriteTimeout)
	defer cancel()
	return s.store.WritePoints(ctx, points)
}
