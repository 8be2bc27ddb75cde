package aggregator

import (
	"math"
	"sync"
	"time"

	"influxdb-listener/internal/domain"
	"influxdb-listener/internal/util"
)

const (
	DefaultInterval    = 1 * time.Second
	DefaultGracePeriod = 30 * time.Second
)

// ActiveThreadTracker keeps min/mean/max of the active thread counts seen
// on samples since the last drain.
type ActiveThreadTracker struct {
	mu  sync.Mutex
	min int
	max int
	sum int
	n   int
}

func (t *ActiveThreadTracker) Observe(active int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.n == 0 || active < t.min {
		t.min = active
	}
	if t.n == 0 || active > t.max {
		t.max = active
	}
	t.sum += active
	t.n++
}

// Drain returns the interval statistics and resets them. With no
// observations all three values are fallback.
func (t *ActiveThreadTracker) Drain(fallback int) (min, mean, max int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.n == 0 {
		return fallback, fallback, fallback
	}
	min, max = t.min, t.max
	mean = int(math.Round(float64(t.sum) / float64(t.n)))
	t.min, t.max, t.sum, t.n = 0, 0, 0, 0
	return min, mean, max
}

type Option func(*Aggregator)

func WithInterval(d time.Duration) Option {
	return func(a *Aggregator) { a.interval = d }
}

func WithGracePeriod(d time.Duration) Option {
	return func(a *Aggregator) { a.grace = d }
}

type state int

const (
	idle state = iota
	running
	stopped
)

// Aggregator periodically snapshots thread counts and hands them to emit.
type Aggregator struct {
	counter  domain.ThreadCounter
	tracker  *ActiveThreadTracker
	emit     func(domain.ThreadCountSnapshot)
	logger   util.Logger
	interval time.Duration
	grace    time.Duration

	mu        sync.Mutex
	state     state
	quit      chan struct{}
	done      chan struct{}
	finalOnce sync.Once
}

func New(counter domain.ThreadCounter, tracker *ActiveThreadTracker, emit func(domain.ThreadCountSnapshot), logger util.Logger, opts ...Option) *Aggregator {
	a := &Aggregator{
		counter:  counter,
		tracker:  tracker,
		emit:     emit,
		logger:   logger,
		interval: DefaultInterval,
		grace:    DefaultGracePeriod,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Tick computes a snapshot and emits it. Ticks after Stop are not emitted.
func (a *Aggregator) Tick() domain.ThreadCountSnapshot {
	tc := a.counter.ThreadCounts()
	min, mean, max := a.tracker.Drain(tc.Active)
	snap := domain.ThreadCountSnapshot{
		MinActive:  min,
		MeanActive: mean,
		MaxActive:  max,
		Started:    tc.Started,
		Finished:   tc.Finished,
	}

	a.mu.Lock()
	st := a.state
	a.mu.Unlock()
	if st != stopped {
		a.emit(snap)
	}
	return snap
}

// Start schedules Tick every interval. The first tick fires after one interval.
func (a *Aggregator) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != idle {
		return
	}
	a.state = running
	a.quit = make(chan struct{})
	a.done = make(chan struct{})

	go a.run(a.quit, a.done)
}

func (a *Aggregator) run(quit <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.Tick()
		case <-quit:
			return
		}
	}
}

// Stop cancels the schedule and waits up to the grace period for an
// in-flight tick. It reports whether the scheduler finished in time.
func (a *Aggregator) Stop() bool {
	a.mu.Lock()
	prev := a.state
	a.state = stopped
	a.mu.Unlock()

	if prev != running {
		return true
	}

	a.logger.LogEvent(util.LOG_LEVEL_INFO, "Shutting down thread count scheduler...")
	close(a.quit)

	select {
	case <-a.done:
		a.logger.LogEvent(util.LOG_LEVEL_INFO, "Thread count scheduler terminated!")
		return true
	case <-time.After(a.grace):
		a.logger.LogEvent(util.LOG_LEVEL_ERROR, "Error waiting for end of thread count scheduler. Waited - ", a.grace)
		return false
	}
}

// Final stops the schedule and emits the closing snapshot: no active or
// started threads, and the host's finished count. Only the first call emits.
func (a *Aggregator) Final() domain.ThreadCountSnapshot {
	var snap domain.ThreadCountSnapshot
	a.finalOnce.Do(func() {
		a.Stop()
		snap.Finished = a.counter.ThreadCounts().Finished
		a.emit(snap)
	})
	return snap
}
