package main

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"influxdb-listener/internal/domain"
)

const tickInterval = time.Second

type sampleSource interface {
	Next() (domain.SampleRecord, error)
}

// replayHost plays the load-test engine for recorded results. Its clock
// follows the sample timestamps so replayed points keep their original times.
type replayHost struct {
	mu       sync.Mutex
	clock    time.Time
	active   int
	threads  map[string]struct{}
	finished bool
}

func newReplayHost() *replayHost {
	return &replayHost{threads: make(map[string]struct{})}
}

func (h *replayHost) Now() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.clock
}

// ThreadCounts reports every thread name seen as started, and all of them
// as finished once the file is exhausted.
func (h *replayHost) ThreadCounts() domain.ThreadCounts {
	h.mu.Lock()
	defer h.mu.Unlock()

	tc := domain.ThreadCounts{Active: h.active, Started: len(h.threads)}
	if h.finished {
		tc.Active = 0
		tc.Finished = len(h.threads)
	}
	return tc
}

func (h *replayHost) setClock(t time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clock = t
}

func (h *replayHost) observe(s domain.SampleRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if s.Timestamp.After(h.clock) {
		h.clock = s.Timestamp
	}
	h.active = s.AllThreads
	if s.ThreadName != "" {
		h.threads[s.ThreadName] = struct{}{}
	}
}

func (h *replayHost) finish() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.finished = true
}

type replayStats struct {
	Samples int
	Batches int
	Ticks   int
}

// replay drives l through one test run built from src: setup, samples in
// batches of batchSize, one tick per elapsed second of sample time and
// teardown. Teardown runs even when reading fails or ctx is cancelled.
func replay(ctx context.Context, src sampleSource, l domain.BackendListener, h *replayHost, params map[string]string, batchSize int) (replayStats, error) {
	var stats replayStats

	if batchSize <= 0 {
		batchSize = 1
	}

	first, err := src.Next()
	if err == io.EOF {
		return stats, errors.New("result file has no samples")
	}
	if err != nil {
		return stats, err
	}
	h.setClock(first.Timestamp)

	if err := l.OnSetup(ctx, params); err != nil {
		return stats, err
	}
	defer func() {
		h.finish()
		l.OnTeardown(context.WithoutCancel(ctx))
	}()

	batch := make([]domain.SampleRecord, 0, batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		l.OnSamples(batch)
		stats.Samples += len(batch)
		stats.Batches++
		batch = make([]domain.SampleRecord, 0, batchSize)
	}

	nextTick := first.Timestamp.Add(tickInterval)
	s := first
	for {
		for !s.Timestamp.Before(nextTick) {
			flush()
			h.setClock(nextTick)
			l.OnTick()
			stats.Ticks++
			nextTick = nextTick.Add(tickInterval)
		}

		h.observe(s)
		batch = append(batch, s)
		if len(batch) >= batchSize {
			flush()
		}

		if err := ctx.Err(); err != nil {
			flush()
			return stats, err
		}

		s, err = src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			flush()
			return stats, err
		}
	}

	flush()
	return stats, nil
}
