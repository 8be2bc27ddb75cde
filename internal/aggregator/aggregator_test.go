package aggregator

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"influxdb-listener/internal/domain"
	"influxdb-listener/internal/util"
)

type fakeCounter struct {
	mu sync.Mutex
	tc domain.ThreadCounts
}

func (f *fakeCounter) ThreadCounts() domain.ThreadCounts {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tc
}

func (f *fakeCounter) set(tc domain.ThreadCounts) {
	f.mu.Lock()
	f.tc = tc
	f.mu.Unlock()
}

type recorder struct {
	mu    sync.Mutex
	snaps []domain.ThreadCountSnapshot
}

func (r *recorder) emit(s domain.ThreadCountSnapshot) {
	r.mu.Lock()
	r.snaps = append(r.snaps, s)
	r.mu.Unlock()
}

func (r *recorder) all() []domain.ThreadCountSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.ThreadCountSnapshot(nil), r.snaps...)
}

func TestActiveThreadTracker(t *testing.T) {
	var tr ActiveThreadTracker

	min, mean, max := tr.Drain(7)
	assert.Equal(t, []int{7, 7, 7}, []int{min, mean, max}, "no observations falls back to live count")

	for _, v := range []int{4, 10, 1, 6} {
		tr.Observe(v)
	}
	min, mean, max = tr.Drain(0)
	assert.Equal(t, 1, min)
	assert.Equal(t, 5, mean)
	assert.Equal(t, 10, max)

	min, mean, max = tr.Drain(3)
	assert.Equal(t, []int{3, 3, 3}, []int{min, mean, max}, "drain resets the interval")
}

func TestActiveThreadTrackerConcurrentObserve(t *testing.T) {
	var tr ActiveThreadTracker
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 1; i <= 100; i++ {
				tr.Observe(i)
			}
		}()
	}
	wg.Wait()

	min, mean, max := tr.Drain(0)
	assert.Equal(t, 1, min)
	assert.Equal(t, 51, mean)
	assert.Equal(t, 100, max)
}

func TestTickUsesTrackerAndHostCounters(t *testing.T) {
	counter := &fakeCounter{tc: domain.ThreadCounts{Active: 3, Started: 12, Finished: 2}}
	tracker := &ActiveThreadTracker{}
	rec := &recorder{}
	agg := New(counter, tracker, rec.emit, &util.ListenerLogger{})

	tracker.Observe(2)
	tracker.Observe(8)

	snap := agg.Tick()
	assert.Equal(t, domain.ThreadCountSnapshot{MinActive: 2, MeanActive: 5, MaxActive: 8, Started: 12, Finished: 2}, snap)

	snap = agg.Tick()
	assert.Equal(t, domain.ThreadCountSnapshot{MinActive: 3, MeanActive: 3, MaxActive: 3, Started: 12, Finished: 2}, snap)
	assert.Len(t, rec.all(), 2)
}

func TestScheduledTicksAndFinal(t *testing.T) {
	counter := &fakeCounter{tc: domain.ThreadCounts{Active: 5, Started: 5}}
	rec := &recorder{}
	agg := New(counter, &ActiveThreadTracker{}, rec.emit, &util.ListenerLogger{}, WithInterval(10*time.Millisecond))

	agg.Start()
	agg.Start()

	assert.Eventually(t, func() bool { return len(rec.all()) >= 3 }, 2*time.Second, 5*time.Millisecond)

	counter.set(domain.ThreadCounts{Active: 0, Started: 5, Finished: 5})
	final := agg.Final()
	assert.Equal(t, domain.ThreadCountSnapshot{Finished: 5}, final)

	snaps := rec.all()
	require.NotEmpty(t, snaps)
	assert.Equal(t, domain.ThreadCountSnapshot{Finished: 5}, snaps[len(snaps)-1])

	assert.Equal(t, 5, snaps[0].MaxActive)
	assert.Equal(t, 5, snaps[0].Started)

	count := len(snaps)
	agg.Final()
	agg.Tick()
	time.Sleep(30 * time.Millisecond)
	assert.Len(t, rec.all(), count, "nothing is emitted after the final snapshot")
}

func TestFinalWithoutStart(t *testing.T) {
	counter := &fakeCounter{tc: domain.ThreadCounts{Finished: 9}}
	rec := &recorder{}
	agg := New(counter, &ActiveThreadTracker{}, rec.emit, &util.ListenerLogger{})

	agg.Final()
	assert.Equal(t, []domain.ThreadCountSnapshot{{Finished: 9}}, rec.all())
}

func TestStopGivesUpAfterGracePeriod(t *testing.T) {
	counter := &fakeCounter{}
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	emit := func(domain.ThreadCountSnapshot) {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
	}
	agg := New(counter, &ActiveThreadTracker{}, emit, &util.ListenerLogger{},
		WithInterval(5*time.Millisecond), WithGracePeriod(20*time.Millisecond))

	agg.Start()
	<-entered

	start := time.Now()
	assert.False(t, agg.Stop())
	assert.Less(t, time.Since(start), time.Second)

	close(release)
}

func TestStopWaitsForInFlightTick(t *testing.T) {
	counter := &fakeCounter{}
	entered := make(chan struct{}, 1)
	emit := func(domain.ThreadCountSnapshot) {
		select {
		case entered <- struct{}{}:
		default:
		}
		time.Sleep(30 * time.Millisecond)
	}
	agg := New(counter, &ActiveThreadTracker{}, emit, &util.ListenerLogger{}, WithInterval(5*time.Millisecond))

	agg.Start()
	<-entered
	assert.True(t, agg.Stop())
}
