package listener

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"influxdb-listener/internal/aggregator"
	"influxdb-listener/internal/config"
	"influxdb-listener/internal/domain"
	"influxdb-listener/internal/filter"
	"influxdb-listener/internal/mapper"
	"influxdb-listener/internal/repository"
	"influxdb-listener/internal/sink"
	"influxdb-listener/internal/telemetry"
	"influxdb-listener/internal/util"
)

// defaultLogOutput receives the logs of listeners built without WithLogger.
var defaultLogOutput io.Writer = os.Stderr

var (
	ErrAlreadySetUp = errors.New("listener is already set up")
	ErrNoCounter    = errors.New("listener needs a thread counter")
)

type loggerSetter interface {
	SetLogger(util.Logger)
}

// StoreFactory opens the backend for cfg and names the storage (database or
// table) points are written to.
type StoreFactory func(cfg *config.Config) (domain.PointStore, string, error)

// DefaultStoreFactory picks InfluxDB or SQLite from the storage type.
func DefaultStoreFactory(cfg *config.Config) (domain.PointStore, string, error) {
	switch cfg.Storage.Type {
	case config.StorageInfluxDB:
		return repository.NewInfluxStore(repository.InfluxConfig{
			URL:             cfg.InfluxDB.URL(),
			Username:        cfg.InfluxDB.User,
			Password:        cfg.InfluxDB.Password,
			Database:        cfg.InfluxDB.Database,
			RetentionPolicy: cfg.InfluxDB.RetentionPolicy,
			Timeout:         cfg.InfluxDB.Timeout,
		}), cfg.InfluxDB.Database, nil
	case config.StorageSQLite:
		return repository.NewSQLiteStore(cfg.Storage.SQLitePath, cfg.InfluxDB.Database), cfg.InfluxDB.Database, nil
	default:
		return nil, "", fmt.Errorf("%w: %q", config.ErrUnknownStorage, cfg.Storage.Type)
	}
}

type Option func(*Listener)

func WithLogger(logger util.Logger) Option {
	return func(l *Listener) { l.logger = logger }
}

func WithRand(rnd mapper.RandSource) Option {
	return func(l *Listener) { l.rnd = rnd }
}

func WithClock(now func() time.Time) Option {
	return func(l *Listener) { l.now = now }
}

func WithStoreFactory(f StoreFactory) Option {
	return func(l *Listener) { l.newStore = f }
}

// WithRegisterer registers the sink metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(l *Listener) { l.registerer = reg }
}

func WithAggregatorOptions(opts ...aggregator.Option) Option {
	return func(l *Listener) { l.aggOpts = append(l.aggOpts, opts...) }
}

func WithSinkOptions(opts sink.Options) Option {
	return func(l *Listener) { l.sinkOpts = opts }
}

// WithManualTicks leaves thread count ticks to the host's OnTick calls
// instead of the internal scheduler.
func WithManualTicks() Option {
	return func(l *Listener) { l.manualTicks = true }
}

// Listener records sample results into a time-series store.
type Listener struct {
	counter     domain.ThreadCounter
	logger      util.Logger
	ownLogger   *util.ListenerLogger
	rnd         mapper.RandSource
	rndMu       sync.Mutex
	now         func() time.Time
	newStore    StoreFactory
	registerer  prometheus.Registerer
	aggOpts     []aggregator.Option
	sinkOpts    sink.Options
	manualTicks bool

	ready        atomic.Bool
	torn         atomic.Bool
	cfg          *config.Config
	filter       *filter.SampleFilter
	sink         *sink.Sink
	metrics      *telemetry.SinkMetrics
	tracker      *aggregator.ActiveThreadTracker
	aggregator   *aggregator.Aggregator
	mapOpts      mapper.Options
	teardownOnce sync.Once
}

var _ domain.BackendListener = (*Listener)(nil)

func New(counter domain.ThreadCounter, opts ...Option) *Listener {
	l := &Listener{
		counter:  counter,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
		now:      time.Now,
		newStore: DefaultStoreFactory,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.ownLogger = &util.ListenerLogger{}
		l.ownLogger.InitWriter(defaultLogOutput)
		l.logger = l.ownLogger
	}
	return l
}

// Config is nil until OnSetup succeeds.
func (l *Listener) Config() *config.Config {
	return l.cfg
}

// Metrics is nil until OnSetup succeeds.
func (l *Listener) Metrics() *telemetry.SinkMetrics {
	return l.metrics
}

// OnSetup parses params, opens the store and writes the run's STARTED
// marker. Storage problems after the store is open are only logged.
func (l *Listener) OnSetup(ctx context.Context, params map[string]string) error {
	if l.ready.Load() {
		return ErrAlreadySetUp
	}
	if l.counter == nil {
		return ErrNoCounter
	}

	cfg, err := config.FromParams(config.Params(params))
	if err != nil {
		return err
	}

	f, err := filter.New(cfg.Samplers.List, cfg.Samplers.UseRegex)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", config.KeySamplersList, err)
	}

	store, storage, err := l.newStore(cfg)
	if err != nil {
		return err
	}
	if ls, ok := store.(loggerSetter); ok {
		ls.SetLogger(l.logger)
	}
	if err := store.Init(); err != nil {
		return fmt.Errorf("error opening %s backend: %w", cfg.Storage.Type, err)
	}

	opts := l.sinkOpts
	if opts.BatchSize <= 0 {
		opts.BatchSize = cfg.Sink.BatchSize
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = cfg.Sink.FlushInterval
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = cfg.InfluxDB.Timeout
	}

	l.cfg = cfg
	l.filter = f
	l.mapOpts = mapper.Options{IncludeFailureBody: cfg.Samplers.IncludeFailureBody}
	l.metrics = telemetry.NewSinkMetrics(l.registerer)
	l.sink = sink.New(store, l.logger, l.metrics, opts)
	l.sink.EnsureStorageExists(ctx, storage)

	l.logger.LogEvent(util.LOG_LEVEL_INFO, "Recording run ", cfg.Run.RunID, " of test ", cfg.Run.TestName,
		" from node ", cfg.Run.NodeName, " into ", cfg.Storage.Type, " storage ", storage)
	l.sink.Write(mapper.LifecyclePoint(mapper.TypeStarted, cfg.Run, l.now()))

	l.tracker = &aggregator.ActiveThreadTracker{}
	l.aggregator = aggregator.New(l.counter, l.tracker, l.emitVirtualUsers, l.logger, l.aggOpts...)
	if !l.manualTicks {
		l.aggregator.Start()
	}

	l.ready.Store(true)
	return nil
}

// OnSamples maps every recorded sample to a requests point. Safe for
// concurrent use.
func (l *Listener) OnSamples(samples []domain.SampleRecord) {
	if !l.ready.Load() || l.torn.Load() {
		l.logger.LogEvent(util.LOG_LEVEL_WARN, "Ignoring ", len(samples), " samples outside of a running test")
		return
	}

	for _, s := range filter.Flatten(samples, l.cfg.Samplers.RecordSubSamples) {
		l.tracker.Observe(s.AllThreads)
		if !l.filter.ShouldRecord(s.Label) {
			continue
		}

		opts := l.mapOpts
		opts.TimestampNanos = l.uniqueTimestamp()
		l.sink.Write(mapper.MapToPoint(s, l.cfg.Run, opts))
	}
}

// OnTick emits one virtualUsers point.
func (l *Listener) OnTick() {
	if !l.ready.Load() {
		return
	}
	l.aggregator.Tick()
}

// OnTeardown writes the closing thread counts and the FINISHED marker, then
// flushes the sink. It gives up waiting for the flush when ctx is done.
func (l *Listener) OnTeardown(ctx context.Context) {
	if !l.ready.Load() {
		return
	}

	l.teardownOnce.Do(func() {
		l.aggregator.Final()
		l.sink.Write(mapper.LifecyclePoint(mapper.TypeFinished, l.cfg.Run, l.now()))
		l.torn.Store(true)

		done := make(chan struct{})
		go func() {
			l.sink.Close()
			close(done)
		}()

		select {
		case <-done:
			l.logger.LogEvent(util.LOG_LEVEL_INFO, "Run ", l.cfg.Run.RunID, " finished")
			if l.ownLogger != nil {
				l.ownLogger.DeInit()
			}
		case <-ctx.Done():
			l.logger.LogEvent(util.LOG_LEVEL_ERROR, "Gave up waiting for sink to flush. Err - ", ctx.Err())
		}
	})
}

func (l *Listener) emitVirtualUsers(snap domain.ThreadCountSnapshot) {
	l.sink.Write(mapper.VirtualUsersPoint(snap, l.cfg.Run, l.now()))
}

func (l *Listener) uniqueTimestamp() int64 {
	l.rndMu.Lock()
	defer l.rndMu.Unlock()
	return mapper.UniqueTimestamp(l.now(), l.rnd)
}
