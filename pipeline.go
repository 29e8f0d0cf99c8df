package starmap

import (
	"context"
	"errors"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/goliatone/go-starmap/diag"
	"github.com/goliatone/go-starmap/pkg/config"
	"github.com/goliatone/go-starmap/pkg/metrics"
)

// PipelineOption configures a Pipeline.
type PipelineOption func(*pipelineConfig)

type pipelineConfig struct {
	diag       diag.Sink
	metrics    metrics.Recorder
	clock      clock.Clock
	store      Store
	factory    WorkerFactory
	factorySet bool
	timeout    time.Duration
	threshold  int
	sample     int
	queue      int
}

// PipelineWithDiagnostics reports normalization, cache and worker events to
// sink.
func PipelineWithDiagnostics(sink diag.Sink) PipelineOption {
	return func(cfg *pipelineConfig) {
		cfg.diag = diag.OrNop(sink)
	}
}

// PipelineWithMetrics records cache and worker counters on recorder.
func PipelineWithMetrics(recorder metrics.Recorder) PipelineOption {
	return func(cfg *pipelineConfig) {
		if recorder != nil {
			cfg.metrics = recorder
		}
	}
}

// PipelineWithClock injects the clock used for worker timeouts.
func PipelineWithClock(clk clock.Clock) PipelineOption {
	return func(cfg *pipelineConfig) {
		if clk != nil {
			cfg.clock = clk
		}
	}
}

// PipelineWithStore backs the cache with store.
func PipelineWithStore(store Store) PipelineOption {
	return func(cfg *pipelineConfig) {
		cfg.store = store
	}
}

// PipelineWithWorkerFactory sets how background workers are built. A nil
// factory keeps every load synchronous.
func PipelineWithWorkerFactory(factory WorkerFactory) PipelineOption {
	return func(cfg *pipelineConfig) {
		cfg.factory = factory
		cfg.factorySet = true
	}
}

// PipelineWithWorkerTimeout bounds how long an offloaded load may take.
// Zero or less keeps DefaultWorkerTimeout.
func PipelineWithWorkerTimeout(timeout time.Duration) PipelineOption {
	return func(cfg *pipelineConfig) {
		cfg.timeout = timeout
	}
}

// PipelineWithSettings applies cache and worker settings. A disabled worker
// makes every load synchronous unless a factory is set explicitly.
func PipelineWithSettings(settings *config.Settings) PipelineOption {
	return func(cfg *pipelineConfig) {
		if settings == nil {
			return
		}
		cfg.threshold = settings.Cache.Threshold
		cfg.sample = settings.Cache.FingerprintSize
		cfg.timeout = settings.Worker.Timeout
		cfg.queue = settings.Worker.Queue
		if !settings.Worker.Enabled && !cfg.factorySet {
			cfg.factory = nil
			cfg.factorySet = true
		}
	}
}

// Pipeline is the dataset load boundary: normalization, caching and
// optional background offload wired together.
type Pipeline struct {
	diag        diag.Sink
	normalizer  *Normalizer
	cache       *Cache
	coordinator *Coordinator
}

// NewPipeline builds a pipeline. Without options it uses goroutine workers,
// a memory store and the default timeout and key parameters.
func NewPipeline(opts ...PipelineOption) *Pipeline {
	cfg := pipelineConfig{
		diag:    diag.Nop(),
		metrics: metrics.Nop(),
		clock:   clock.New(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if !cfg.factorySet {
		cfg.factory = GoroutineWorkerFactory(cfg.diag, cfg.queue)
	}

	normalizer := NewNormalizer(cfg.diag)
	cache := NewCache(
		CacheWithStore(cfg.store),
		CacheWithThreshold(cfg.threshold),
		CacheWithFingerprintSize(cfg.sample),
		CacheWithDiagnostics(cfg.diag),
		CacheWithMetrics(cfg.metrics),
	)
	coordinator := NewCoordinator(cache, normalizer,
		CoordinatorWithFactory(cfg.factory),
		CoordinatorWithTimeout(cfg.timeout),
		CoordinatorWithClock(cfg.clock),
		CoordinatorWithDiagnostics(cfg.diag),
		CoordinatorWithMetrics(cfg.metrics),
	)
	return &Pipeline{
		diag:        cfg.diag,
		normalizer:  normalizer,
		cache:       cache,
		coordinator: coordinator,
	}
}

// Normalize returns the cached canonical dataset for raw, computing it on a
// miss.
func (p *Pipeline) Normalize(raw any) *Dataset {
	return p.cache.Memoize(raw, p.normalizer.Normalize)
}

// NormalizeAsync offloads normalization, see Coordinator.NormalizeAsync.
func (p *Pipeline) NormalizeAsync(raw any) <-chan Result {
	return p.coordinator.NormalizeAsync(raw)
}

// LoadOptions selects the load path.
type LoadOptions struct {
	Async bool
}

// Loaded is the outcome of Load. Dataset is set for synchronous loads,
// Pending for asynchronous ones.
type Loaded struct {
	Dataset *Dataset
	Pending <-chan Result

	raw      any
	pipeline *Pipeline
}

// Load normalizes raw synchronously or in the background.
func (p *Pipeline) Load(raw any, opts LoadOptions) Loaded {
	if opts.Async {
		return Loaded{Pending: p.NormalizeAsync(raw), raw: raw, pipeline: p}
	}
	return Loaded{Dataset: p.Normalize(raw), raw: raw, pipeline: p}
}

// Wait returns the dataset of either load path. When the background path
// fails the dataset is recomputed synchronously and the failure is reported
// as a critical diagnostic. Only ctx errors are returned.
func (l Loaded) Wait(ctx context.Context) (*Dataset, error) {
	if l.Pending == nil {
		if l.Dataset == nil {
			return EmptyDataset(), nil
		}
		return l.Dataset, nil
	}
	dataset, err := Await(ctx, l.Pending)
	if err == nil {
		return dataset, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || l.pipeline == nil {
		return nil, err
	}
	recovered := l.pipeline.diag.CriticalWithFallback("pipeline: background normalization failed", err, func() any {
		return l.pipeline.Normalize(l.raw)
	})
	if dataset, ok := recovered.(*Dataset); ok && dataset != nil {
		return dataset, nil
	}
	return EmptyDataset(), nil
}

// LoadInto loads raw and installs the result with container.SetDataset.
func (p *Pipeline) LoadInto(ctx context.Context, container *Container, raw any, opts LoadOptions) (*Dataset, error) {
	dataset, err := p.Load(raw, opts).Wait(ctx)
	if err != nil {
		return nil, err
	}
	container.SetDataset(dataset)
	return dataset, nil
}

// Cache exposes the cache shared by both load paths.
func (p *Pipeline) Cache() *Cache {
	return p.cache
}

// Pending reports background requests awaiting a reply.
func (p *Pipeline) Pending() int {
	return p.coordinator.Pending()
}

// Close stops the background worker. Pending loads are rejected with
// ErrWorkerClosed; Wait recovers them synchronously.
func (p *Pipeline) Close() error {
	return p.coordinator.Close()
}
