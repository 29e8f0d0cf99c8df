package starmap

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/goliatone/go-starmap/diag"
	"github.com/goliatone/go-starmap/layering"
	"github.com/goliatone/go-starmap/pkg/metrics"
)

// DefaultWorkerTimeout bounds how long an offloaded request may take before
// the call falls back to synchronous normalization.
const DefaultWorkerTimeout = 5 * time.Second

// Result settles one asynchronous normalization.
type Result struct {
	Dataset *Dataset
	Err     error
}

// Await blocks until result settles or ctx is done.
func Await(ctx context.Context, result <-chan Result) (*Dataset, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case r := <-result:
		return r.Dataset, r.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// CoordinatorWithFactory sets how workers are built. A nil factory means no
// background support.
func CoordinatorWithFactory(factory WorkerFactory) CoordinatorOption {
	return func(c *Coordinator) {
		c.factory = factory
	}
}

// CoordinatorWithTimeout bounds how long a request waits for its reply.
func CoordinatorWithTimeout(timeout time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// CoordinatorWithClock injects the clock used for request timeouts.
func CoordinatorWithClock(clk clock.Clock) CoordinatorOption {
	return func(c *Coordinator) {
		if clk != nil {
			c.clock = clk
		}
	}
}

// CoordinatorWithDiagnostics reports fallbacks and faults to sink.
func CoordinatorWithDiagnostics(sink diag.Sink) CoordinatorOption {
	return func(c *Coordinator) {
		c.diag = diag.OrNop(sink)
	}
}

// CoordinatorWithMetrics counts dispatches, fallbacks and faults on recorder.
func CoordinatorWithMetrics(recorder metrics.WorkerRecorder) CoordinatorOption {
	return func(c *Coordinator) {
		if recorder != nil {
			c.metrics = recorder
		}
	}
}

// Coordinator offloads normalization to a background worker and correlates
// replies by request id. Replies may arrive in any order; replies for
// requests that already settled are discarded.
type Coordinator struct {
	cache      *Cache
	normalizer *Normalizer
	factory    WorkerFactory
	timeout    time.Duration
	clock      clock.Clock
	diag       diag.Sink
	metrics    metrics.WorkerRecorder

	mu       sync.Mutex
	worker   Worker
	disabled bool
	nextID   uint64
	pending  map[uint64]*pendingCall
}

type pendingCall struct {
	result chan Result
	raw    any
	key    string
	keyed  bool
	timer  *clock.Timer
}

// NewCoordinator builds a coordinator sharing cache with the synchronous
// path. Without CoordinatorWithFactory it uses goroutine workers.
func NewCoordinator(cache *Cache, normalizer *Normalizer, opts ...CoordinatorOption) *Coordinator {
	if cache == nil {
		cache = NewCache()
	}
	if normalizer == nil {
		normalizer = NewNormalizer(nil)
	}
	c := &Coordinator{
		cache:      cache,
		normalizer: normalizer,
		timeout:    DefaultWorkerTimeout,
		clock:      clock.New(),
		diag:       diag.Nop(),
		metrics:    metrics.Nop(),
		pending:    map[uint64]*pendingCall{},
	}
	c.factory = GoroutineWorkerFactory(normalizer.diag, 0)
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// NormalizeAsync normalizes raw in the background. The returned channel
// receives exactly one Result. Without a usable worker the channel is
// already settled with the synchronous, cached result. The worker receives
// a deep copy of raw, so later changes by the caller do not reach it.
func (c *Coordinator) NormalizeAsync(raw any) <-chan Result {
	key, keyed := c.cache.lookupKey(raw)
	if keyed {
		if cached, hit := c.cache.lookup(key); hit {
			return settled(Result{Dataset: cached})
		}
	}

	c.mu.Lock()
	worker, err := c.ensureWorkerLocked()
	if err != nil {
		c.mu.Unlock()
		c.metrics.WorkerFallback(metrics.ReasonUnavailable)
		return settled(Result{Dataset: c.normalizeLocal(raw, key, keyed)})
	}
	c.nextID++
	id := c.nextID
	call := &pendingCall{
		result: make(chan Result, 1),
		raw:    raw,
		key:    key,
		keyed:  keyed,
	}
	c.pending[id] = call
	call.timer = c.clock.AfterFunc(c.timeout, func() { c.expire(id) })
	c.mu.Unlock()

	if err := worker.Post(Request{ID: id, Raw: layering.Clone(raw)}); err != nil {
		if call := c.take(id); call != nil {
			call.timer.Stop()
			c.diag.Warn("worker: dispatch failed, normalizing synchronously", "id", id, "err", err)
			c.metrics.WorkerFallback(metrics.ReasonUnavailable)
			call.result <- Result{Dataset: c.normalizeLocal(raw, key, keyed)}
		}
		return call.result
	}
	c.metrics.WorkerDispatched()
	return call.result
}

// Pending reports how many dispatched requests are still awaiting a reply.
func (c *Coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Close shuts the active worker down and rejects every pending request.
// Later calls normalize synchronously.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	worker := c.worker
	c.worker = nil
	c.disabled = true
	calls := c.pending
	c.pending = map[uint64]*pendingCall{}
	c.mu.Unlock()

	for _, call := range calls {
		call.timer.Stop()
		call.result <- Result{Err: ErrWorkerClosed}
	}
	if worker != nil {
		return worker.Close()
	}
	return nil
}

func (c *Coordinator) ensureWorkerLocked() (Worker, error) {
	if c.worker != nil {
		return c.worker, nil
	}
	if c.disabled {
		return nil, ErrWorkerUnavailable
	}
	if c.factory == nil {
		c.disabled = true
		c.diag.Info("worker: no factory configured, normalizing synchronously")
		return nil, ErrWorkerUnavailable
	}
	worker, err := c.factory()
	if err == nil && worker == nil {
		err = ErrWorkerUnavailable
	}
	if err != nil {
		c.disabled = true
		c.diag.Warn("worker: construction failed, normalizing synchronously from now on", "err", err)
		return nil, err
	}
	c.worker = worker
	go c.listen(worker)
	return worker, nil
}

func (c *Coordinator) listen(worker Worker) {
	for {
		select {
		case reply := <-worker.Replies():
			c.handleReply(reply)
		case err := <-worker.Faults():
			c.handleFault(worker, err)
			return
		case <-worker.Done():
			return
		}
	}
}

func (c *Coordinator) handleReply(reply Reply) {
	call := c.take(reply.ID)
	if call == nil {
		c.diag.Info("worker: discarding reply for settled request", "id", reply.ID)
		return
	}
	call.timer.Stop()
	if reply.Err != nil {
		call.result <- Result{Err: fmt.Errorf("starmap: worker request %d: %w", reply.ID, reply.Err)}
		return
	}
	dataset := reply.Dataset
	if call.keyed {
		dataset = c.cache.adopt(call.key, dataset)
	}
	call.result <- Result{Dataset: dataset}
}

func (c *Coordinator) handleFault(worker Worker, fault error) {
	c.mu.Lock()
	if c.worker == worker {
		c.worker = nil
	}
	calls := c.pending
	c.pending = map[uint64]*pendingCall{}
	c.mu.Unlock()

	_ = worker.Close()
	c.metrics.WorkerFault()
	c.diag.Error("worker: fault, rejecting pending requests", fault, "pending", len(calls))
	for _, call := range calls {
		call.timer.Stop()
		call.result <- Result{Err: fmt.Errorf("%w: %v", ErrWorkerFault, fault)}
	}
}

// expire falls back to synchronous normalization for a request that did not
// answer in time.
func (c *Coordinator) expire(id uint64) {
	call := c.take(id)
	if call == nil {
		return
	}
	c.diag.Warn("worker: request timed out, normalizing synchronously", "id", id, "timeout", c.timeout)
	c.metrics.WorkerFallback(metrics.ReasonTimeout)
	call.result <- Result{Dataset: c.normalizeLocal(call.raw, call.key, call.keyed)}
}

func (c *Coordinator) take(id uint64) *pendingCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	call, ok := c.pending[id]
	if !ok {
		return nil
	}
	delete(c.pending, id)
	return call
}

// normalizeLocal runs the synchronous path with the key derived for the
// call, so both paths insert identical entries.
func (c *Coordinator) normalizeLocal(raw any, key string, keyed bool) *Dataset {
	if !keyed {
		return c.normalizer.Normalize(raw)
	}
	if cached, ok := c.cache.Get(key); ok {
		return cached
	}
	return c.cache.adopt(key, c.normalizer.Normalize(raw))
}

func settled(result Result) <-chan Result {
	ch := make(chan Result, 1)
	ch <- result
	return ch
}
