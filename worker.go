package starmap

import (
	"errors"
	"fmt"
	"sync"

	"github.com/goliatone/go-starmap/diag"
)

var (
	// ErrWorkerUnavailable is returned by factories when no background
	// context can be created in this environment.
	ErrWorkerUnavailable = errors.New("starmap: background worker unavailable")
	// ErrWorkerFault wraps context-level failures reported by a worker.
	ErrWorkerFault = errors.New("starmap: background worker fault")
	// ErrWorkerClosed indicates the worker or coordinator has shut down.
	ErrWorkerClosed = errors.New("starmap: background worker closed")
	// ErrWorkerBusy indicates the worker queue is full.
	ErrWorkerBusy = errors.New("starmap: background worker busy")
)

// Request asks a worker to normalize Raw. ID correlates the reply.
type Request struct {
	ID  uint64
	Raw any
}

// Reply answers one Request. Err set means the request failed; the worker
// itself remains usable.
type Reply struct {
	ID      uint64
	Dataset *Dataset
	Err     error
}

// Worker is an isolated background context that exchanges messages only.
type Worker interface {
	Post(req Request) error
	Replies() <-chan Reply
	// Faults delivers context-level failures. After a fault the worker is
	// discarded.
	Faults() <-chan error
	Done() <-chan struct{}
	Close() error
}

// WorkerFactory constructs a worker. Returning an error, ErrWorkerUnavailable
// included, makes the coordinator fall back to synchronous normalization for
// the rest of its lifetime.
type WorkerFactory func() (Worker, error)

// UnavailableWorkerFactory models an environment without background support.
func UnavailableWorkerFactory() (Worker, error) {
	return nil, ErrWorkerUnavailable
}

// GoroutineWorkerFactory returns a factory for goroutine-backed workers that
// report to sink. queue is passed to NewGoroutineWorker.
func GoroutineWorkerFactory(sink diag.Sink, queue int) WorkerFactory {
	return func() (Worker, error) {
		return NewGoroutineWorker(NewNormalizer(sink), queue), nil
	}
}

const defaultWorkerQueue = 64

type goroutineWorker struct {
	normalizer *Normalizer
	requests   chan Request
	replies    chan Reply
	faults     chan error
	done       chan struct{}
	closeOnce  sync.Once
}

// NewGoroutineWorker starts a worker goroutine owning its own normalizer.
// queue bounds how many requests may wait; zero selects the default.
func NewGoroutineWorker(normalizer *Normalizer, queue int) Worker {
	if normalizer == nil {
		normalizer = NewNormalizer(nil)
	}
	if queue <= 0 {
		queue = defaultWorkerQueue
	}
	w := &goroutineWorker{
		normalizer: normalizer,
		requests:   make(chan Request, queue),
		replies:    make(chan Reply, queue),
		faults:     make(chan error, 1),
		done:       make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *goroutineWorker) Post(req Request) error {
	select {
	case <-w.done:
		return ErrWorkerClosed
	default:
	}
	select {
	case w.requests <- req:
		return nil
	case <-w.done:
		return ErrWorkerClosed
	default:
		return ErrWorkerBusy
	}
}

func (w *goroutineWorker) Replies() <-chan Reply { return w.replies }
func (w *goroutineWorker) Faults() <-chan error  { return w.faults }
func (w *goroutineWorker) Done() <-chan struct{} { return w.done }

func (w *goroutineWorker) Close() error {
	w.closeOnce.Do(func() {
		close(w.done)
	})
	return nil
}

func (w *goroutineWorker) loop() {
	for {
		select {
		case <-w.done:
			return
		case req := <-w.requests:
			reply, err := w.process(req)
			if err != nil {
				w.faults <- err
				return
			}
			select {
			case w.replies <- reply:
			case <-w.done:
				return
			}
		}
	}
}

// process normalizes one request. A panic escaping the normalizer is a
// context-level fault rather than a per-request failure.
func (w *goroutineWorker) process(req Request) (reply Reply, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("request %d: %v", req.ID, r)
		}
	}()
	return Reply{ID: req.ID, Dataset: w.normalizer.Normalize(req.Raw)}, nil
}
