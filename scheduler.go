package starmap

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultQuiescenceWindow is how long a batch collects changes before it is
// delivered.
const DefaultQuiescenceWindow = 10 * time.Millisecond

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// SchedulerWithClock injects the clock that drives the quiescence timer.
func SchedulerWithClock(clk clock.Clock) SchedulerOption {
	return func(s *Scheduler) {
		if clk != nil {
			s.clock = clk
		}
	}
}

// SchedulerWithWindow overrides DefaultQuiescenceWindow.
func SchedulerWithWindow(window time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if window > 0 {
			s.window = window
		}
	}
}

// Scheduler coalesces changed paths into batches. The first path added to an
// empty batch arms a timer; paths added later join the batch without
// extending it. When the timer fires the batch is handed to deliver once.
type Scheduler struct {
	clock   clock.Clock
	window  time.Duration
	deliver func([]Path)

	mu         sync.Mutex
	pending    []Path
	timer      *clock.Timer
	generation uint64
	stopped    bool

	// deliverMu keeps batches in order when a timer and Flush race.
	deliverMu sync.Mutex
}

// NewScheduler builds a scheduler that hands each batch to deliver.
func NewScheduler(deliver func([]Path), opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		clock:   clock.New(),
		window:  DefaultQuiescenceWindow,
		deliver: deliver,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Schedule adds path to the pending batch. Duplicate paths are collapsed.
func (s *Scheduler) Schedule(path Path) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if !containsPath(s.pending, path) {
		s.pending = append(s.pending, append(Path(nil), path...))
	}
	if s.timer != nil {
		return
	}
	generation := s.generation
	s.timer = s.clock.AfterFunc(s.window, func() {
		s.fire(generation)
	})
}

// Pending returns a copy of the paths waiting for delivery.
func (s *Scheduler) Pending() []Path {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Path(nil), s.pending...)
}

// Flush delivers the pending batch immediately on the calling goroutine.
// It must not be called from inside a delivery.
func (s *Scheduler) Flush() {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	batch := s.takeLocked()
	s.mu.Unlock()

	s.dispatch(batch)
}

// Stop cancels the pending timer and discards the pending batch. Later
// calls to Schedule are ignored.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.takeLocked()
	s.stopped = true
}

func (s *Scheduler) fire(generation uint64) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	if s.stopped || generation != s.generation {
		// superseded by Flush or Stop
		s.mu.Unlock()
		return
	}
	batch := s.takeLocked()
	s.mu.Unlock()

	s.dispatch(batch)
}

func (s *Scheduler) takeLocked() []Path {
	batch := s.pending
	s.pending = nil
	s.timer = nil
	s.generation++
	return batch
}

func (s *Scheduler) dispatch(batch []Path) {
	if len(batch) == 0 || s.deliver == nil {
		return
	}
	s.deliver(batch)
}

func containsPath(paths []Path, path Path) bool {
	for _, existing := range paths {
		if existing.Equal(path) {
			return true
		}
	}
	return false
}
