package activity

import (
	"context"
	"sync"
)

// Recorder is an ActivityHook that keeps every event it receives. Hosts use
// it to replay a session's activity; tests use it for assertions.
type Recorder struct {
	// Err is returned from every Notify call when set.
	Err error

	mu     sync.Mutex
	events []Event
}

// Notify records the normalized event.
func (r *Recorder) Notify(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, NormalizeEvent(event))
	return r.Err
}

// Events returns a copy of the recorded events in arrival order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Verbs lists the recorded verbs in arrival order.
func (r *Recorder) Verbs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	verbs := make([]string, len(r.events))
	for i, event := range r.events {
		verbs[i] = event.Verb
	}
	return verbs
}

// Reset drops recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}
