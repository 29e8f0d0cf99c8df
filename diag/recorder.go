package diag

import "sync"

// Level classifies a recorded diagnostic.
type Level string

const (
	LevelInfo     Level = "info"
	LevelWarn     Level = "warn"
	LevelError    Level = "error"
	LevelCritical Level = "critical"
)

// Entry is a diagnostic captured by Recorder.
type Entry struct {
	Level   Level
	Message string
	Err     error
	KeyVals []any
}

// Recorder captures diagnostics for assertions in tests.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

func (r *Recorder) record(entry Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

func (r *Recorder) Info(msg string, keyvals ...any) {
	r.record(Entry{Level: LevelInfo, Message: msg, KeyVals: keyvals})
}

func (r *Recorder) Warn(msg string, keyvals ...any) {
	r.record(Entry{Level: LevelWarn, Message: msg, KeyVals: keyvals})
}

func (r *Recorder) Error(msg string, err error, keyvals ...any) {
	r.record(Entry{Level: LevelError, Message: msg, Err: err, KeyVals: keyvals})
}

func (r *Recorder) CriticalWithFallback(msg string, err error, fallback func() any) any {
	r.record(Entry{Level: LevelCritical, Message: msg, Err: err})
	return runFallback(fallback, func(panicErr error) {
		r.record(Entry{Level: LevelError, Message: "fallback failed", Err: panicErr})
	})
}

func (r *Recorder) Validate(condition bool, msg string) bool {
	if !condition {
		r.record(Entry{Level: LevelWarn, Message: msg})
	}
	return condition
}

// Entries returns a copy of everything recorded so far.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// Count returns how many entries were recorded at level.
func (r *Recorder) Count(level Level) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, entry := range r.entries {
		if entry.Level == level {
			n++
		}
	}
	return n
}
