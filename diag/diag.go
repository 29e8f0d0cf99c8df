// Package diag defines the diagnostics sink consumed by the starmap core.
//
// The core reports malformed input, cache-key failures, worker faults and
// rejected actions through a Sink. Nothing reported here is fatal; callers
// always receive a well-defined fallback value alongside the diagnostic.
package diag

import "fmt"

// Sink receives diagnostics emitted by the core.
type Sink interface {
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
	Error(msg string, err error, keyvals ...any)
	// CriticalWithFallback reports err and returns the result of fallback.
	// A panic raised by fallback is recovered and reported; the call then
	// returns nil.
	CriticalWithFallback(msg string, err error, fallback func() any) any
	// Validate reports msg when condition is false and returns condition.
	Validate(condition bool, msg string) bool
}

// Nop returns a sink that discards every diagnostic.
func Nop() Sink {
	return nopSink{}
}

type nopSink struct{}

func (nopSink) Info(string, ...any)         {}
func (nopSink) Warn(string, ...any)         {}
func (nopSink) Error(string, error, ...any) {}

func (nopSink) CriticalWithFallback(_ string, _ error, fallback func() any) any {
	return runFallback(fallback, nil)
}

func (nopSink) Validate(condition bool, _ string) bool {
	return condition
}

// OrNop returns sink, or a discarding sink when sink is nil.
func OrNop(sink Sink) Sink {
	if sink == nil {
		return Nop()
	}
	return sink
}

// runFallback invokes fallback, converting a panic into a call to onPanic.
func runFallback(fallback func() any, onPanic func(error)) (result any) {
	if fallback == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			result = nil
			if onPanic != nil {
				onPanic(fmt.Errorf("diag: fallback panicked: %v", r))
			}
		}
	}()
	return fallback()
}
