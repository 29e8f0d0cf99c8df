package diag

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestCriticalWithFallbackSwallowsPanics(t *testing.T) {
	rec := &Recorder{}
	got := rec.CriticalWithFallback("worker fault", errors.New("boom"), func() any {
		panic("fallback exploded")
	})
	if got != nil {
		t.Fatalf("expected nil result after fallback panic, got %v", got)
	}
	if rec.Count(LevelCritical) != 1 {
		t.Fatalf("expected one critical entry, got %d", rec.Count(LevelCritical))
	}
	if rec.Count(LevelError) != 1 {
		t.Fatalf("expected fallback failure to be recorded, got %+v", rec.Entries())
	}
}

func TestCriticalWithFallbackReturnsFallbackValue(t *testing.T) {
	for name, sink := range map[string]Sink{
		"nop":      Nop(),
		"recorder": &Recorder{},
		"log":      NewLogSink(NewLogger(&bytes.Buffer{})),
	} {
		got := sink.CriticalWithFallback("fault", nil, func() any { return 42 })
		if got != 42 {
			t.Fatalf("%s: expected fallback value 42, got %v", name, got)
		}
	}
}

func TestValidateReportsOnlyFailures(t *testing.T) {
	rec := &Recorder{}
	if !rec.Validate(true, "fine") {
		t.Fatalf("expected true condition to pass through")
	}
	if rec.Validate(false, "broken") {
		t.Fatalf("expected false condition to pass through")
	}
	entries := rec.Entries()
	if len(entries) != 1 || entries[0].Message != "broken" {
		t.Fatalf("expected single warning for failed validation, got %+v", entries)
	}
}

func TestLogSinkWritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(NewLogger(&buf))
	sink.Error("normalize failed", errors.New("bad coords"), "id", "sol")

	out := buf.String()
	if !strings.Contains(out, "normalize failed") || !strings.Contains(out, "bad coords") || !strings.Contains(out, "sol") {
		t.Fatalf("expected message, error and fields in output, got %q", out)
	}
}

func TestNewLeveledLoggerFilters(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLeveledLogger(&buf, "warn")
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	sink := NewLogSink(logger)
	sink.Info("loaded")
	sink.Warn("slow worker")

	out := buf.String()
	if strings.Contains(out, "loaded") || !strings.Contains(out, "slow worker") {
		t.Fatalf("expected only the warning, got %q", out)
	}

	if _, err := NewLeveledLogger(&buf, "loud"); err == nil {
		t.Fatalf("expected unknown level to fail")
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatalf("expected nop sink for nil input")
	}
	rec := &Recorder{}
	if OrNop(rec) != Sink(rec) {
		t.Fatalf("expected non-nil sink to be returned unchanged")
	}
}
