package activity

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNormalizeEventTrimsClonesAndDefaults(t *testing.T) {
	meta := map[string]any{"k": "v"}
	evt := Event{
		Verb:       " state.mode.changed ",
		ActorID:    " actor ",
		UserID:     " user ",
		TenantID:   " tenant ",
		ObjectType: " state ",
		ObjectID:   " mode ",
		Channel:    " starmap ",
		Metadata:   meta,
	}

	got := NormalizeEvent(evt)

	if got.Verb != "state.mode.changed" || got.ObjectType != "state" || got.ObjectID != "mode" {
		t.Fatalf("unexpected normalized fields: %+v", got)
	}
	if got.ActorID != "actor" || got.UserID != "user" || got.TenantID != "tenant" || got.Channel != "starmap" {
		t.Fatalf("unexpected trimming: %+v", got)
	}
	if got.OccurredAt.IsZero() {
		t.Fatalf("expected OccurredAt to be set")
	}
	got.Metadata["k"] = "changed"
	if evt.Metadata["k"] != "v" {
		t.Fatalf("expected original metadata untouched: %+v", evt.Metadata)
	}
}

func TestHooksNotifyShortCircuitsMissingRequired(t *testing.T) {
	capture := &Recorder{}
	hooks := Hooks{capture}
	if err := hooks.Notify(context.Background(), Event{}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(capture.Events()) != 0 {
		t.Fatalf("expected no events captured, got %d", len(capture.Events()))
	}
}

func TestHooksNotifyFanOutAndJoinErrors(t *testing.T) {
	capture := &Recorder{}
	boom1 := errors.New("boom1")
	boom2 := errors.New("boom2")
	var ctxSeen bool
	hooks := Hooks{
		HookFunc(func(ctx context.Context, event Event) error {
			if ctx != nil {
				ctxSeen = true
			}
			return nil
		}),
		capture,
		HookFunc(func(_ context.Context, _ Event) error { return boom1 }),
		nil,
		HookFunc(func(_ context.Context, _ Event) error { return boom2 }),
	}

	err := hooks.Notify(nil, Event{Verb: "state.selection.changed", ObjectType: "state", ObjectID: "selection"})
	if !errors.Is(err, boom1) || !errors.Is(err, boom2) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if !ctxSeen {
		t.Fatalf("expected context fallback to be non-nil")
	}
	if len(capture.Events()) != 1 {
		t.Fatalf("expected event to be captured once, got %d", len(capture.Events()))
	}
}

func TestEmitterDisabledAndEnabled(t *testing.T) {
	capture := &Recorder{}
	event := Event{Verb: "editor.job.added", ObjectType: "editor.job", ObjectID: "1"}

	disabled := NewEmitter(Hooks{capture}, Config{Enabled: false})
	if disabled.Enabled() {
		t.Fatalf("expected emitter to be disabled")
	}
	if err := disabled.Emit(context.Background(), event); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(capture.Events()) != 0 {
		t.Fatalf("expected no events captured when disabled")
	}

	enabled := NewEmitter(Hooks{capture}, Config{Enabled: true})
	if !enabled.Enabled() {
		t.Fatalf("expected emitter to be enabled")
	}
	if err := enabled.Emit(context.Background(), event); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if len(capture.Events()) != 1 {
		t.Fatalf("expected one event captured, got %d", len(capture.Events()))
	}
	if capture.Events()[0].Channel != DefaultChannel {
		t.Fatalf("expected default channel applied, got %q", capture.Events()[0].Channel)
	}
}

func TestEmitterPreservesExplicitChannel(t *testing.T) {
	capture := &Recorder{}
	emitter := NewEmitter(Hooks{capture}, Config{Enabled: true, Channel: "default"})
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	err := emitter.Emit(context.Background(), Event{
		Verb:       "state.mode.changed",
		ObjectType: "state",
		ObjectID:   "mode",
		Channel:    "custom",
		OccurredAt: at,
	})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if capture.Events()[0].Channel != "custom" {
		t.Fatalf("expected explicit channel preserved, got %q", capture.Events()[0].Channel)
	}
	if !capture.Events()[0].OccurredAt.Equal(at) {
		t.Fatalf("expected occurred_at preserved, got %v", capture.Events()[0].OccurredAt)
	}
}

func TestNewEmitterWithOnlyNilHooksIsDisabled(t *testing.T) {
	emitter := NewEmitter(Hooks{nil, nil}, Config{Enabled: true})
	if emitter.Enabled() {
		t.Fatalf("expected emitter without hooks to be disabled")
	}
}

func TestEmitterFiltersVerbs(t *testing.T) {
	capture := &Recorder{}
	emitter := NewEmitter(Hooks{capture}, Config{Enabled: true, Verbs: []string{" editor.", ""}})
	if emitter.Allows("state.mode.changed") || !emitter.Allows("editor.job.added") {
		t.Fatalf("unexpected verb filter decisions")
	}

	for _, verb := range []string{"state.mode.changed", "editor.job.added", "editor.jobs.cleared"} {
		if err := emitter.Emit(context.Background(), Event{Verb: verb, ObjectType: "editor.job", ObjectID: "1"}); err != nil {
			t.Fatalf("emit %s: %v", verb, err)
		}
	}
	if got := capture.Verbs(); len(got) != 2 || got[0] != "editor.job.added" || got[1] != "editor.jobs.cleared" {
		t.Fatalf("expected editor verbs only, got %v", got)
	}

	capture.Reset()
	if len(capture.Events()) != 0 {
		t.Fatalf("expected reset recorder to be empty")
	}
}
