package starmap

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/goliatone/go-starmap/diag"
	"github.com/goliatone/go-starmap/pkg/activity"
	"github.com/goliatone/go-starmap/pkg/config"
)

type stateRecorder struct {
	mu     sync.Mutex
	states []State
	signal chan struct{}
}

func newStateRecorder() *stateRecorder {
	return &stateRecorder{signal: make(chan struct{}, 32)}
}

func (r *stateRecorder) handle(s State) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
	r.signal <- struct{}{}
}

func (r *stateRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

func (r *stateRecorder) last() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.states[len(r.states)-1]
}

func (r *stateRecorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.signal:
	case <-time.After(time.Second):
		t.Fatalf("no notification delivered")
	}
}

func newTestContainer(t *testing.T, opts ...Option) (*Container, *clock.Mock) {
	t.Helper()
	mock := clock.NewMock()
	opts = append([]Option{WithClock(mock)}, opts...)
	c := New(Config{"theme": "dark"}, Normalize(solDataset()), Campaign{"name": "rim"}, opts...)
	t.Cleanup(func() { _ = c.Close() })
	return c, mock
}

func TestContainerInitialState(t *testing.T) {
	c, _ := newTestContainer(t)
	s := c.State()

	if s.Mode != ModeView {
		t.Fatalf("expected default mode view, got %q", s.Mode)
	}
	if s.Selection.System.Present() {
		t.Fatalf("expected no selection")
	}
	if s.Editor.Enabled || s.Editor.Jobs == nil || len(s.Editor.Jobs) != 0 {
		t.Fatalf("expected disabled editor with empty jobs, got %+v", s.Editor)
	}
	if s.Dataset.Len() != 1 || s.Config["theme"] != "dark" || s.Campaign["name"] != "rim" {
		t.Fatalf("unexpected initial state %+v", s)
	}
	if s.Access == nil {
		t.Fatalf("expected empty access map")
	}
}

func TestContainerCoalescesSelections(t *testing.T) {
	c, mock := newTestContainer(t)
	rec := newStateRecorder()
	c.Subscribe(rec.handle, ScopeSelection)

	c.SelectSystem("a")
	c.SelectSystem("b")
	c.SelectSystem("c")

	mock.Add(DefaultQuiescenceWindow)
	rec.wait(t)
	mock.Add(DefaultQuiescenceWindow)
	time.Sleep(20 * time.Millisecond)

	if rec.count() != 1 {
		t.Fatalf("expected exactly one notification, got %d", rec.count())
	}
	if id, _ := rec.last().Selection.System.Get(); id != "c" {
		t.Fatalf("expected notification to reflect c, got %q", id)
	}
}

func TestContainerScopedSubscriberIgnoresOtherPaths(t *testing.T) {
	c, mock := newTestContainer(t)
	modes := newStateRecorder()
	all := newStateRecorder()
	c.Subscribe(modes.handle, ScopeMode)
	c.Subscribe(all.handle)

	c.SelectSystem("sol")
	mock.Add(DefaultQuiescenceWindow)
	all.wait(t)

	if modes.count() != 0 {
		t.Fatalf("mode subscriber must not fire for selection, got %d", modes.count())
	}
}

func TestContainerPrefixScopeMatching(t *testing.T) {
	c, _ := newTestContainer(t)
	editor := newStateRecorder()
	jobs := newStateRecorder()
	c.Subscribe(editor.handle, ScopeEditor)
	c.Subscribe(jobs.handle, "editor", "jobs")

	c.AddEditorJob(EditorJob{OpType: "move"})
	c.Flush()
	if editor.count() != 1 || jobs.count() != 1 {
		t.Fatalf("editor.jobs change should reach both, got editor=%d jobs=%d", editor.count(), jobs.count())
	}

	c.SetEditorEnabled(true)
	c.Flush()
	if editor.count() != 2 {
		t.Fatalf("editor change should reach editor subscriber, got %d", editor.count())
	}
	if jobs.count() != 1 {
		t.Fatalf("editor change must not reach editor.jobs subscriber, got %d", jobs.count())
	}
}

func TestContainerEditorJobs(t *testing.T) {
	ids := []string{"job-1", "job-2"}
	c, mock := newTestContainer(t, WithIDGenerator(func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}))

	job1 := c.AddEditorJob(EditorJob{TargetDataset: "core", OpType: "move", Payload: map[string]any{"x": 1}})
	before := c.State()
	job2 := c.AddEditorJob(EditorJob{TargetDataset: "core", OpType: "delete"})

	if job1.ID != "job-1" || job2.ID != "job-2" {
		t.Fatalf("expected generated ids, got %q %q", job1.ID, job2.ID)
	}
	if !job1.CreatedAt.Equal(mock.Now()) {
		t.Fatalf("expected CreatedAt from the container clock, got %v", job1.CreatedAt)
	}
	if len(before.Editor.Jobs) != 1 {
		t.Fatalf("earlier snapshot must keep its job list, got %d", len(before.Editor.Jobs))
	}
	if got := c.State().Editor.Jobs; len(got) != 2 || got[1].OpType != "delete" {
		t.Fatalf("expected two jobs, got %+v", got)
	}

	c.ClearEditorJobs()
	if got := c.State().Editor.Jobs; !reflect.DeepEqual(got, []EditorJob{}) {
		t.Fatalf("expected jobs deep-equal to [], got %#v", got)
	}
	if len(before.Editor.Jobs) != 1 {
		t.Fatalf("clearing must not touch earlier snapshots")
	}
}

func TestContainerAddEditorJobKeepsExplicitFields(t *testing.T) {
	c, _ := newTestContainer(t)
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	payload := map[string]any{"to": []any{1, 2}}

	job := c.AddEditorJob(EditorJob{ID: "fixed", CreatedAt: at, Payload: payload})
	if job.ID != "fixed" || !job.CreatedAt.Equal(at) {
		t.Fatalf("explicit id and time must be kept, got %+v", job)
	}
	payload["to"].([]any)[0] = 99
	if c.State().Editor.Jobs[0].Payload["to"].([]any)[0] != 1 {
		t.Fatalf("job payload must be copied at the boundary")
	}
}

func TestContainerSetModeValidation(t *testing.T) {
	rec := &diag.Recorder{}
	c, _ := newTestContainer(t, WithDiagnostics(rec))
	modes := newStateRecorder()
	c.Subscribe(modes.handle, ScopeMode)

	if c.SetMode(Mode("fly")) {
		t.Fatalf("invalid mode must be rejected")
	}
	c.Flush()
	if c.State().Mode != ModeView || modes.count() != 0 {
		t.Fatalf("invalid mode must be a no-op")
	}
	if rec.Count(diag.LevelWarn) != 1 {
		t.Fatalf("expected a warning, got %+v", rec.Entries())
	}

	if !c.SetMode(ModeRoute) {
		t.Fatalf("route should be accepted")
	}
	c.Flush()
	if c.State().Mode != ModeRoute || modes.count() != 1 {
		t.Fatalf("expected mode route with one notification")
	}
}

func TestParseMode(t *testing.T) {
	if mode, err := ParseMode(" Measure "); err != nil || mode != ModeMeasure {
		t.Fatalf("expected measure, got %q %v", mode, err)
	}
	if _, err := ParseMode("fly"); !errors.Is(err, ErrInvalidMode) {
		t.Fatalf("expected ErrInvalidMode, got %v", err)
	}
	for _, mode := range Modes() {
		if !mode.Valid() {
			t.Fatalf("mode %q should be valid", mode)
		}
	}
}

func TestContainerSetAccessMerges(t *testing.T) {
	c, _ := newTestContainer(t)
	c.SetAccess(Access{"edit": true, "admin": false})
	first := c.State().Access
	c.SetAccess(Access{"admin": true})
	second := c.State().Access

	if !reflect.DeepEqual(second, Access{"edit": true, "admin": true}) {
		t.Fatalf("expected merged access, got %v", second)
	}
	if first["admin"] != false {
		t.Fatalf("earlier access map must not change, got %v", first)
	}
}

func TestContainerSelectionAndDataset(t *testing.T) {
	c, _ := newTestContainer(t)
	c.SelectSystem("sol")
	if system, ok := c.State().SelectedSystem(); !ok || system.Name() != "Sol" {
		t.Fatalf("expected Sol selected, got %+v", system)
	}
	c.ClearSelection()
	if c.State().Selection.System.Present() {
		t.Fatalf("expected selection cleared")
	}

	before := c.State()
	c.SetDataset(nil)
	if c.State().Dataset.Len() != 0 {
		t.Fatalf("nil dataset should install an empty one")
	}
	if before.Dataset.Len() != 1 {
		t.Fatalf("previous snapshot must keep its dataset")
	}
	if c.State().Config["theme"] != "dark" || c.State().Editor.Jobs == nil {
		t.Fatalf("unchanged substructures must be carried over")
	}
}

func TestContainerSetCampaignCopies(t *testing.T) {
	c, _ := newTestContainer(t)
	campaign := Campaign{"turns": []any{1, 2}}
	c.SetCampaign(campaign)
	campaign["turns"].([]any)[0] = 42
	if c.State().Campaign["turns"].([]any)[0] != 1 {
		t.Fatalf("campaign must be deep-copied")
	}
}

func TestContainerConfigDefaults(t *testing.T) {
	mock := clock.NewMock()
	c := New(
		Config{"zoom": map[string]any{"max": 12}},
		nil,
		nil,
		WithClock(mock),
		WithConfigDefaults(Config{"zoom": map[string]any{"min": 1, "max": 8}, "theme": "light"}),
	)
	defer c.Close()

	cfg := c.State().Config
	if cfg["theme"] != "light" {
		t.Fatalf("expected default theme, got %v", cfg["theme"])
	}
	zoom := cfg["zoom"].(map[string]any)
	if zoom["max"] != 12 || zoom["min"] != 1 {
		t.Fatalf("expected host max over default min, got %v", zoom)
	}

	origins := map[string]string{
		"zoom.max": ConfigSourceHost,
		"zoom.min": ConfigSourceDefaults,
		"theme":    ConfigSourceDefaults,
		"grid":     "",
	}
	for key, want := range origins {
		if got := c.ConfigOrigin(key); got != want {
			t.Fatalf("ConfigOrigin(%q) = %q, want %q", key, got, want)
		}
	}
}

func TestContainerUnsubscribeIsIdempotent(t *testing.T) {
	c, _ := newTestContainer(t)
	first := newStateRecorder()
	second := newStateRecorder()
	unsubscribe := c.Subscribe(first.handle)
	c.Subscribe(second.handle)

	unsubscribe()
	unsubscribe()

	c.SelectSystem("sol")
	c.Flush()
	if first.count() != 0 {
		t.Fatalf("unsubscribed handler fired")
	}
	if second.count() != 1 {
		t.Fatalf("other subscribers must stay registered, got %d", second.count())
	}
}

func TestContainerRecoversSubscriberPanics(t *testing.T) {
	rec := &diag.Recorder{}
	c, _ := newTestContainer(t, WithDiagnostics(rec))
	after := newStateRecorder()
	c.Subscribe(func(State) { panic("render failed") })
	c.Subscribe(after.handle)

	c.SelectSystem("sol")
	c.Flush()

	if after.count() != 1 {
		t.Fatalf("later subscribers must still run")
	}
	if rec.Count(diag.LevelError) != 1 {
		t.Fatalf("expected panic reported, got %+v", rec.Entries())
	}
}

func TestContainerEmitsActivity(t *testing.T) {
	capture := &activity.Recorder{}
	failing := activity.HookFunc(func(context.Context, activity.Event) error {
		return errors.New("sink down")
	})
	rec := &diag.Recorder{}
	c, _ := newTestContainer(t,
		WithActivityHooks(activity.Hooks{capture, nil, failing}),
		WithActor(Actor{ActorID: "pilot"}),
		WithSessionID("session-1"),
		WithDiagnostics(rec),
		WithIDGenerator(func() string { return "job-1" }),
	)
	if len(c.ActivityHooks()) != 2 {
		t.Fatalf("expected nil hooks dropped, got %d", len(c.ActivityHooks()))
	}

	c.SelectSystem("sol")
	c.SetMode(ModeEdit)
	c.AddEditorJob(EditorJob{OpType: "move", TargetDataset: "core"})
	c.ClearEditorJobs()

	events := capture.Events()
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(events))
	}
	verbs := []string{"state.selection.changed", "state.mode.changed", "editor.job.added", "editor.jobs.cleared"}
	for i, verb := range verbs {
		if events[i].Verb != verb {
			t.Fatalf("event %d: expected %s, got %s", i, verb, events[i].Verb)
		}
		if events[i].ActorID != "pilot" || events[i].Channel != activity.DefaultChannel {
			t.Fatalf("event %d: unexpected actor/channel %+v", i, events[i])
		}
	}
	if events[0].Metadata["new_value"] != "sol" || events[0].Metadata["session_id"] != "session-1" {
		t.Fatalf("unexpected selection metadata %v", events[0].Metadata)
	}
	if events[2].ObjectID != "job-1" || events[2].Metadata["op_type"] != "move" {
		t.Fatalf("unexpected job event %+v", events[2])
	}
	if rec.Count(diag.LevelWarn) != 4 {
		t.Fatalf("expected a warning per failed hook call, got %d", rec.Count(diag.LevelWarn))
	}
}

func TestContainerActivityVerbFilter(t *testing.T) {
	capture := &activity.Recorder{}
	c, _ := newTestContainer(t,
		WithActivityHooks(activity.Hooks{capture}),
		WithActivityVerbs("editor."),
		WithIDGenerator(func() string { return "job-7" }),
	)

	c.SelectSystem("sol")
	c.AddEditorJob(EditorJob{OpType: "move"})

	if got := capture.Verbs(); len(got) != 1 || got[0] != "editor.job.added" {
		t.Fatalf("expected only editor events, got %v", got)
	}
}

func TestContainerCloseFlushesAndStops(t *testing.T) {
	c, mock := newTestContainer(t)
	rec := newStateRecorder()
	c.Subscribe(rec.handle)

	c.SelectSystem("sol")
	_ = c.Close()
	if rec.count() != 1 {
		t.Fatalf("close should deliver the pending batch")
	}

	c.SelectSystem("vega")
	mock.Add(DefaultQuiescenceWindow)
	time.Sleep(20 * time.Millisecond)
	if rec.count() != 1 {
		t.Fatalf("no notifications after close")
	}
	if id, _ := c.State().Selection.System.Get(); id != "vega" {
		t.Fatalf("state still updates after close, got %q", id)
	}
}

func TestContainerWithSettings(t *testing.T) {
	settings := config.Default()
	settings.Scheduler.Window = 50 * time.Millisecond
	c, mock := newTestContainer(t, WithSettings(settings))
	rec := newStateRecorder()
	c.Subscribe(rec.handle)

	c.SelectSystem("sol")
	mock.Add(DefaultQuiescenceWindow)
	time.Sleep(10 * time.Millisecond)
	if rec.count() != 0 {
		t.Fatalf("configured window should delay delivery")
	}
	mock.Add(40 * time.Millisecond)
	rec.wait(t)
}
