package starmap

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"

	"github.com/goliatone/go-starmap/diag"
	"github.com/goliatone/go-starmap/layering"
	"github.com/goliatone/go-starmap/pkg/activity"
)

// Handler receives the current snapshot after a batch of matching changes.
type Handler func(State)

type subscription struct {
	scope   Path
	handler Handler
	active  atomic.Bool
}

// Container holds the application state and notifies scoped subscribers.
// Actions are serialised and each replaces the snapshot wholesale.
// Notifications for actions fired within one quiescence window are
// delivered as a single batch.
type Container struct {
	diag      diag.Sink
	clock     clock.Clock
	scheduler *Scheduler
	hooks     activity.Hooks
	emitter   *activity.Emitter
	actor     Actor
	sessionID string
	newID     func() string
	query     []QueryOption
	origins   layering.Origins

	mu    sync.Mutex
	state State
	// subs is replaced, never modified, so deliveries can iterate a stale copy.
	subs []*subscription
}

// New builds a container with an initial snapshot. A nil dataset starts
// empty. config and campaign are deep-copied.
func New(config Config, dataset *Dataset, campaign Campaign, opts ...Option) *Container {
	cfg := applyOptions(opts)

	layers := []layering.Layer[Config]{{Source: ConfigSourceHost, Value: config}}
	if cfg.defaults != nil {
		layers = append(layers, layering.Layer[Config]{Source: ConfigSourceDefaults, Value: cfg.defaults})
	}
	config, origins := layering.MergeNamed(layers...)
	if dataset == nil {
		dataset = EmptyDataset()
	}

	c := &Container{
		diag:      cfg.diag,
		clock:     cfg.clock,
		hooks:     cfg.activityHooks,
		actor:     cfg.actor,
		sessionID: cfg.sessionID,
		newID:     cfg.newID,
		query:     cfg.queryOptions(),
		origins:   origins,
		state: State{
			Config:   config,
			Dataset:  dataset,
			Campaign: layering.Clone(campaign),
			Access:   Access{},
			Mode:     DefaultMode,
			Editor:   Editor{Jobs: []EditorJob{}},
		},
	}
	c.emitter = activity.NewEmitter(cfg.activityHooks, activity.Config{
		Enabled: true,
		Channel: cfg.activityChannel,
		Verbs:   cfg.activityVerbs,
	})
	c.scheduler = NewScheduler(c.deliver,
		SchedulerWithClock(cfg.clock),
		SchedulerWithWindow(cfg.window),
	)
	return c
}

// ConfigOrigin reports which layer supplied the config value at the dotted
// key: ConfigSourceHost, ConfigSourceDefaults, or "" when the key is unset.
func (c *Container) ConfigOrigin(key string) string {
	return c.origins[key]
}

// State returns the current snapshot.
func (c *Container) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe registers handler for batches touching scope. Scope segments may
// be passed separately or dotted: Subscribe(h, "editor", "jobs") equals
// Subscribe(h, "editor.jobs"). An empty scope sees every batch. The
// returned function unsubscribes and is safe to call more than once.
func (c *Container) Subscribe(handler Handler, scope ...string) func() {
	if handler == nil {
		return func() {}
	}
	sub := &subscription{
		scope:   ParsePath(strings.Join(scope, ".")),
		handler: handler,
	}
	sub.active.Store(true)

	c.mu.Lock()
	subs := make([]*subscription, len(c.subs), len(c.subs)+1)
	copy(subs, c.subs)
	c.subs = append(subs, sub)
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.active.Store(false)
			c.mu.Lock()
			defer c.mu.Unlock()
			subs := make([]*subscription, 0, len(c.subs))
			for _, existing := range c.subs {
				if existing != sub {
					subs = append(subs, existing)
				}
			}
			c.subs = subs
		})
	}
}

// SelectSystem selects the system with id.
func (c *Container) SelectSystem(id string) {
	c.commit(ScopeSelection, func(s State) State {
		s.Selection = Selection{System: Some(id)}
		return s
	})
	c.emitStateChanged(ScopeSelection, id)
}

// ClearSelection deselects any system.
func (c *Container) ClearSelection() {
	c.commit(ScopeSelection, func(s State) State {
		s.Selection = Selection{}
		return s
	})
	c.emitStateChanged(ScopeSelection, nil)
}

// SetMode switches the interaction mode. An invalid mode leaves the state
// untouched, reports a warning and returns false.
func (c *Container) SetMode(mode Mode) bool {
	if !c.diag.Validate(mode.Valid(), fmt.Sprintf("container: invalid mode %q ignored", mode)) {
		return false
	}
	c.commit(ScopeMode, func(s State) State {
		s.Mode = mode
		return s
	})
	c.emitStateChanged(ScopeMode, string(mode))
	return true
}

// SetDataset replaces the dataset. nil installs an empty dataset.
func (c *Container) SetDataset(dataset *Dataset) {
	if dataset == nil {
		dataset = EmptyDataset()
	}
	c.commit(ScopeDataset, func(s State) State {
		s.Dataset = dataset
		return s
	})
	c.emitStateChanged(ScopeDataset, dataset.Len())
}

// SetCampaign replaces the campaign with a deep copy of campaign.
func (c *Container) SetCampaign(campaign Campaign) {
	campaign = layering.Clone(campaign)
	c.commit(ScopeCampaign, func(s State) State {
		s.Campaign = campaign
		return s
	})
	c.emitStateChanged(ScopeCampaign, nil)
}

// SetAccess merges partial into a new access map. Keys in partial win.
func (c *Container) SetAccess(partial Access) {
	keys := sortedKeys(partial)
	c.commit(ScopeAccess, func(s State) State {
		merged := make(Access, len(s.Access)+len(partial))
		for key, value := range s.Access {
			merged[key] = value
		}
		for key, value := range partial {
			merged[key] = value
		}
		s.Access = merged
		return s
	})
	c.emitStateChanged(ScopeAccess, keys)
}

// SetEditorEnabled toggles the editor. The job list is shared with the
// previous snapshot.
func (c *Container) SetEditorEnabled(enabled bool) {
	c.commit(ScopeEditor, func(s State) State {
		s.Editor = Editor{Enabled: enabled, Jobs: s.Editor.Jobs}
		return s
	})
	c.emitStateChanged(ScopeEditor, enabled)
}

// AddEditorJob appends job to a new job list and returns it with ID and
// CreatedAt filled in when they were empty.
func (c *Container) AddEditorJob(job EditorJob) EditorJob {
	if job.ID == "" {
		job.ID = c.newID()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = c.clock.Now()
	}
	job.Payload = layering.Clone(job.Payload)

	c.commit(ScopeEditorJobs, func(s State) State {
		jobs := make([]EditorJob, len(s.Editor.Jobs), len(s.Editor.Jobs)+1)
		copy(jobs, s.Editor.Jobs)
		s.Editor = Editor{Enabled: s.Editor.Enabled, Jobs: append(jobs, job)}
		return s
	})
	c.emitJobAdded(job)
	return job
}

// ClearEditorJobs resets the job list to empty.
func (c *Container) ClearEditorJobs() {
	var cleared int
	c.commit(ScopeEditorJobs, func(s State) State {
		cleared = len(s.Editor.Jobs)
		s.Editor = Editor{Enabled: s.Editor.Enabled, Jobs: []EditorJob{}}
		return s
	})
	c.emitJobsCleared(cleared)
}

// QuerySystems filters the current dataset, see FilterSystems. Per-call
// options override the container defaults.
func (c *Container) QuerySystems(expression string, opts ...QueryOption) ([]string, error) {
	queryOpts := make([]QueryOption, 0, len(c.query)+len(opts))
	queryOpts = append(queryOpts, c.query...)
	queryOpts = append(queryOpts, opts...)
	return FilterSystems(c.State().Dataset, expression, queryOpts...)
}

// Flush delivers pending notifications now instead of waiting for the
// quiescence window. It must not be called from a Handler.
func (c *Container) Flush() {
	c.scheduler.Flush()
}

// Close delivers pending notifications and stops the scheduler. Actions
// after Close still update the state but notify nobody.
func (c *Container) Close() error {
	c.scheduler.Flush()
	c.scheduler.Stop()
	return nil
}

func (c *Container) commit(path string, next func(State) State) {
	c.mu.Lock()
	c.state = next(c.state)
	c.mu.Unlock()
	c.scheduler.Schedule(ParsePath(path))
}

func (c *Container) deliver(batch []Path) {
	c.mu.Lock()
	state := c.state
	subs := c.subs
	c.mu.Unlock()

	for _, sub := range subs {
		if !sub.active.Load() || !matchesBatch(sub.scope, batch) {
			continue
		}
		c.invoke(sub, state)
	}
}

func (c *Container) invoke(sub *subscription, state State) {
	defer func() {
		if r := recover(); r != nil {
			c.diag.Error("container: subscriber panicked",
				fmt.Errorf("starmap: subscriber panic: %v", r),
				"scope", sub.scope.String(),
			)
		}
	}()
	sub.handler(state)
}
