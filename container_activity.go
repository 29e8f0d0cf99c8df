package starmap

import (
	"context"

	"github.com/goliatone/go-starmap/pkg/activity"
)

// WithActivityHooks attaches activity hooks. Every successful action emits
// one event. Hooks are cloned and nil entries dropped.
func WithActivityHooks(hooks activity.Hooks) Option {
	normalized := activity.CloneHooks(hooks)
	return func(cfg *containerConfig) {
		cfg.activityHooks = normalized
	}
}

// WithActivityChannel overrides activity.DefaultChannel.
func WithActivityChannel(channel string) Option {
	return func(cfg *containerConfig) {
		cfg.activityChannel = channel
	}
}

// WithActivityVerbs limits activity events to verbs with one of the given
// prefixes, e.g. WithActivityVerbs("editor.") drops state change events.
func WithActivityVerbs(prefixes ...string) Option {
	return func(cfg *containerConfig) {
		cfg.activityVerbs = append(cfg.activityVerbs, prefixes...)
	}
}

// ActivityHooks returns a copy of the configured hooks.
func (c *Container) ActivityHooks() activity.Hooks {
	if c == nil {
		return nil
	}
	return activity.CloneHooks(c.hooks)
}

func (c *Container) eventInput(path, objectID string, value any) activity.StateEventInput {
	return activity.StateEventInput{
		ActorID:    c.actor.ActorID,
		UserID:     c.actor.UserID,
		TenantID:   c.actor.TenantID,
		SessionID:  c.sessionID,
		Path:       path,
		ObjectID:   objectID,
		NewValue:   value,
		OccurredAt: c.clock.Now(),
	}
}

func (c *Container) emitStateChanged(path string, value any) {
	c.emit(activity.BuildStateChangedEvent(c.eventInput(path, "", value)))
}

func (c *Container) emitJobAdded(job EditorJob) {
	input := c.eventInput(ScopeEditorJobs, job.ID, nil)
	input.Metadata = map[string]any{
		"target_dataset": job.TargetDataset,
		"op_type":        job.OpType,
	}
	c.emit(activity.BuildEditorJobAddedEvent(input))
}

func (c *Container) emitJobsCleared(count int) {
	input := c.eventInput(ScopeEditorJobs, "", nil)
	input.Metadata = map[string]any{"cleared": count}
	c.emit(activity.BuildEditorJobsClearedEvent(input))
}

// emit reports hook failures as warnings; they never undo an action.
func (c *Container) emit(event activity.Event) {
	if !c.emitter.Enabled() || !c.emitter.Allows(event.Verb) {
		return
	}
	if err := c.emitter.Emit(context.Background(), event); err != nil {
		c.diag.Warn("container: activity hook failed", "verb", event.Verb, "err", err)
	}
}
