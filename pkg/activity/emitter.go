package activity

import (
	"context"
	"strings"
)

// DefaultChannel is applied to events emitted without a channel.
const DefaultChannel = "starmap"

// Config controls emission defaults.
type Config struct {
	Enabled bool
	Channel string
	// Verbs limits emission to verbs starting with one of the prefixes,
	// e.g. "editor." keeps job events only. Empty allows every verb.
	Verbs []string
}

// Emitter stamps the default channel on events and fans them out to hooks.
type Emitter struct {
	hooks   Hooks
	enabled bool
	channel string
	verbs   []string
}

// NewEmitter builds an emitter. It is disabled when cfg.Enabled is false or
// no non-nil hook remains.
func NewEmitter(hooks Hooks, cfg Config) *Emitter {
	channel := strings.TrimSpace(cfg.Channel)
	if channel == "" {
		channel = DefaultChannel
	}
	var verbs []string
	for _, prefix := range cfg.Verbs {
		if prefix = strings.TrimSpace(prefix); prefix != "" {
			verbs = append(verbs, prefix)
		}
	}
	cloned := CloneHooks(hooks)
	return &Emitter{
		hooks:   cloned,
		enabled: cfg.Enabled && len(cloned) > 0,
		channel: channel,
		verbs:   verbs,
	}
}

// Enabled reports whether emissions should be attempted.
func (e *Emitter) Enabled() bool {
	return e != nil && e.enabled
}

// Allows reports whether verb passes the configured verb prefixes.
func (e *Emitter) Allows(verb string) bool {
	if e == nil {
		return false
	}
	if len(e.verbs) == 0 {
		return true
	}
	verb = strings.TrimSpace(verb)
	for _, prefix := range e.verbs {
		if strings.HasPrefix(verb, prefix) {
			return true
		}
	}
	return false
}

// Emit forwards event to the hooks unless the emitter is disabled or the
// verb is filtered out.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Enabled() || !e.Allows(event.Verb) {
		return nil
	}
	if strings.TrimSpace(event.Channel) == "" {
		event.Channel = e.channel
	}
	return e.hooks.Notify(ctx, event)
}

// CloneHooks copies hooks without nil entries, or returns nil when none
// remain.
func CloneHooks(hooks Hooks) Hooks {
	var cloned Hooks
	for _, hook := range hooks {
		if hook != nil {
			cloned = append(cloned, hook)
		}
	}
	return cloned
}
