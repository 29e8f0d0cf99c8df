package activity

import (
	"strings"
	"time"
)

// Object types used by state events.
const (
	ObjectState      = "state"
	ObjectEditorJob  = "editor.job"
	ObjectEditorJobs = "editor.jobs"
)

// StateEventInput describes the common fields for state change events.
type StateEventInput struct {
	ActorID    string
	UserID     string
	TenantID   string
	SessionID  string
	Path       string
	ObjectID   string
	Metadata   map[string]any
	NewValue   any
	OccurredAt time.Time
}

// BuildStateChangedEvent describes an action that replaced the state at Path.
// The verb is derived from the path, e.g. "state.selection.changed".
func BuildStateChangedEvent(input StateEventInput) Event {
	path := strings.TrimSpace(input.Path)
	verb := "state.changed"
	if path != "" {
		verb = "state." + path + ".changed"
	}
	return buildStateEvent(verb, ObjectState, input)
}

// BuildEditorJobAddedEvent describes a queued editor job. ObjectID should be
// the job id.
func BuildEditorJobAddedEvent(input StateEventInput) Event {
	return buildStateEvent("editor.job.added", ObjectEditorJob, input)
}

// BuildEditorJobsClearedEvent describes the editor job queue being reset.
func BuildEditorJobsClearedEvent(input StateEventInput) Event {
	return buildStateEvent("editor.jobs.cleared", ObjectEditorJobs, input)
}

func buildStateEvent(verb, objectType string, input StateEventInput) Event {
	metadata := cloneMap(input.Metadata)
	if input.Path != "" {
		metadata = ensureMetadata(metadata)
		metadata["path"] = input.Path
	}
	if input.SessionID != "" {
		metadata = ensureMetadata(metadata)
		metadata["session_id"] = input.SessionID
	}
	if input.NewValue != nil {
		metadata = ensureMetadata(metadata)
		metadata["new_value"] = input.NewValue
	}

	objectID := strings.TrimSpace(input.ObjectID)
	if objectID == "" {
		objectID = strings.TrimSpace(input.Path)
	}
	if objectID == "" {
		objectID = strings.TrimSpace(input.SessionID)
	}
	if objectID == "" {
		objectID = objectType
	}

	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		UserID:     strings.TrimSpace(input.UserID),
		TenantID:   strings.TrimSpace(input.TenantID),
		ObjectType: objectType,
		ObjectID:   objectID,
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}
