// Package usersink forwards starmap activity events to a go-users
// ActivitySink, so state changes and editor jobs land in the same audit log
// as user activity.
package usersink

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-starmap/pkg/activity"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

// ObjectTypePrefix namespaces starmap object types in the shared audit log.
const ObjectTypePrefix = "starmap."

// Hook adapts activity events to a go-users ActivitySink.
//
// Events without a parsable actor are attributed to the user, and events
// without a tenant to Tenant. Now stamps events that carry no timestamp.
type Hook struct {
	Sink   usertypes.ActivitySink
	Tenant uuid.UUID
	Now    func() time.Time
}

// Notify maps the event into an ActivityRecord and forwards it to the sink.
// Events missing a verb, object type or object id are dropped.
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil {
		return nil
	}
	if !event.Complete() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return h.Sink.Log(ctx, h.record(event))
}

func (h Hook) record(event activity.Event) usertypes.ActivityRecord {
	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = h.now()
	}
	normalized := activity.NormalizeEvent(event)

	userID := parseUUID(normalized.UserID)
	actorID := parseUUID(normalized.ActorID)
	if actorID == uuid.Nil {
		actorID = userID
	}
	tenantID := parseUUID(normalized.TenantID)
	if tenantID == uuid.Nil {
		tenantID = h.Tenant
	}

	return usertypes.ActivityRecord{
		ActorID:    actorID,
		UserID:     userID,
		TenantID:   tenantID,
		Verb:       normalized.Verb,
		ObjectType: ObjectTypePrefix + normalized.ObjectType,
		ObjectID:   normalized.ObjectID,
		Channel:    normalized.Channel,
		Data:       recordData(normalized),
		OccurredAt: occurredAt,
	}
}

func (h Hook) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// recordData keeps event metadata and preserves actor ids that are not
// UUIDs, which the record's typed fields would otherwise lose.
func recordData(event activity.Event) map[string]any {
	data := make(map[string]any, len(event.Metadata)+1)
	for key, value := range event.Metadata {
		data[key] = value
	}
	if event.ActorID != "" && parseUUID(event.ActorID) == uuid.Nil {
		data["actor"] = event.ActorID
	}
	if len(data) == 0 {
		return nil
	}
	return data
}

func parseUUID(input string) uuid.UUID {
	id, err := uuid.Parse(strings.TrimSpace(input))
	if err != nil {
		return uuid.Nil
	}
	return id
}
