package activitymap

import (
	"context"
	"strings"
	"time"

	auth "github.com/goliatone/go-session-auth"
)

const (
	// MetadataKeyActorType holds auth.ActorRef.Type
	MetadataKeyActorType = "actor_type"
	// MetadataKeyFromStatus holds the status an account left
	MetadataKeyFromStatus = "from_status"
	// MetadataKeyToStatus holds the status an account entered
	MetadataKeyToStatus = "to_status"
)

const (
	defaultChannel    = "auth"
	defaultObjectType = "account"
	defaultActorID    = "system"
)

// Record is the flat activity shape handed to audit pipelines
type Record struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization
type Option func(*options)

type options struct {
	channel       string
	objectType    string
	actorFallback string
	clock         func() time.Time
}

// WithChannel sets the channel of every record
func WithChannel(channel string) Option {
	return func(o *options) {
		o.channel = strings.TrimSpace(channel)
	}
}

// WithObjectType sets the object type of every record
func WithObjectType(objectType string) Option {
	return func(o *options) {
		o.objectType = strings.TrimSpace(objectType)
	}
}

// WithActorFallback is used when the event has neither actor nor account id
func WithActorFallback(actorID string) Option {
	return func(o *options) {
		o.actorFallback = strings.TrimSpace(actorID)
	}
}

// WithClock stamps events that carry no time
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		channel:       defaultChannel,
		objectType:    defaultObjectType,
		actorFallback: defaultActorID,
		clock:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// Normalize flattens an auth.ActivityEvent into a Record. The account the
// event is about becomes the object, the actor falls back to it.
func Normalize(event auth.ActivityEvent, opts ...Option) Record {
	o := newOptions(opts)
	return normalize(event, o)
}

func normalize(event auth.ActivityEvent, o options) Record {
	accountID := strings.TrimSpace(event.AccountID)

	actorID := strings.TrimSpace(event.Actor.ID)
	if actorID == "" {
		actorID = accountID
	}
	if actorID == "" {
		actorID = o.actorFallback
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = o.clock()
	}

	return Record{
		ActorID:    actorID,
		Verb:       string(event.EventType),
		ObjectType: o.objectType,
		ObjectID:   accountID,
		Channel:    o.channel,
		Metadata:   metadataOf(event),
		OccurredAt: occurredAt,
	}
}

// NewSink returns an auth.ActivitySink that normalizes every event and
// hands the record to emit.
func NewSink(emit func(context.Context, Record) error, opts ...Option) auth.ActivitySink {
	o := newOptions(opts)
	return auth.ActivitySinkFunc(func(ctx context.Context, event auth.ActivityEvent) error {
		if emit == nil {
			return nil
		}
		return emit(ctx, normalize(event, o))
	})
}

func metadataOf(event auth.ActivityEvent) map[string]any {
	out := make(map[string]any, len(event.Metadata)+3)
	for k, v := range event.Metadata {
		out[k] = v
	}

	if actorType := strings.TrimSpace(event.Actor.Type); actorType != "" {
		if _, exists := out[MetadataKeyActorType]; !exists {
			out[MetadataKeyActorType] = actorType
		}
	}
	if event.FromStatus != "" {
		out[MetadataKeyFromStatus] = string(event.FromStatus)
	}
	if event.ToStatus != "" {
		out[MetadataKeyToStatus] = string(event.ToStatus)
	}

	if len(out) == 0 {
		return nil
	}
	return out
}
