package activitymap_test

import (
	"context"
	"errors"
	"testing"
	"time"

	auth "github.com/goliatone/go-session-auth"
	"github.com/goliatone/go-session-auth/activitymap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeStatusChange(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)
	event := auth.ActivityEvent{
		EventType:  auth.ActivityEventStatusChanged,
		Actor:      auth.ActorRef{ID: "admin-42", Type: auth.ActorTypeAdmin},
		AccountID:  "acc-100",
		FromStatus: auth.AccountActive,
		ToStatus:   auth.AccountSuspended,
		Metadata:   map[string]any{"ticket": "SEC-204"},
		OccurredAt: ts,
	}

	out := activitymap.Normalize(event)

	assert.Equal(t, "admin-42", out.ActorID)
	assert.Equal(t, string(auth.ActivityEventStatusChanged), out.Verb)
	assert.Equal(t, "account", out.ObjectType)
	assert.Equal(t, "acc-100", out.ObjectID)
	assert.Equal(t, "auth", out.Channel)
	assert.True(t, out.OccurredAt.Equal(ts))

	assert.Equal(t, "SEC-204", out.Metadata["ticket"])
	assert.Equal(t, auth.ActorTypeAdmin, out.Metadata[activitymap.MetadataKeyActorType])
	assert.Equal(t, "active", out.Metadata[activitymap.MetadataKeyFromStatus])
	assert.Equal(t, "suspended", out.Metadata[activitymap.MetadataKeyToStatus])

	// the event metadata is not modified
	assert.Len(t, event.Metadata, 1)
}

func TestNormalizeActorFallbacks(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)
	clock := activitymap.WithClock(func() time.Time { return ts })

	out := activitymap.Normalize(auth.ActivityEvent{
		EventType: auth.ActivityEventLogout,
		AccountID: "acc-7",
	}, clock)
	assert.Equal(t, "acc-7", out.ActorID)
	assert.True(t, out.OccurredAt.Equal(ts))
	assert.Nil(t, out.Metadata)

	out = activitymap.Normalize(auth.ActivityEvent{
		EventType: auth.ActivityEventLoginFailure,
		Metadata:  map[string]any{"email": "ghost@example.com"},
	}, clock, activitymap.WithActorFallback("anonymous"))
	assert.Equal(t, "anonymous", out.ActorID)
	assert.Empty(t, out.ObjectID)
}

func TestNormalizeOptions(t *testing.T) {
	t.Parallel()

	out := activitymap.Normalize(auth.ActivityEvent{
		EventType: auth.ActivityEventLoginSuccess,
		Actor:     auth.ActorRef{ID: "acc-1", Type: auth.ActorTypeAccount},
		AccountID: "acc-1",
		Metadata:  map[string]any{activitymap.MetadataKeyActorType: "custom"},
	}, activitymap.WithChannel(" web "), activitymap.WithObjectType("user"))

	assert.Equal(t, "web", out.Channel)
	assert.Equal(t, "user", out.ObjectType)
	// explicit metadata wins over the derived actor type
	assert.Equal(t, "custom", out.Metadata[activitymap.MetadataKeyActorType])
}

func TestNewSink(t *testing.T) {
	t.Parallel()

	var got []activitymap.Record
	sink := activitymap.NewSink(func(_ context.Context, r activitymap.Record) error {
		got = append(got, r)
		return nil
	})

	require.NoError(t, sink.Record(context.Background(), auth.ActivityEvent{
		EventType: auth.ActivityEventRegistered,
		AccountID: "acc-1",
	}))
	require.Len(t, got, 1)
	assert.Equal(t, "acc-1", got[0].ObjectID)

	failing := activitymap.NewSink(func(context.Context, activitymap.Record) error {
		return errors.New("pipeline down")
	})
	assert.Error(t, failing.Record(context.Background(), auth.ActivityEvent{}))

	assert.NoError(t, activitymap.NewSink(nil).Record(context.Background(), auth.ActivityEvent{}))
}
