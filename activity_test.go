package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogActivitySink(t *testing.T) {
	logger := &captureLogger{}
	sink := NewLogActivitySink(logger)

	err := sink.Record(context.Background(), ActivityEvent{
		EventType:  ActivityEventStatusChanged,
		Actor:      ActorRef{ID: "admin-1", Type: ActorTypeAdmin},
		AccountID:  "acc-1",
		FromStatus: AccountActive,
		ToStatus:   AccountSuspended,
		Metadata:   map[string]any{"ticket": "SEC-1"},
		OccurredAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	out := logger.String()
	assert.Contains(t, out, "event=auth.account.status.changed")
	assert.Contains(t, out, "account_id=acc-1")
	assert.Contains(t, out, "from=active")
	assert.Contains(t, out, "to=suspended")
	assert.Contains(t, out, "ticket=SEC-1")
}

func TestActivitySinkFunc(t *testing.T) {
	var got ActivityEvent
	sink := ActivitySinkFunc(func(_ context.Context, e ActivityEvent) error {
		got = e
		return nil
	})
	require.NoError(t, sink.Record(context.Background(), ActivityEvent{EventType: ActivityEventLogout}))
	assert.Equal(t, ActivityEventLogout, got.EventType)

	var nilSink ActivitySinkFunc
	assert.NoError(t, nilSink.Record(context.Background(), ActivityEvent{}))

	assert.IsType(t, noopActivitySink{}, normalizeActivitySink(nil))
}

func TestService_SinkErrorsAreLogged(t *testing.T) {
	env := newTestEnv(t)
	svc, err := NewService(env.cfg, env.store,
		WithHasher(plainHasher{}),
		WithTokenCodec(env.codec),
		WithClock(env.clock.Now),
		WithLogger(env.logger),
		WithMailer(&outbox{}),
		WithActivitySink(ActivitySinkFunc(func(context.Context, ActivityEvent) error {
			return assert.AnError
		})),
	)
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), RegisterRequest{
		Name:     "Alice",
		Email:    "alice@example.com",
		Password: "Secr3t!!",
	})
	require.NoError(t, err)
	assert.Contains(t, env.logger.String(), "activity sink record error")
}
