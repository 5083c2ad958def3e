package auth

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventRegistered           ActivityEventType = "auth.account.registered"
	ActivityEventVerified             ActivityEventType = "auth.account.verified"
	ActivityEventVerificationResent   ActivityEventType = "auth.account.verification_resent"
	ActivityEventStatusChanged        ActivityEventType = "auth.account.status.changed"
	ActivityEventProfileUpdated       ActivityEventType = "auth.account.profile.updated"
	ActivityEventLoginSuccess         ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure         ActivityEventType = "auth.login.failure"
	ActivityEventLockedOut            ActivityEventType = "auth.login.locked"
	ActivityEventSessionRefreshed     ActivityEventType = "auth.session.refreshed"
	ActivityEventLogout               ActivityEventType = "auth.session.logout"
	ActivityEventLogoutAll            ActivityEventType = "auth.session.logout_all"
	ActivityEventPasswordChanged      ActivityEventType = "auth.password.changed"
	ActivityEventPasswordResetRequest ActivityEventType = "auth.password.reset_requested"
	ActivityEventPasswordResetSuccess ActivityEventType = "auth.password.reset"
)

// ActorRef identifies who/what triggered an event.
type ActorRef struct {
	ID   string
	Type string
}

const (
	ActorTypeAccount = "account"
	ActorTypeAdmin   = "admin"
	ActorTypeSystem  = "system"
)

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	AccountID  string
	FromStatus AccountStatus
	ToStatus   AccountStatus
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

// LogActivitySink writes every event to a Logger
type LogActivitySink struct {
	logger Logger
}

// NewLogActivitySink returns a sink logging through logger
func NewLogActivitySink(logger Logger) *LogActivitySink {
	return &LogActivitySink{logger: normalizeLogger(logger)}
}

// Record implements ActivitySink.
func (s *LogActivitySink) Record(_ context.Context, event ActivityEvent) error {
	args := []any{
		"event", event.EventType,
		"actor_id", event.Actor.ID,
		"actor_type", event.Actor.Type,
		"account_id", event.AccountID,
		"occurred_at", event.OccurredAt,
	}
	if event.FromStatus != "" || event.ToStatus != "" {
		args = append(args, "from", event.FromStatus, "to", event.ToStatus)
	}
	for k, v := range event.Metadata {
		args = append(args, k, v)
	}
	s.logger.Info("activity", args...)
	return nil
}
