package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSessions(env *testEnv) *SessionManager {
	return NewSessionManager(env.store, env.codec, env.cfg,
		WithSessionClock(env.clock.Now),
		WithSessionLogger(env.logger),
	)
}

func TestSessionManager_Issue(t *testing.T) {
	env := newTestEnv(t)
	account := env.activate(t, "alice@example.com", "Secr3t!!")
	sessions := newTestSessions(env)

	issued, err := sessions.Issue(context.Background(), account)
	require.NoError(t, err)
	assert.NotEmpty(t, issued.Token)
	assert.NotEmpty(t, issued.SessionID)
	assert.True(t, issued.ExpiresAt.Equal(env.clock.Now().Add(env.cfg.SessionTTL())))

	require.Len(t, issued.Account.ActiveSessions, 1)
	record := issued.Account.ActiveSessions[0]
	assert.Equal(t, issued.SessionID, record.ID)
	assert.Equal(t, HashToken(issued.Token), record.TokenHash)
	assert.NotContains(t, record.TokenHash, issued.Token)
}

func TestSessionManager_IssuePrunesExpired(t *testing.T) {
	env := newTestEnv(t)
	account := env.activate(t, "alice@example.com", "Secr3t!!")
	sessions := newTestSessions(env)
	ctx := context.Background()

	_, err := sessions.Issue(ctx, account)
	require.NoError(t, err)

	env.clock.Advance(env.cfg.SessionTTL() + time.Second)

	issued, err := sessions.Issue(ctx, account)
	require.NoError(t, err)
	require.Len(t, issued.Account.ActiveSessions, 1)
	assert.Equal(t, issued.SessionID, issued.Account.ActiveSessions[0].ID)
}

func TestSessionManager_Refresh(t *testing.T) {
	env := newTestEnv(t)
	account := env.activate(t, "alice@example.com", "Secr3t!!")
	sessions := newTestSessions(env)
	ctx := context.Background()

	first, err := sessions.Issue(ctx, account)
	require.NoError(t, err)

	second, err := sessions.Refresh(ctx, first.Token)
	require.NoError(t, err)
	assert.NotEqual(t, first.Token, second.Token)

	require.Len(t, second.Account.ActiveSessions, 1)
	assert.Equal(t, -1, second.Account.FindSession(first.Token))
	assert.Equal(t, 0, second.Account.FindSession(second.Token))

	// a refreshed-away token can not be replayed
	_, err = sessions.Refresh(ctx, first.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSessionManager_RefreshRejections(t *testing.T) {
	env := newTestEnv(t)
	account := env.activate(t, "alice@example.com", "Secr3t!!")
	sessions := newTestSessions(env)
	ctx := context.Background()

	_, err := sessions.Refresh(ctx, "garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)

	issued, err := sessions.Issue(ctx, account)
	require.NoError(t, err)

	_, err = env.store.Update(ctx, account.ID.String(), func(a *Account) error {
		return transitionStatus(a, AccountSuspended)
	})
	require.NoError(t, err)

	_, err = sessions.Refresh(ctx, issued.Token)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestSessionManager_RefreshExpiredToken(t *testing.T) {
	env := newTestEnv(t)
	account := env.activate(t, "alice@example.com", "Secr3t!!")
	sessions := newTestSessions(env)
	ctx := context.Background()

	issued, err := sessions.Issue(ctx, account)
	require.NoError(t, err)

	env.clock.Advance(env.cfg.SessionTTL() + time.Second)

	_, err = sessions.Refresh(ctx, issued.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSessionManager_Revoke(t *testing.T) {
	env := newTestEnv(t)
	account := env.activate(t, "alice@example.com", "Secr3t!!")
	sessions := newTestSessions(env)
	ctx := context.Background()

	one, err := sessions.Issue(ctx, account)
	require.NoError(t, err)
	two, err := sessions.Issue(ctx, account)
	require.NoError(t, err)

	require.NoError(t, sessions.Revoke(ctx, account.ID.String(), one.Token))
	// idempotent
	require.NoError(t, sessions.Revoke(ctx, account.ID.String(), one.Token))

	loaded, err := env.store.FindByID(ctx, account.ID.String())
	require.NoError(t, err)
	require.Len(t, loaded.ActiveSessions, 1)
	assert.Equal(t, 0, loaded.FindSession(two.Token))
}

func TestSessionManager_RevokeAll(t *testing.T) {
	env := newTestEnv(t)
	account := env.activate(t, "alice@example.com", "Secr3t!!")
	sessions := newTestSessions(env)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := sessions.Issue(ctx, account)
		require.NoError(t, err)
	}

	require.NoError(t, sessions.RevokeAll(ctx, account.ID.String()))
	require.NoError(t, sessions.RevokeAll(ctx, account.ID.String()))

	loaded, err := env.store.FindByID(ctx, account.ID.String())
	require.NoError(t, err)
	assert.Empty(t, loaded.ActiveSessions)
}

func TestSessionManager_List(t *testing.T) {
	env := newTestEnv(t)
	account := env.activate(t, "alice@example.com", "Secr3t!!")
	sessions := newTestSessions(env)
	ctx := context.Background()

	one, err := sessions.Issue(ctx, account)
	require.NoError(t, err)
	_, err = sessions.Issue(ctx, account)
	require.NoError(t, err)

	views, err := sessions.List(ctx, account.ID.String(), one.Token)
	require.NoError(t, err)
	require.Len(t, views, 2)

	current := 0
	for _, v := range views {
		if v.Current {
			current++
			assert.Equal(t, one.SessionID, v.ID)
		}
	}
	assert.Equal(t, 1, current)

	env.clock.Advance(env.cfg.SessionTTL())
	views, err = sessions.List(ctx, account.ID.String(), "")
	require.NoError(t, err)
	assert.Empty(t, views)
}
