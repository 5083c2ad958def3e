package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVerifier(env *testEnv) *CredentialVerifier {
	return NewCredentialVerifier(env.store, plainHasher{}, env.cfg,
		WithVerifierClock(env.clock.Now),
		WithVerifierLogger(env.logger),
	)
}

func TestCredentialVerifier_Success(t *testing.T) {
	env := newTestEnv(t)
	env.activate(t, "alice@example.com", "Secr3t!!")
	verifier := newTestVerifier(env)

	account, err := verifier.Verify(context.Background(), "Alice@Example.com", "Secr3t!!")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", account.Email)
}

func TestCredentialVerifier_UnknownAndInactive(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "pending@example.com", "Secr3t!!")
	verifier := newTestVerifier(env)
	ctx := context.Background()

	_, err := verifier.Verify(ctx, "ghost@example.com", "Secr3t!!")
	assert.ErrorIs(t, err, ErrAccountNotFound)

	_, err = verifier.Verify(ctx, "pending@example.com", "Secr3t!!")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestCredentialVerifier_FailuresAreCounted(t *testing.T) {
	env := newTestEnv(t)
	account := env.activate(t, "alice@example.com", "Secr3t!!")
	verifier := newTestVerifier(env)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		_, err := verifier.Verify(ctx, "alice@example.com", "wrong-one")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}

	loaded, err := env.store.FindByID(ctx, account.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.LoginAttemptCount)
	require.NotNil(t, loaded.LastLoginFailureAt)

	// success resets the counters
	_, err = verifier.Verify(ctx, "alice@example.com", "Secr3t!!")
	require.NoError(t, err)

	loaded, err = env.store.FindByID(ctx, account.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 0, loaded.LoginAttemptCount)
	assert.Nil(t, loaded.LastLoginFailureAt)
}

func TestCredentialVerifier_Lockout(t *testing.T) {
	env := newTestEnv(t)
	env.activate(t, "alice@example.com", "Secr3t!!")
	verifier := newTestVerifier(env)
	ctx := context.Background()

	// threshold 5: the sixth failure inside the window locks the account
	for i := 0; i < 6; i++ {
		_, err := verifier.Verify(ctx, "alice@example.com", "wrong-one")
		assert.ErrorIs(t, err, ErrInvalidCredentials, "attempt %d", i+1)
		env.clock.Advance(time.Minute)
	}

	// locked: even the right password is refused
	_, err := verifier.Verify(ctx, "alice@example.com", "Secr3t!!")
	assert.ErrorIs(t, err, ErrLockedOut)

	account, err := env.store.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.True(t, verifier.IsLocked(account))

	// the window slides from the last failure
	env.clock.Advance(15 * time.Minute)
	assert.False(t, verifier.IsLocked(account))

	_, err = verifier.Verify(ctx, "alice@example.com", "Secr3t!!")
	require.NoError(t, err)
}

func TestCredentialVerifier_StaleFailuresReset(t *testing.T) {
	env := newTestEnv(t)
	account := env.activate(t, "alice@example.com", "Secr3t!!")
	verifier := newTestVerifier(env)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := verifier.Verify(ctx, "alice@example.com", "wrong-one")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}

	env.clock.Advance(16 * time.Minute)

	_, err := verifier.Verify(ctx, "alice@example.com", "wrong-one")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	loaded, err := env.store.FindByID(ctx, account.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.LoginAttemptCount)
	assert.True(t, loaded.LastLoginFailureAt.Equal(env.clock.Now()))
}

func TestCredentialVerifier_LockoutIsPerAccount(t *testing.T) {
	env := newTestEnv(t)
	env.activate(t, "alice@example.com", "Secr3t!!")
	env.activate(t, "bob@example.com", "Secr3t!!")
	verifier := newTestVerifier(env)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		_, _ = verifier.Verify(ctx, "alice@example.com", "wrong-one")
	}

	_, err := verifier.Verify(ctx, "alice@example.com", "Secr3t!!")
	assert.ErrorIs(t, err, ErrLockedOut)

	_, err = verifier.Verify(ctx, "bob@example.com", "Secr3t!!")
	assert.NoError(t, err)
}
