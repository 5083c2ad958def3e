package auth

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccount_SessionHelpers(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	account := testAccount()

	account.AddSession(SessionRecord{ID: "a", TokenHash: HashToken("token-a"), ExpiresAt: now.Add(time.Minute)})
	account.AddSession(SessionRecord{ID: "b", TokenHash: HashToken("token-b"), ExpiresAt: now.Add(-time.Minute)})
	account.AddSession(SessionRecord{ID: "c", TokenHash: HashToken("token-c")})

	assert.Equal(t, 0, account.FindSession("token-a"))
	assert.Equal(t, 2, account.FindSession("token-c"))
	assert.Equal(t, -1, account.FindSession("token-z"))

	assert.Equal(t, 1, account.PruneExpiredSessions(now))
	assert.Equal(t, -1, account.FindSession("token-b"))

	assert.True(t, account.RemoveSession("token-a"))
	assert.False(t, account.RemoveSession("token-a"))
	require.Len(t, account.ActiveSessions, 1)
	assert.Equal(t, "c", account.ActiveSessions[0].ID)

	account.ClearSessions()
	assert.NotNil(t, account.ActiveSessions)
	assert.Empty(t, account.ActiveSessions)
}

func TestAccount_PendingPassword(t *testing.T) {
	account := testAccount()

	_, ok := account.PendingPassword()
	assert.False(t, ok)

	account.SetPassword("Secr3t!!")
	pw, ok := account.PendingPassword()
	assert.True(t, ok)
	assert.Equal(t, "Secr3t!!", pw)

	account.clearPendingPassword()
	_, ok = account.PendingPassword()
	assert.False(t, ok)
}

func TestAccount_SecretsNeverSerialize(t *testing.T) {
	account := testAccount()
	account.PasswordHash = "plain:Secr3t!!"
	account.VerificationToken = "verify-me"
	account.PasswordResetToken = "reset-me"
	account.AddSession(SessionRecord{ID: "a", TokenHash: HashToken("token-a")})

	for _, v := range []any{account, account.View()} {
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		out := string(raw)
		assert.NotContains(t, out, "Secr3t")
		assert.NotContains(t, out, "verify-me")
		assert.NotContains(t, out, "reset-me")
		assert.NotContains(t, out, HashToken("token-a"))
	}
}

func TestAccount_View(t *testing.T) {
	account := testAccount()
	view := account.View()

	assert.Equal(t, account.ID.String(), view.ID)
	assert.Equal(t, "Alice", view.Name)
	assert.Equal(t, "alice@example.com", view.Email)
	assert.Equal(t, AccountActive, view.Status)
	assert.Equal(t, RoleUser, view.Role)
}

func TestProfilePatch(t *testing.T) {
	name := "  Alice Liddell "
	lang := "spanish"

	assert.True(t, ProfilePatch{}.IsEmpty())
	assert.True(t, IsValidationError(ProfilePatch{}.Validate()))

	patch := ProfilePatch{Name: &name, Language: &lang}
	require.NoError(t, patch.Validate())

	account := testAccount()
	patch.Apply(account)
	assert.Equal(t, "Alice Liddell", account.DisplayName)
	assert.Equal(t, "spanish", account.Language)
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "alice@example.com", NormalizeEmail("  Alice@Example.COM "))
}

func TestHashToken(t *testing.T) {
	assert.Len(t, HashToken("abc"), 64)
	assert.Equal(t, HashToken("abc"), HashToken("abc"))
	assert.NotEqual(t, HashToken("abc"), HashToken("abd"))
}
