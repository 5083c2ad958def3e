package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AccountStatus is the lifecycle state of an account
type AccountStatus string

const (
	// AccountPendingVerification new accounts, waiting for e-mail confirmation
	AccountPendingVerification AccountStatus = "pending_verification"
	// AccountActive accounts can log in
	AccountActive AccountStatus = "active"
	// AccountSuspended accounts are blocked by an administrator
	AccountSuspended AccountStatus = "suspended"
)

// DefaultLanguage is assigned when registration does not pick one
const DefaultLanguage = "english"

// SessionRecord ties one issued token to an account. Only the token hash
// is persisted.
type SessionRecord struct {
	ID           string    `json:"id"`
	TokenHash    string    `json:"token_hash"`
	IssuedAt     time.Time `json:"issued_at"`
	LastActiveAt time.Time `json:"last_active_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Account is the durable record of one identity and all of its auth state
type Account struct {
	bun.BaseModel      `bun:"table:accounts,alias:acc"`
	ID                 uuid.UUID       `bun:"id,pk,type:uuid" json:"id"`
	Email              string          `bun:"email,notnull,unique" json:"email"`
	DisplayName        string          `bun:"display_name,notnull" json:"name"`
	PasswordHash       string          `bun:"password_hash,notnull" json:"-"`
	Language           string          `bun:"language,notnull" json:"language"`
	Status             AccountStatus   `bun:"status,notnull" json:"status"`
	Role               AccountRole     `bun:"role,notnull" json:"role"`
	LoginAttemptCount  int             `bun:"login_attempt_count,notnull" json:"-"`
	LastLoginFailureAt *time.Time      `bun:"last_login_failure_at,nullzero" json:"-"`
	VerificationToken  string          `bun:"verification_token,nullzero" json:"-"`
	PasswordResetToken string          `bun:"password_reset_token,nullzero" json:"-"`
	ActiveSessions     []SessionRecord `bun:"active_sessions,notnull" json:"-"`
	Version            int64           `bun:"version,notnull" json:"-"`
	CreatedAt          time.Time       `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt          time.Time       `bun:"updated_at,notnull" json:"updated_at"`

	// plaintext waiting to be validated and hashed by the store
	password string
}

// SetPassword stages a new plaintext password. The store validates and
// hashes it on the next save; saves without a staged password never rehash.
func (a *Account) SetPassword(password string) {
	a.password = password
}

// PendingPassword returns the staged plaintext, if any
func (a *Account) PendingPassword() (string, bool) {
	return a.password, a.password != ""
}

func (a *Account) clearPendingPassword() {
	a.password = ""
}

// IsActive reports whether the account may authenticate by password
func (a *Account) IsActive() bool {
	return a.Status == AccountActive
}

// FindSession returns the index of the record matching token, -1 if absent
func (a *Account) FindSession(token string) int {
	hash := HashToken(token)
	for i, s := range a.ActiveSessions {
		if s.TokenHash == hash {
			return i
		}
	}
	return -1
}

// AddSession appends a session record
func (a *Account) AddSession(record SessionRecord) {
	a.ActiveSessions = append(a.ActiveSessions, record)
}

// RemoveSession drops the record matching token. Returns false when no
// record matched.
func (a *Account) RemoveSession(token string) bool {
	idx := a.FindSession(token)
	if idx < 0 {
		return false
	}
	sessions := make([]SessionRecord, 0, len(a.ActiveSessions)-1)
	sessions = append(sessions, a.ActiveSessions[:idx]...)
	sessions = append(sessions, a.ActiveSessions[idx+1:]...)
	a.ActiveSessions = sessions
	return true
}

// ClearSessions removes every session record
func (a *Account) ClearSessions() {
	a.ActiveSessions = []SessionRecord{}
}

// PruneExpiredSessions drops records whose token already expired
func (a *Account) PruneExpiredSessions(now time.Time) int {
	kept := make([]SessionRecord, 0, len(a.ActiveSessions))
	for _, s := range a.ActiveSessions {
		if !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt) {
			continue
		}
		kept = append(kept, s)
	}
	pruned := len(a.ActiveSessions) - len(kept)
	a.ActiveSessions = kept
	return pruned
}

// View returns the wire representation of the account
func (a *Account) View() AccountView {
	return AccountView{
		ID:        a.ID.String(),
		Name:      a.DisplayName,
		Email:     a.Email,
		Language:  a.Language,
		Status:    a.Status,
		Role:      a.Role,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

// AccountView is the only account shape that leaves the service
type AccountView struct {
	ID        string        `json:"_id"`
	Name      string        `json:"name"`
	Email     string        `json:"email"`
	Language  string        `json:"language"`
	Status    AccountStatus `json:"status"`
	Role      AccountRole   `json:"role"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// Registration holds the values needed to create an account
type Registration struct {
	Name              string      `json:"name"`
	Email             string      `json:"email"`
	Password          string      `json:"password"`
	Language          string      `json:"language"`
	Role              AccountRole `json:"role"`
	VerificationToken string      `json:"-"`
}

// ProfilePatch carries the only profile fields an owner may change
type ProfilePatch struct {
	Name     *string `json:"name,omitempty"`
	Language *string `json:"language,omitempty"`
}

// IsEmpty reports whether the patch changes nothing
func (p ProfilePatch) IsEmpty() bool {
	return p.Name == nil && p.Language == nil
}

// Apply copies the patch onto the account
func (p ProfilePatch) Apply(a *Account) {
	if p.Name != nil {
		a.DisplayName = strings.TrimSpace(*p.Name)
	}
	if p.Language != nil {
		a.Language = strings.TrimSpace(*p.Language)
	}
}

// SessionView is the wire shape of a session record
type SessionView struct {
	ID           string    `json:"id"`
	IssuedAt     time.Time `json:"issuedAt"`
	LastActiveAt time.Time `json:"lastActiveAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
	Current      bool      `json:"current"`
}

// NormalizeEmail trims and lowercases an address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// HashToken returns the hex SHA-256 of a raw token
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
