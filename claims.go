package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims is the payload carried by every session token
type SessionClaims struct {
	jwt.RegisteredClaims
	UID      string      `json:"uid,omitempty"`
	Email    string      `json:"email,omitempty"`
	Name     string      `json:"name,omitempty"`
	Language string      `json:"lang,omitempty"`
	UserRole AccountRole `json:"role,omitempty"`
}

// ClaimsFor builds the identity part of the claims for an account. The
// codec fills in the registered claims.
func ClaimsFor(account *Account) SessionClaims {
	id := account.ID.String()
	return SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: id,
		},
		UID:      id,
		Email:    account.Email,
		Name:     account.DisplayName,
		Language: account.Language,
		UserRole: account.Role,
	}
}

// UserID returns the account ID
func (c *SessionClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject
}

// Role returns the account role
func (c *SessionClaims) Role() AccountRole {
	return c.UserRole
}

// TokenID returns the jti claim
func (c *SessionClaims) TokenID() string {
	return c.ID
}

// Expires returns the expiration time
func (c *SessionClaims) Expires() time.Time {
	if c.ExpiresAt != nil {
		return c.ExpiresAt.Time
	}
	return time.Time{}
}

// Issued returns the issued at time
func (c *SessionClaims) Issued() time.Time {
	if c.IssuedAt != nil {
		return c.IssuedAt.Time
	}
	return time.Time{}
}
