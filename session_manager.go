package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// IssuedSession is the result of issuing or refreshing a session
type IssuedSession struct {
	Token     string
	SessionID string
	ExpiresAt time.Time
	Account   *Account
}

// SessionManager owns the set of session records of each account
type SessionManager struct {
	accounts Accounts
	codec    TokenCodec
	ttl      time.Duration
	clock    Clock
	logger   Logger
}

// SessionManagerOption configures a SessionManager
type SessionManagerOption func(*SessionManager)

// WithSessionClock sets the clock used for record timestamps
func WithSessionClock(clock Clock) SessionManagerOption {
	return func(m *SessionManager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// WithSessionLogger sets the logger
func WithSessionLogger(logger Logger) SessionManagerOption {
	return func(m *SessionManager) {
		m.logger = normalizeLogger(logger)
	}
}

// NewSessionManager creates a session manager issuing tokens for
// cfg.SessionTTL
func NewSessionManager(accounts Accounts, codec TokenCodec, cfg Config, opts ...SessionManagerOption) *SessionManager {
	m := &SessionManager{
		accounts: accounts,
		codec:    codec,
		ttl:      cfg.SessionTTL(),
		clock:    systemClock,
		logger:   defLogger{},
	}
	if m.ttl <= 0 {
		m.ttl = DefaultConfig().TokenTTL
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Issue mints a token for account and records the session. Records whose
// token already expired are pruned on the way.
func (m *SessionManager) Issue(ctx context.Context, account *Account) (*IssuedSession, error) {
	if account == nil {
		return nil, ErrAccountNotFound
	}

	token, record, err := m.mint(account)
	if err != nil {
		return nil, err
	}

	updated, err := m.accounts.Update(ctx, account.ID.String(), func(a *Account) error {
		a.PruneExpiredSessions(m.clock())
		a.AddSession(record)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &IssuedSession{
		Token:     token,
		SessionID: record.ID,
		ExpiresAt: record.ExpiresAt,
		Account:   updated,
	}, nil
}

// Refresh swaps oldToken for a new one. Removing the old record and adding
// the new one happen in the same write, so a refreshed-away token can not
// be replayed.
func (m *SessionManager) Refresh(ctx context.Context, oldToken string) (*IssuedSession, error) {
	claims, err := m.codec.Verify(oldToken)
	if err != nil {
		m.logger.Debug("refresh with unverifiable token", "error", err)
		return nil, ErrInvalidToken
	}

	owner, err := m.accounts.FindByID(ctx, claims.UserID())
	if err != nil {
		return nil, err
	}

	if !owner.IsActive() {
		return nil, ErrAccountNotFound
	}

	if owner.FindSession(oldToken) < 0 {
		return nil, ErrInvalidToken
	}

	token, record, err := m.mint(owner)
	if err != nil {
		return nil, err
	}

	updated, err := m.accounts.Update(ctx, owner.ID.String(), func(a *Account) error {
		if !a.IsActive() {
			return ErrAccountNotFound
		}
		if !a.RemoveSession(oldToken) {
			return ErrInvalidToken
		}
		a.PruneExpiredSessions(m.clock())
		a.AddSession(record)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &IssuedSession{
		Token:     token,
		SessionID: record.ID,
		ExpiresAt: record.ExpiresAt,
		Account:   updated,
	}, nil
}

// Revoke removes the session matching token. Revoking an unknown token is
// not an error.
func (m *SessionManager) Revoke(ctx context.Context, accountID, token string) error {
	_, err := m.accounts.Update(ctx, accountID, func(a *Account) error {
		if !a.RemoveSession(token) {
			return errSkipSave
		}
		return nil
	})
	return err
}

// RevokeAll removes every session of the account
func (m *SessionManager) RevokeAll(ctx context.Context, accountID string) error {
	_, err := m.accounts.Update(ctx, accountID, func(a *Account) error {
		if len(a.ActiveSessions) == 0 {
			return errSkipSave
		}
		a.ClearSessions()
		return nil
	})
	return err
}

// List returns the live sessions of the account, marking the one that
// belongs to currentToken.
func (m *SessionManager) List(ctx context.Context, accountID, currentToken string) ([]SessionView, error) {
	account, err := m.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	now := m.clock()
	currentHash := ""
	if currentToken != "" {
		currentHash = HashToken(currentToken)
	}

	views := make([]SessionView, 0, len(account.ActiveSessions))
	for _, s := range account.ActiveSessions {
		if !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt) {
			continue
		}
		views = append(views, SessionView{
			ID:           s.ID,
			IssuedAt:     s.IssuedAt,
			LastActiveAt: s.LastActiveAt,
			ExpiresAt:    s.ExpiresAt,
			Current:      currentHash != "" && s.TokenHash == currentHash,
		})
	}
	return views, nil
}

func (m *SessionManager) mint(account *Account) (string, SessionRecord, error) {
	token, expiresAt, err := m.codec.Issue(ClaimsFor(account), m.ttl)
	if err != nil {
		return "", SessionRecord{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue session token")
	}

	now := m.clock()
	return token, SessionRecord{
		ID:           uuid.NewString(),
		TokenHash:    HashToken(token),
		IssuedAt:     now,
		LastActiveAt: now,
		ExpiresAt:    expiresAt,
	}, nil
}
