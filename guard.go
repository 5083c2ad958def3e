package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

var (
	errNoToken        = goerrors.New("no session token provided", goerrors.CategoryAuth).WithTextCode("NO_TOKEN")
	errSessionMissing = goerrors.New("no matching session record", goerrors.CategoryAuth).WithTextCode("SESSION_MISSING")
	errSessionIdle    = goerrors.New("session idle timeout", goerrors.CategoryAuth).WithTextCode("SESSION_IDLE")
)

// Principal is the authenticated caller of a protected operation
type Principal struct {
	AccountID string
	Email     string
	Name      string
	Language  string
	Role      AccountRole
	Token     string
	Claims    *SessionClaims
	// Account is only loaded in stateful mode
	Account *Account
}

// IsAdmin reports whether the principal may call admin operations
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role.IsAdmin()
}

// Guard authenticates raw tokens. Every failure is ErrUnauthenticated, the
// actual reason is only logged.
type Guard struct {
	accounts Accounts
	codec    TokenCodec
	mode     GuardMode
	idle     time.Duration
	clock    Clock
	logger   Logger
}

// GuardOption configures a Guard
type GuardOption func(*Guard)

// WithGuardClock sets the clock used for idle checks
func WithGuardClock(clock Clock) GuardOption {
	return func(g *Guard) {
		if clock != nil {
			g.clock = clock
		}
	}
}

// WithGuardLogger sets the logger
func WithGuardLogger(logger Logger) GuardOption {
	return func(g *Guard) {
		g.logger = normalizeLogger(logger)
	}
}

// NewGuard creates a guard running in cfg.Mode
func NewGuard(accounts Accounts, codec TokenCodec, cfg Config, opts ...GuardOption) *Guard {
	def := DefaultConfig()
	g := &Guard{
		accounts: accounts,
		codec:    codec,
		mode:     cfg.Mode,
		idle:     cfg.IdleTimeout,
		clock:    systemClock,
		logger:   defLogger{},
	}
	if g.mode == "" {
		g.mode = def.Mode
	}
	if g.idle <= 0 {
		g.idle = def.IdleTimeout
	}

	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Mode returns the mode the guard runs in
func (g *Guard) Mode() GuardMode {
	return g.mode
}

// Authenticate resolves rawToken into a Principal
func (g *Guard) Authenticate(ctx context.Context, rawToken string) (*Principal, error) {
	principal, err := g.authenticate(ctx, rawToken)
	if err != nil {
		g.logger.Debug("authentication failed", "mode", g.mode, "reason", err)
		return nil, ErrUnauthenticated
	}
	return principal, nil
}

func (g *Guard) authenticate(ctx context.Context, rawToken string) (*Principal, error) {
	if rawToken == "" {
		return nil, errNoToken
	}

	claims, err := g.codec.Verify(rawToken)
	if err != nil {
		return nil, err
	}

	principal := &Principal{
		AccountID: claims.UserID(),
		Email:     claims.Email,
		Name:      claims.Name,
		Language:  claims.Language,
		Role:      claims.Role(),
		Token:     rawToken,
		Claims:    claims,
	}

	if g.mode == ModeStateless {
		return principal, nil
	}

	account, err := g.touch(ctx, claims.UserID(), rawToken)
	if err != nil {
		return nil, err
	}

	principal.Email = account.Email
	principal.Name = account.DisplayName
	principal.Language = account.Language
	principal.Role = account.Role
	principal.Account = account

	return principal, nil
}

// touch requires the session record, evicts it when idle for too long and
// slides its last active time otherwise.
func (g *Guard) touch(ctx context.Context, accountID, rawToken string) (*Account, error) {
	now := g.clock()

	account, err := g.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if account.FindSession(rawToken) < 0 {
		return nil, errSessionMissing
	}

	evicted := false
	updated, err := g.accounts.Update(ctx, accountID, func(a *Account) error {
		evicted = false
		idx := a.FindSession(rawToken)
		if idx < 0 {
			return errSessionMissing
		}

		if now.Sub(a.ActiveSessions[idx].LastActiveAt) >= g.idle {
			a.RemoveSession(rawToken)
			evicted = true
			return nil
		}

		a.ActiveSessions[idx].LastActiveAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	if evicted {
		return nil, errSessionIdle
	}

	return updated, nil
}
