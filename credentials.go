package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// CredentialVerifier checks e-mail/password pairs and runs the per-account
// lockout: more than Threshold failures inside a sliding Window lock the
// account until the window passes, without looking at the password.
type CredentialVerifier struct {
	accounts  Accounts
	hasher    PasswordHasher
	threshold int
	window    time.Duration
	clock     Clock
	logger    Logger
}

// CredentialVerifierOption configures a CredentialVerifier
type CredentialVerifierOption func(*CredentialVerifier)

// WithVerifierClock sets the clock, tests use it to move through the window
func WithVerifierClock(clock Clock) CredentialVerifierOption {
	return func(v *CredentialVerifier) {
		if clock != nil {
			v.clock = clock
		}
	}
}

// WithVerifierLogger sets the logger
func WithVerifierLogger(logger Logger) CredentialVerifierOption {
	return func(v *CredentialVerifier) {
		v.logger = normalizeLogger(logger)
	}
}

// NewCredentialVerifier creates a verifier using the lockout settings of cfg
func NewCredentialVerifier(accounts Accounts, hasher PasswordHasher, cfg Config, opts ...CredentialVerifierOption) *CredentialVerifier {
	def := DefaultConfig()
	v := &CredentialVerifier{
		accounts:  accounts,
		hasher:    hasher,
		threshold: cfg.LockoutThreshold,
		window:    cfg.LockoutWindow,
		clock:     systemClock,
		logger:    defLogger{},
	}
	if v.threshold <= 0 {
		v.threshold = def.LockoutThreshold
	}
	if v.window <= 0 {
		v.window = def.LockoutWindow
	}

	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v
}

// Verify returns the active account for email when password matches.
// Fails with ErrAccountNotFound, ErrLockedOut or ErrInvalidCredentials.
func (v *CredentialVerifier) Verify(ctx context.Context, email, password string) (*Account, error) {
	account, err := v.accounts.FindActiveByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	now := v.clock()
	if v.isLocked(account, now) {
		v.logger.Warn("login attempt while locked out", "account_id", account.ID, "attempts", account.LoginAttemptCount)
		return nil, ErrLockedOut
	}

	if err := v.hasher.Compare(password, account.PasswordHash); err != nil {
		if !goerrors.Is(err, ErrInvalidCredentials) {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to compare password")
		}

		if _, err := v.accounts.Update(ctx, account.ID.String(), func(a *Account) error {
			v.recordFailure(a, now)
			return nil
		}); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to track login attempt")
		}

		return nil, ErrInvalidCredentials
	}

	if account.LoginAttemptCount == 0 && account.LastLoginFailureAt == nil {
		return account, nil
	}

	updated, err := v.accounts.Update(ctx, account.ID.String(), func(a *Account) error {
		a.LoginAttemptCount = 0
		a.LastLoginFailureAt = nil
		return nil
	})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to track successful login")
	}

	return updated, nil
}

// IsLocked reports whether the account is inside an active lockout
func (v *CredentialVerifier) IsLocked(account *Account) bool {
	return v.isLocked(account, v.clock())
}

func (v *CredentialVerifier) isLocked(account *Account, now time.Time) bool {
	if account.LastLoginFailureAt == nil {
		return false
	}
	return now.Sub(*account.LastLoginFailureAt) < v.window &&
		account.LoginAttemptCount > v.threshold
}

// recordFailure runs on the freshly read record so concurrent failures
// never lose an increment.
func (v *CredentialVerifier) recordFailure(a *Account, now time.Time) {
	stale := a.LastLoginFailureAt == nil || now.Sub(*a.LastLoginFailureAt) >= v.window
	if stale {
		a.LoginAttemptCount = 0
	}
	a.LoginAttemptCount++
	failedAt := now
	a.LastLoginFailureAt = &failedAt
}
