package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	goerrors "github.com/goliatone/go-errors"
)

// tokenBytes is the entropy of verification and reset tokens
const tokenBytes = 16

// VerificationFlow issues and consumes the single use e-mail tokens
type VerificationFlow struct {
	accounts Accounts
	logger   Logger
}

// NewVerificationFlow creates a flow over accounts
func NewVerificationFlow(accounts Accounts) *VerificationFlow {
	return &VerificationFlow{
		accounts: accounts,
		logger:   defLogger{},
	}
}

// WithLogger overrides the logger used by the flow.
func (f *VerificationFlow) WithLogger(logger Logger) *VerificationFlow {
	if logger != nil {
		f.logger = logger
	}
	return f
}

// IssueVerification stores a fresh verification token on a pending account
// and returns it for delivery. The previous token stops working.
func (f *VerificationFlow) IssueVerification(ctx context.Context, accountID string) (string, error) {
	if err := ctxErr(ctx, "verification issue"); err != nil {
		return "", err
	}

	token, err := newRandomToken()
	if err != nil {
		return "", err
	}

	_, err = f.accounts.Update(ctx, accountID, func(a *Account) error {
		if a.Status != AccountPendingVerification {
			return ErrInvalidTransition
		}
		a.VerificationToken = token
		return nil
	})
	if err != nil {
		return "", err
	}

	return token, nil
}

// ConsumeVerification activates the pending account holding token. The
// token is cleared, a second call with it fails with ErrInvalidToken.
func (f *VerificationFlow) ConsumeVerification(ctx context.Context, token string) (*Account, error) {
	if err := ctxErr(ctx, "verification consume"); err != nil {
		return nil, err
	}

	account, err := f.accounts.FindByVerificationToken(ctx, token)
	if err != nil {
		if goerrors.Is(err, ErrAccountNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	updated, err := f.accounts.Update(ctx, account.ID.String(), func(a *Account) error {
		// someone else consumed it between the lookup and the write
		if a.Status != AccountPendingVerification || a.VerificationToken != token {
			return ErrInvalidToken
		}
		a.Status = AccountActive
		a.VerificationToken = ""
		a.LoginAttemptCount = 0
		a.LastLoginFailureAt = nil
		return nil
	})
	if err != nil {
		if goerrors.Is(err, ErrAccountNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	return updated, nil
}

// IssuePasswordReset stores a reset token on the account registered under
// email, whatever its status.
func (f *VerificationFlow) IssuePasswordReset(ctx context.Context, email string) (string, *Account, error) {
	if err := ctxErr(ctx, "password reset issue"); err != nil {
		return "", nil, err
	}

	account, err := f.accounts.FindByEmail(ctx, email)
	if err != nil {
		return "", nil, err
	}

	token, err := newRandomToken()
	if err != nil {
		return "", nil, err
	}

	updated, err := f.accounts.Update(ctx, account.ID.String(), func(a *Account) error {
		a.PasswordResetToken = token
		return nil
	})
	if err != nil {
		return "", nil, err
	}

	return token, updated, nil
}

// ConsumePasswordReset sets newPassword on the account holding token and
// clears the token. An unknown token fails with ErrInvalidToken before the
// password is checked.
func (f *VerificationFlow) ConsumePasswordReset(ctx context.Context, token, newPassword string) (*Account, error) {
	if err := ctxErr(ctx, "password reset consume"); err != nil {
		return nil, err
	}

	account, err := f.accounts.FindByResetToken(ctx, token)
	if err != nil {
		if goerrors.Is(err, ErrAccountNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	if err := ValidatePassword(newPassword); err != nil {
		return nil, err
	}

	updated, err := f.accounts.Update(ctx, account.ID.String(), func(a *Account) error {
		if a.PasswordResetToken != token {
			return ErrInvalidToken
		}
		a.SetPassword(newPassword)
		a.PasswordResetToken = ""
		return nil
	})
	if err != nil {
		if goerrors.Is(err, ErrAccountNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	return updated, nil
}

func ctxErr(ctx context.Context, operation string) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during "+operation,
		)
	default:
		return nil
	}
}

func newRandomToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate token")
	}
	return hex.EncodeToString(b), nil
}
