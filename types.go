package auth

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Logger is the structured logger used across the package. Arguments after
// the message are key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// PasswordHasher hashes and compares passwords
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(password, hash string) error
}

// TokenCodec signs and verifies session tokens
type TokenCodec interface {
	Issue(claims SessionClaims, ttl time.Duration) (string, time.Time, error)
	Verify(token string) (*SessionClaims, error)
}

// Accounts is the persistence contract the core components rely on.
type Accounts interface {
	Create(ctx context.Context, reg Registration) (*Account, error)
	FindByID(ctx context.Context, id string) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindActiveByEmail(ctx context.Context, email string) (*Account, error)
	FindByVerificationToken(ctx context.Context, token string) (*Account, error)
	FindByResetToken(ctx context.Context, token string) (*Account, error)
	Save(ctx context.Context, account *Account) error
	Update(ctx context.Context, id string, mutate func(*Account) error) (*Account, error)
}

// Clock returns the current time, tests inject fixed clocks.
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}

type defLogger struct{}

func (d defLogger) Debug(msg string, args ...any) {
	fmt.Println("[DBG] AUTH " + msg + formatArgs(args))
}

func (d defLogger) Info(msg string, args ...any) {
	fmt.Println("[INF] AUTH " + msg + formatArgs(args))
}

func (d defLogger) Warn(msg string, args ...any) {
	fmt.Println("[WRN] AUTH " + msg + formatArgs(args))
}

func (d defLogger) Error(msg string, args ...any) {
	fmt.Println("[ERR] AUTH " + msg + formatArgs(args))
}

func formatArgs(args []any) string {
	var b strings.Builder
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
		} else {
			fmt.Fprintf(&b, " %v", args[i])
		}
	}
	return b.String()
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}
