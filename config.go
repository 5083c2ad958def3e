package auth

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
)

// GuardMode selects how protected requests are authenticated
type GuardMode string

const (
	// ModeStateful requires a live session record and enforces idle timeout
	ModeStateful GuardMode = "stateful"
	// ModeStateless trusts any token that verifies
	ModeStateless GuardMode = "stateless"
)

// TokenTransport selects how tokens travel between client and server
type TokenTransport string

const (
	TransportBearer TokenTransport = "bearer"
	TransportCookie TokenTransport = "cookie"
)

// Config holds every tunable of the service. Build it with DefaultConfig
// and override what you need.
type Config struct {
	SigningKey   string
	SigningKeyID string
	// RetiredKeys are previous signing keys by kid, only used to verify
	RetiredKeys map[string]string
	Issuer      string
	Audience    []string

	// TokenTTL is the lifetime of tokens the guard trusts on signature alone
	TokenTTL time.Duration
	// StatefulTokenTTL is the lifetime of session tokens in stateful mode.
	// It must outlive IdleTimeout, the sliding idle window ends sessions
	// long before the token does.
	StatefulTokenTTL time.Duration
	IdleTimeout      time.Duration
	Mode             GuardMode

	LockoutThreshold int
	LockoutWindow    time.Duration

	StoreTimeout time.Duration
	BcryptCost   int

	Transport      TokenTransport
	CookieName     string
	CookieDuration time.Duration
	CookieSecure   bool

	Language string
	// DeterministicIDs derives account ids from the e-mail address
	DeterministicIDs bool

	BrandName string
	BaseURL   string
	MailFrom  string
}

// DefaultConfig returns the configuration the service ships with
func DefaultConfig() Config {
	return Config{
		SigningKeyID:     "default",
		Issuer:           "go-session-auth",
		Audience:         []string{"go-session-auth:api"},
		TokenTTL:         15 * time.Minute,
		StatefulTokenTTL: 12 * time.Hour,
		IdleTimeout:      30 * time.Minute,
		Mode:             ModeStateful,
		LockoutThreshold: 5,
		LockoutWindow:    15 * time.Minute,
		StoreTimeout:     10 * time.Second,
		BcryptCost:       12,
		Transport:        TransportBearer,
		CookieName:       "session",
		CookieDuration:   24 * time.Hour,
		CookieSecure:     true,
		Language:         DefaultLanguage,
		BrandName:        "Session Auth",
		BaseURL:          "http://localhost:8572",
		MailFrom:         "no-reply@localhost",
	}
}

// SessionTTL is the lifetime of the session tokens issued under the
// configured guard mode
func (c Config) SessionTTL() time.Duration {
	if c.Mode == ModeStateful && c.StatefulTokenTTL > 0 {
		return c.StatefulTokenTTL
	}
	return c.TokenTTL
}

// Validate checks the configuration is usable
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.SigningKey, validation.Required, validation.Length(16, 0)),
		validation.Field(&c.SigningKeyID, validation.Required),
		validation.Field(&c.RetiredKeys, validation.By(func(value any) error {
			for kid, key := range c.RetiredKeys {
				if kid == "" || key == "" {
					return errors.New("retired keys need a kid and a key")
				}
				if kid == c.SigningKeyID {
					return errors.New("retired key reuses the active kid")
				}
			}
			return nil
		})),
		validation.Field(&c.TokenTTL, validation.Required),
		validation.Field(&c.IdleTimeout, validation.Required),
		validation.Field(&c.StatefulTokenTTL, validation.By(func(value any) error {
			if c.Mode == ModeStateful && c.StatefulTokenTTL <= c.IdleTimeout {
				return errors.New("must be longer than the idle timeout")
			}
			return nil
		})),
		validation.Field(&c.Mode, validation.Required, validation.In(ModeStateful, ModeStateless)),
		validation.Field(&c.LockoutThreshold, validation.Required, validation.Min(1)),
		validation.Field(&c.LockoutWindow, validation.Required),
		validation.Field(&c.StoreTimeout, validation.Required),
		validation.Field(&c.Transport, validation.Required, validation.In(TransportBearer, TransportCookie)),
		validation.Field(&c.CookieName, validation.Required),
		validation.Field(&c.CookieDuration, validation.By(func(value any) error {
			if c.CookieDuration < c.SessionTTL() {
				return errors.New("must be at least the session token TTL")
			}
			return nil
		})),
		validation.Field(&c.Language, validation.Required),
	)
	if err != nil {
		return NewValidationError(err)
	}
	return nil
}
