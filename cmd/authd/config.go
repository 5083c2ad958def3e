package main

import (
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	goerrors "github.com/goliatone/go-errors"
	auth "github.com/goliatone/go-session-auth"
)

// EnvConfig is the process configuration, read from AUTH_* variables
type EnvConfig struct {
	Addr  string `env:"AUTH_ADDR" envDefault:":8572"`
	DSN   string `env:"AUTH_DATABASE_DSN" envDefault:"file:auth.db?cache=shared"`
	Debug bool   `env:"AUTH_DEBUG" envDefault:"false"`

	SigningKey   string            `env:"AUTH_SIGNING_KEY,required,notEmpty"`
	SigningKeyID string            `env:"AUTH_SIGNING_KEY_ID" envDefault:"default"`
	RetiredKeys  map[string]string `env:"AUTH_RETIRED_KEYS"`
	Issuer       string            `env:"AUTH_ISSUER" envDefault:"go-session-auth"`
	Audience     []string          `env:"AUTH_AUDIENCE" envDefault:"go-session-auth:api"`

	TokenTTL         time.Duration `env:"AUTH_TOKEN_TTL" envDefault:"15m"`
	StatefulTokenTTL time.Duration `env:"AUTH_STATEFUL_TOKEN_TTL" envDefault:"12h"`
	IdleTimeout      time.Duration `env:"AUTH_IDLE_TIMEOUT" envDefault:"30m"`
	Mode             string        `env:"AUTH_GUARD_MODE" envDefault:"stateful"`

	LockoutThreshold int           `env:"AUTH_LOCKOUT_THRESHOLD" envDefault:"5"`
	LockoutWindow    time.Duration `env:"AUTH_LOCKOUT_WINDOW" envDefault:"15m"`
	StoreTimeout     time.Duration `env:"AUTH_STORE_TIMEOUT" envDefault:"10s"`
	BcryptCost       int           `env:"AUTH_BCRYPT_COST" envDefault:"12"`

	Transport      string        `env:"AUTH_TOKEN_TRANSPORT" envDefault:"bearer"`
	CookieName     string        `env:"AUTH_COOKIE_NAME" envDefault:"session"`
	CookieDuration time.Duration `env:"AUTH_COOKIE_DURATION" envDefault:"24h"`
	CookieSecure   bool          `env:"AUTH_COOKIE_SECURE" envDefault:"true"`

	Language         string `env:"AUTH_LANGUAGE" envDefault:"english"`
	DeterministicIDs bool   `env:"AUTH_DETERMINISTIC_IDS" envDefault:"false"`

	BrandName string `env:"AUTH_BRAND_NAME" envDefault:"Session Auth"`
	BaseURL   string `env:"AUTH_BASE_URL" envDefault:"http://localhost:8572"`

	SMTPAddr     string `env:"AUTH_SMTP_ADDR"`
	SMTPUsername string `env:"AUTH_SMTP_USERNAME"`
	SMTPPassword string `env:"AUTH_SMTP_PASSWORD"`
	MailFrom     string `env:"AUTH_MAIL_FROM" envDefault:"no-reply@localhost"`
}

// LoadEnvConfig parses the environment
func LoadEnvConfig() (EnvConfig, error) {
	var cfg EnvConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, goerrors.Wrap(err, goerrors.CategoryValidation, "failed to parse environment")
	}
	return cfg, nil
}

// AuthConfig maps the environment onto auth.Config
func (e EnvConfig) AuthConfig() auth.Config {
	cfg := auth.DefaultConfig()
	cfg.SigningKey = e.SigningKey
	cfg.SigningKeyID = e.SigningKeyID
	cfg.RetiredKeys = e.RetiredKeys
	cfg.Issuer = e.Issuer
	cfg.Audience = e.Audience
	cfg.TokenTTL = e.TokenTTL
	cfg.StatefulTokenTTL = e.StatefulTokenTTL
	cfg.IdleTimeout = e.IdleTimeout
	cfg.Mode = auth.GuardMode(strings.ToLower(e.Mode))
	cfg.LockoutThreshold = e.LockoutThreshold
	cfg.LockoutWindow = e.LockoutWindow
	cfg.StoreTimeout = e.StoreTimeout
	cfg.BcryptCost = e.BcryptCost
	cfg.Transport = auth.TokenTransport(strings.ToLower(e.Transport))
	cfg.CookieName = e.CookieName
	cfg.CookieDuration = e.CookieDuration
	cfg.CookieSecure = e.CookieSecure
	cfg.Language = e.Language
	cfg.DeterministicIDs = e.DeterministicIDs
	cfg.BrandName = e.BrandName
	cfg.BaseURL = e.BaseURL
	cfg.MailFrom = e.MailFrom
	return cfg
}

func (e EnvConfig) isPostgres() bool {
	return strings.HasPrefix(e.DSN, "postgres://") || strings.HasPrefix(e.DSN, "postgresql://")
}
