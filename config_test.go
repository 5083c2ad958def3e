package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 15*time.Minute, cfg.TokenTTL)
	assert.Equal(t, 12*time.Hour, cfg.StatefulTokenTTL)
	assert.Equal(t, 30*time.Minute, cfg.IdleTimeout)
	assert.Equal(t, 5, cfg.LockoutThreshold)
	assert.Equal(t, 15*time.Minute, cfg.LockoutWindow)
	assert.Equal(t, 10*time.Second, cfg.StoreTimeout)
	assert.Equal(t, 12, cfg.BcryptCost)
	assert.Equal(t, ModeStateful, cfg.Mode)
	assert.Equal(t, TransportBearer, cfg.Transport)
	assert.Equal(t, "session", cfg.CookieName)
	assert.Equal(t, 24*time.Hour, cfg.CookieDuration)
	assert.Equal(t, DefaultLanguage, cfg.Language)

	// no signing key ships by default
	assert.Error(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "short signing key", mutate: func(c *Config) { c.SigningKey = "short" }, wantErr: true},
		{name: "unknown mode", mutate: func(c *Config) { c.Mode = "sometimes" }, wantErr: true},
		{name: "unknown transport", mutate: func(c *Config) { c.Transport = "carrier-pigeon" }, wantErr: true},
		{name: "cookie shorter than ttl", mutate: func(c *Config) { c.CookieDuration = time.Minute }, wantErr: true},
		{name: "stateful token outlived by idle timeout", mutate: func(c *Config) {
			c.StatefulTokenTTL = c.IdleTimeout
		}, wantErr: true},
		{name: "stateless ignores stateful ttl", mutate: func(c *Config) {
			c.Mode = ModeStateless
			c.StatefulTokenTTL = 0
		}},
		{name: "zero lockout threshold", mutate: func(c *Config) { c.LockoutThreshold = 0 }, wantErr: true},
		{name: "retired key reuses kid", mutate: func(c *Config) {
			c.RetiredKeys = map[string]string{c.SigningKeyID: "old-key-old-key-old"}
		}, wantErr: true},
		{name: "retired key", mutate: func(c *Config) {
			c.RetiredKeys = map[string]string{"2023": "old-key-old-key-old"}
		}},
		{name: "stateless cookie", mutate: func(c *Config) {
			c.Mode = ModeStateless
			c.Transport = TransportCookie
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if !tc.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, IsValidationError(err))
		})
	}
}

func TestConfig_SessionTTL(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, cfg.StatefulTokenTTL, cfg.SessionTTL())
	// the idle ceiling is reachable before the token expires
	assert.Greater(t, cfg.SessionTTL(), cfg.IdleTimeout)

	cfg.Mode = ModeStateless
	assert.Equal(t, cfg.TokenTTL, cfg.SessionTTL())

	cfg.Mode = ModeStateful
	cfg.StatefulTokenTTL = 0
	assert.Equal(t, cfg.TokenTTL, cfg.SessionTTL())
}
