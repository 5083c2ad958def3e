package auth

import (
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

const signingAlgorithm = "HS256"

// TokenService signs and verifies session tokens. Tokens carry the kid of
// the key that signed them, retired keys keep verifying until removed from
// the configuration.
type TokenService struct {
	keyID      string
	signingKey []byte
	keyfunc    jwt.Keyfunc
	issuer     string
	audience   jwt.ClaimStrings
	defaultTTL time.Duration
	clock      Clock
	logger     Logger
}

var _ TokenCodec = (*TokenService)(nil)

// TokenServiceOption configures a TokenService
type TokenServiceOption func(*TokenService)

// WithTokenClock sets the clock used for iat, exp and verification
func WithTokenClock(clock Clock) TokenServiceOption {
	return func(ts *TokenService) {
		if clock != nil {
			ts.clock = clock
		}
	}
}

// WithTokenLogger sets the logger
func WithTokenLogger(logger Logger) TokenServiceOption {
	return func(ts *TokenService) {
		ts.logger = normalizeLogger(logger)
	}
}

// NewTokenService creates a new TokenService from the signing settings in cfg
func NewTokenService(cfg Config, opts ...TokenServiceOption) *TokenService {
	keyID := cfg.SigningKeyID
	if keyID == "" {
		keyID = DefaultConfig().SigningKeyID
	}

	givenKeys := make(map[string]keyfunc.GivenKey, len(cfg.RetiredKeys)+1)
	for kid, key := range cfg.RetiredKeys {
		givenKeys[kid] = keyfunc.NewGivenCustom([]byte(key), keyfunc.GivenKeyOptions{
			Algorithm: signingAlgorithm,
		})
	}
	givenKeys[keyID] = keyfunc.NewGivenCustom([]byte(cfg.SigningKey), keyfunc.GivenKeyOptions{
		Algorithm: signingAlgorithm,
	})

	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = DefaultConfig().TokenTTL
	}

	ts := &TokenService{
		keyID:      keyID,
		signingKey: []byte(cfg.SigningKey),
		keyfunc:    keyfunc.NewGiven(givenKeys).Keyfunc,
		issuer:     cfg.Issuer,
		audience:   jwt.ClaimStrings(cfg.Audience),
		defaultTTL: ttl,
		clock:      systemClock,
		logger:     defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}

	return ts
}

// Issue signs claims for ttl, a zero ttl uses the configured TTL. Every
// token gets a fresh jti so two tokens issued in the same second differ.
func (ts *TokenService) Issue(claims SessionClaims, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		ttl = ts.defaultTTL
	}

	now := ts.clock()
	expiresAt := now.Add(ttl)

	claims.Issuer = ts.issuer
	claims.Audience = ts.audience
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(expiresAt)
	claims.ID = uuid.NewString()
	if claims.Subject == "" {
		claims.Subject = claims.UID
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims)
	token.Header["kid"] = ts.keyID

	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", time.Time{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT")
	}

	return signed, claims.ExpiresAt.Time, nil
}

// Verify parses and validates a token string, returning its claims
func (ts *TokenService) Verify(tokenString string) (*SessionClaims, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{signingAlgorithm}),
		jwt.WithTimeFunc(ts.clock),
		jwt.WithExpirationRequired(),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, ts.keyfunc, parserOptions...)
	if err != nil {
		switch {
		case goerrors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case goerrors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrTokenBadSignature
		default:
			ts.logger.Debug("token verification failed", "error", err)
			return nil, ErrTokenMalformed
		}
	}

	if !token.Valid || claims.UserID() == "" {
		return nil, ErrTokenMalformed
	}

	return claims, nil
}
