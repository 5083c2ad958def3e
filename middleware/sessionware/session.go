package sessionware

import (
	"context"
	"errors"
	"strings"

	"github.com/goliatone/go-router"
)

var (
	defaultTokenLookup = "header:" + router.HeaderAuthorization
	// ErrTokenMissing no extractor produced a token
	ErrTokenMissing = errors.New("missing or malformed session token")
)

// Config drives the middleware. P is the principal type produced by
// Authenticate, the middleware never inspects it.
type Config[P any] struct {
	Filter         func(router.Context) bool
	SuccessHandler router.HandlerFunc
	ErrorHandler   router.ErrorHandler

	// Authenticate resolves a raw token into a principal. Required.
	Authenticate func(ctx context.Context, token string) (P, error)

	// ContextKey is the locals key the principal is stored under
	ContextKey string
	// TokenLookup is a comma separated list of source:name pairs, e.g.
	// header:Authorization,cookie:session,query:token,param:token
	TokenLookup string
	AuthScheme  string

	// ContextEnricher propagates the principal to the standard context
	ContextEnricher func(c context.Context, principal P) context.Context
}

// New returns a middleware that authenticates every request
func New[P any](config Config[P]) router.MiddlewareFunc {
	cfg := GetDefaultConfig(config)
	extractors := GetExtractors(cfg.TokenLookup, cfg.AuthScheme)

	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if cfg.Filter != nil && cfg.Filter(ctx) {
				return ctx.Next()
			}

			raw, err := ExtractRawTokenFromContext(ctx, extractors)
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			principal, err := cfg.Authenticate(ctx.Context(), raw)
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			ctx.Locals(cfg.ContextKey, principal)

			if cfg.ContextEnricher != nil {
				ctx.SetContext(cfg.ContextEnricher(ctx.Context(), principal))
			}

			return cfg.SuccessHandler(ctx)
		}
	}
}

// GetDefaultConfig fills in the defaults, it panics without Authenticate
func GetDefaultConfig[P any](cfg Config[P]) Config[P] {
	if cfg.Authenticate == nil {
		panic("AUTH: session middleware configuration: Authenticate is required.")
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(ctx router.Context) error {
			return ctx.Next()
		}
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(c router.Context, err error) error {
			return c.Status(router.StatusUnauthorized).SendString("Invalid or expired session")
		}
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = "principal"
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = defaultTokenLookup
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}

	return cfg
}

// ExtractRawTokenFromContext runs the extractors in order and returns the
// first token found.
func ExtractRawTokenFromContext(ctx router.Context, extractors []Extractor) (string, error) {
	for _, extractor := range extractors {
		raw, err := extractor(ctx)
		if raw != "" && err == nil {
			return raw, nil
		}
	}
	return "", ErrTokenMissing
}

// Extractor pulls a raw token out of a request
type Extractor func(c router.Context) (string, error)

// GetExtractors parses a token lookup definition
func GetExtractors(tokenLookup string, authSchemes ...string) []Extractor {
	extractors := make([]Extractor, 0)

	authScheme := "Bearer"
	if len(authSchemes) > 0 && strings.TrimSpace(authSchemes[0]) != "" {
		authScheme = strings.TrimSpace(authSchemes[0])
	}

	for _, rootPart := range strings.Split(tokenLookup, ",") {
		parts := strings.SplitN(strings.TrimSpace(rootPart), ":", 2)
		if len(parts) != 2 {
			continue
		}

		source, name := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		switch source {
		case "header":
			extractors = append(extractors, fromHeader(name, authScheme))
		case "query":
			extractors = append(extractors, fromQuery(name))
		case "param":
			extractors = append(extractors, fromParam(name))
		case "cookie":
			extractors = append(extractors, fromCookie(name))
		}
	}

	return extractors
}

func fromHeader(header, authScheme string) Extractor {
	return func(c router.Context) (string, error) {
		a := c.Header(header)
		l := len(authScheme)
		if len(a) > l+1 && strings.EqualFold(a[:l], authScheme) && a[l] == ' ' {
			return strings.TrimSpace(a[l:]), nil
		}
		return "", ErrTokenMissing
	}
}

func fromQuery(param string) Extractor {
	return func(c router.Context) (string, error) {
		token := c.Query(param, "")
		if token == "" {
			return "", ErrTokenMissing
		}
		return token, nil
	}
}

func fromParam(param string) Extractor {
	return func(c router.Context) (string, error) {
		token := c.Param(param)
		if token == "" {
			return "", ErrTokenMissing
		}
		return token, nil
	}
}

func fromCookie(name string) Extractor {
	return func(c router.Context) (string, error) {
		token := c.Cookies(name)
		if token == "" {
			return "", ErrTokenMissing
		}
		return token, nil
	}
}
