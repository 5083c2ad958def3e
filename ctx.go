package auth

import (
	"context"

	"github.com/goliatone/go-router"
)

var principalCtxKey = &contextKey{"principal"}

// DefaultContextKey is the router locals key holding the Principal
const DefaultContextKey = "principal"

type contextKey struct {
	name string
}

// WithPrincipal sets the Principal in the given context
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey, p)
}

// PrincipalFromContext finds the Principal in the context.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	raw, ok := ctx.Value(principalCtxKey).(*Principal)
	return raw, ok && raw != nil
}

// GetRouterPrincipal extracts the Principal from the router context
func GetRouterPrincipal(ctx router.Context, key string) (*Principal, bool) {
	if key == "" {
		key = DefaultContextKey
	}
	if raw, ok := ctx.Locals(key).(*Principal); ok && raw != nil {
		return raw, true
	}
	return PrincipalFromContext(ctx.Context())
}
