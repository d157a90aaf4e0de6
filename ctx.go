package identity

import (
	"context"

	"github.com/goliatone/go-router"
)

var principalCtxKey = &contextKey{"principal"}

type contextKey struct {
	name string
}

// WithPrincipalContext sets the Principal in the given context
func WithPrincipalContext(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey, principal)
}

// PrincipalFromContext finds the Principal from the context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	raw, ok := ctx.Value(principalCtxKey).(Principal)
	return raw, ok
}

// GetRouterPrincipal extracts and normalizes the authenticated identity the
// middleware stored in the router context.
func GetRouterPrincipal(ctx router.Context, key string) (Principal, error) {
	if key == "" {
		key = "user"
	}

	raw := ctx.Locals(key)
	if raw == nil {
		return Principal{}, ErrUnableToFindSession
	}

	principal, ok := NormalizePrincipal(raw)
	if !ok {
		return Principal{}, ErrUnableToDecodeSession
	}

	return principal, nil
}
