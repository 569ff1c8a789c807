package auth

import "context"

type principalContextKey struct{}

// WithPrincipal returns ctx carrying p. Callers that must not replace an
// existing authentication check PrincipalFromContext first.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p.clone())
}

// PrincipalFromContext retrieves the authenticated principal from the context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	if !ok {
		return Principal{}, false
	}
	return p.clone(), true
}
