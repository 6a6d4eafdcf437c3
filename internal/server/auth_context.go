package server

import "context"

type authContextKey struct{}

type authPrincipal struct {
	UserID string
	Tier   string
}

func contextWithAuthPrincipal(ctx context.Context, principal authPrincipal) context.Context {
	return context.WithValue(ctx, authContextKey{}, principal)
}

func authPrincipalFromContext(ctx context.Context) (authPrincipal, bool) {
	if ctx == nil {
		return authPrincipal{}, false
	}
	principal, ok := ctx.Value(authContextKey{}).(authPrincipal)
	return principal, ok
}

// Identity exposes the request's authenticated worker to the signing
// workflow without the workflow importing any HTTP machinery.
type Identity struct{}

func (Identity) UserID(ctx context.Context) (string, bool) {
	principal, ok := authPrincipalFromContext(ctx)
	if !ok || principal.UserID == "" {
		return "", false
	}
	return principal.UserID, true
}
