package auth

import (
	"context"
	"slices"
)

// AuthenticatedContext is the request-scoped identity established by the Gate.
// It is built once per request and never shared across requests.
type AuthenticatedContext struct {
	Principal   *Principal
	Authorities []Role
	EmployeeID  *int64
}

func newAuthenticatedContext(p *Principal) *AuthenticatedContext {
	ac := &AuthenticatedContext{
		Principal:   p,
		Authorities: slices.Clone(p.Roles),
	}
	if p.EmployeeID != nil {
		id := *p.EmployeeID
		ac.EmployeeID = &id
	}
	return ac
}

// Username returns the identity of the caller.
func (ac *AuthenticatedContext) Username() string {
	if ac == nil || ac.Principal == nil {
		return ""
	}
	return ac.Principal.Username
}

// HasAnyRole reports whether the caller holds at least one of roles.
func (ac *AuthenticatedContext) HasAnyRole(roles ...Role) bool {
	if ac == nil {
		return false
	}
	for _, r := range roles {
		if slices.Contains(ac.Authorities, r) {
			return true
		}
	}
	return false
}

type authContextKey struct{}

type gateContextKey struct{}

// WithAuthenticated stores the authenticated context in ctx.
func WithAuthenticated(ctx context.Context, ac *AuthenticatedContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, ac)
}

// AuthenticatedFrom extracts the authenticated context, if the Gate established one.
func AuthenticatedFrom(ctx context.Context) (*AuthenticatedContext, bool) {
	ac, ok := ctx.Value(authContextKey{}).(*AuthenticatedContext)
	return ac, ok && ac != nil
}

func markGated(ctx context.Context) context.Context {
	return context.WithValue(ctx, gateContextKey{}, true)
}

func gated(ctx context.Context) bool {
	v, _ := ctx.Value(gateContextKey{}).(bool)
	return v
}
