package domain

import "context"

// Role names recognised by the access rules.
const (
	RoleAdmin     = "admin"
	RoleAnonymous = "anonymous"
)

// Principal identifies the caller on whose behalf a store operation runs.
type Principal struct {
	Subject string `json:"sub"`
	Role    string `json:"role"`
}

// IsAdmin reports whether the principal may write content.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

type principalKey struct{}

// WithPrincipal attaches a principal to ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the attached principal or an anonymous one.
func PrincipalFromContext(ctx context.Context) Principal {
	if ctx != nil {
		if p, ok := ctx.Value(principalKey{}).(Principal); ok {
			return p
		}
	}
	return Principal{Role: RoleAnonymous}
}

// SystemPrincipal is used by maintenance code paths such as the CLI.
func SystemPrincipal() Principal {
	return Principal{Subject: "system", Role: RoleAdmin}
}
