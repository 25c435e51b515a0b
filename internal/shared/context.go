package shared

import (
	"context"

	"github.com/worksla/worksla-web/internal/apiclient"
)

type sessionContextKey struct{}

type credentialsContextKey struct{}

type principalContextKey struct{}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// ContextWithCredentials stores the backend credentials for the request.
func ContextWithCredentials(ctx context.Context, creds *apiclient.Credentials) context.Context {
	return context.WithValue(ctx, credentialsContextKey{}, creds)
}

// CredentialsFromContext returns the backend credentials, or nil.
func CredentialsFromContext(ctx context.Context) *apiclient.Credentials {
	creds, _ := ctx.Value(credentialsContextKey{}).(*apiclient.Credentials)
	return creds
}

// Principal describes the signed-in dashboard user.
type Principal struct {
	ID       int64
	Username string
	Role     string
}

// HasRole reports whether the principal holds any of roles.
func (p Principal) HasRole(roles ...string) bool {
	for _, role := range roles {
		if p.Role == role {
			return true
		}
	}
	return false
}

// ContextWithPrincipal stores the signed-in user.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext returns the signed-in user, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}
