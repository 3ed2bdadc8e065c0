package shared

import "context"

type sessionContextKey struct{}

type identityContextKey struct{}

// Guard names the authentication context a request arrived through.
type Guard string

const (
	// GuardWeb is the cookie session guard.
	GuardWeb Guard = "web"
	// GuardAPI is the bearer token guard.
	GuardAPI Guard = "api"
)

// Valid reports whether g is a known guard.
func (g Guard) Valid() bool {
	return g == GuardWeb || g == GuardAPI
}

// Identity is the authenticated user behind a request.
type Identity struct {
	UserID int64
	Guard  Guard
}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// ContextWithIdentity stores the authenticated identity in context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext returns the identity placed by the authentication middleware.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	if !ok || id.UserID <= 0 {
		return Identity{}, false
	}
	return id, true
}
