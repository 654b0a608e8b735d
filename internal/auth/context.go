package auth

import "context"

type sessionContextKey struct{}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// SessionIDFromContext returns the ID of a session that completed login, or
// an empty string.
func SessionIDFromContext(ctx context.Context) string {
	sess := SessionFromContext(ctx)
	if !sess.Authenticated() {
		return ""
	}
	return sess.ID
}
