package auth

import (
	"context"
)

type contextKey string

var sessionCtxKey contextKey = "session"

// NewContext attaches the request's session.
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey, s)
}

// FromContext returns the request's session, if any.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionCtxKey).(*Session)
	return s, ok
}
