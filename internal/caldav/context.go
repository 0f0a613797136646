package caldav

import "context"

type contextKey string

var backendCtxKey contextKey = "caldav-backend"

// NewContext attaches the request's calendar adapter.
func NewContext(ctx context.Context, b *Backend) context.Context {
	return context.WithValue(ctx, backendCtxKey, b)
}

// FromContext returns the request's calendar adapter, if any.
func FromContext(ctx context.Context) (*Backend, bool) {
	b, ok := ctx.Value(backendCtxKey).(*Backend)
	return b, ok
}
