package principal

import "context"

type contextKey string

var backendCtxKey contextKey = "principal-backend"

// NewContext attaches the request's principal adapter.
func NewContext(ctx context.Context, b *Backend) context.Context {
	return context.WithValue(ctx, backendCtxKey, b)
}

// FromContext returns the request's principal adapter, if any.
func FromContext(ctx context.Context) (*Backend, bool) {
	b, ok := ctx.Value(backendCtxKey).(*Backend)
	return b, ok
}
