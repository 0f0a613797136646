package carddav

import "context"

type contextKey string

var backendCtxKey contextKey = "carddav-backend"

// NewContext attaches the request's address book adapter.
func NewContext(ctx context.Context, b *Backend) context.Context {
	return context.WithValue(ctx, backendCtxKey, b)
}

// FromContext returns the request's address book adapter, if any.
func FromContext(ctx context.Context) (*Backend, bool) {
	b, ok := ctx.Value(backendCtxKey).(*Backend)
	return b, ok
}
