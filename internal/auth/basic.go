package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/averich/dav-bridge/pkg/logger"
)

// SessionFactory builds a fresh anonymous Session for one request.
type SessionFactory func() *Session

// Attach lets the wiring layer hang request-scoped adapters off the context
// once the session is authenticated.
type Attach func(ctx context.Context, s *Session) context.Context

// Abstracts the authentication backend for the server.
type AuthProvider interface {
	// Returns HTTP middleware for performing authentication.
	Middleware() func(http.Handler) http.Handler
}

// BasicAuth authenticates every request with HTTP Basic against the REST
// backend and installs the session into the request context.
type BasicAuth struct {
	realm      func() string
	newSession SessionFactory
	attach     Attach
	logger     *logger.Logger
}

// NewBasicAuth -.
func NewBasicAuth(realm string, newSession SessionFactory, attach Attach, l *logger.Logger) (AuthProvider, error) {
	if realm == "" {
		return nil, fmt.Errorf("missing realm")
	}
	if newSession == nil {
		return nil, fmt.Errorf("missing session factory")
	}
	if attach == nil {
		attach = func(ctx context.Context, _ *Session) context.Context { return ctx }
	}
	return &BasicAuth{
		realm:      func() string { return realm },
		newSession: newSession,
		attach:     attach,
		logger:     l,
	}, nil
}

// Middleware -.
func (b *BasicAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			b.basicAuth(next, w, r)
		})
	}
}

func (b *BasicAuth) basicAuth(next http.Handler, w http.ResponseWriter, r *http.Request) {
	session := b.newSession()

	username, password, ok := r.BasicAuth()
	if !ok || !session.Authenticate(r.Context(), username, password) {
		Challenge(w, b.realm())
		return
	}

	ctx := NewContext(r.Context(), session)
	ctx = b.attach(ctx, session)
	next.ServeHTTP(w, r.WithContext(ctx))
}

// Challenge writes the 401 response demanding Basic credentials. Shared
// with the principal path, which must emit the exact same challenge when
// engine code asks for principal info before authentication.
func Challenge(w http.ResponseWriter, realm string) {
	w.Header().Add("WWW-Authenticate", fmt.Sprintf(`Basic realm=%q, charset="UTF-8"`, realm))
	http.Error(w, "HTTP Basic auth is required", http.StatusUnauthorized)
}
