package auth

import (
	"context"

	"github.com/averich/dav-bridge/internal/dav"
	"github.com/averich/dav-bridge/pkg/logger"
)

// Backend bridges the protocol engine's credential hook to the Session.
// Idempotent: repeated calls with the same credentials yield the same
// result and leave the session state unchanged after the first success.
type Backend struct {
	session *Session
	logger  *logger.Logger
}

var _ dav.AuthBackend = (*Backend)(nil)

// NewBackend -.
func NewBackend(session *Session, l *logger.Logger) *Backend {
	return &Backend{session: session, logger: l}
}

// ValidateUserPass reports whether the credentials are valid. A negative
// result is normal control flow feeding the 401 challenge upstream, never
// an error.
func (b *Backend) ValidateUserPass(ctx context.Context, username, password string) bool {
	b.logger.Debug("auth.ValidateUserPass", "username", username)

	if b.session.Authenticated() {
		return b.session.User() == username
	}
	return b.session.Authenticate(ctx, username, password)
}
