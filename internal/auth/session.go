package auth

import (
	"context"

	"github.com/averich/dav-bridge/internal/rest"
	"github.com/averich/dav-bridge/pkg/logger"
)

// AnonymousUser is the sentinel returned by Session.User before the first
// successful Authenticate.
const AnonymousUser = ""

// Hosts are the three backend service endpoints.
type Hosts struct {
	DAV     string
	CalDAV  string
	CardDAV string
}

// Session is the single source of truth for who is calling the backend
// during one request. It is created anonymous, transitions to authenticated
// at most once, and is read-only afterwards. Never shared across requests.
type Session struct {
	hosts      Hosts
	userAgent  string
	principals *rest.PrincipalsAPI
	logger     *logger.Logger

	user     string
	password string
	info     *rest.PrincipalInfo
}

// NewSession -.
func NewSession(hosts Hosts, userAgent string, principals *rest.PrincipalsAPI, l *logger.Logger) *Session {
	return &Session{
		hosts:      hosts,
		userAgent:  userAgent,
		principals: principals,
		logger:     l,
	}
}

// Authenticate validates the credentials by looking the principal up with
// those same credentials as the REST auth material. On failure nothing is
// stored and the session stays anonymous.
func (s *Session) Authenticate(ctx context.Context, username, password string) bool {
	s.logger.Debug("session.Authenticate", "username", username)

	cfg := s.config(s.hosts.DAV, username, password)
	info, err := s.principals.GetPrincipalInfo(ctx, cfg, username)
	if err != nil {
		s.logger.Error("session.Authenticate", logger.Err(err))
		return false
	}

	s.user = username
	s.password = password
	s.info = info
	return true
}

// Authenticated -.
func (s *Session) Authenticated() bool { return s.user != AnonymousUser }

// User returns the authenticated username, or AnonymousUser.
func (s *Session) User() string { return s.user }

// PrincipalInfo returns the backend principal metadata, nil before
// authentication.
func (s *Session) PrincipalInfo() *rest.PrincipalInfo { return s.info }

// DAVConfig builds the per-call REST configuration for the principals
// service using the session's credentials.
func (s *Session) DAVConfig() rest.Config {
	return s.config(s.hosts.DAV, s.user, s.password)
}

// CalDAVConfig -.
func (s *Session) CalDAVConfig() rest.Config {
	return s.config(s.hosts.CalDAV, s.user, s.password)
}

// CardDAVConfig -.
func (s *Session) CardDAVConfig() rest.Config {
	return s.config(s.hosts.CardDAV, s.user, s.password)
}

func (s *Session) config(host, username, password string) rest.Config {
	return rest.Config{
		Host:      host,
		Username:  username,
		Password:  password,
		UserAgent: s.userAgent,
	}
}
