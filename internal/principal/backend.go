// Package principal exposes exactly one principal to the protocol engine:
// the authenticated user of the current request.
package principal

import (
	"context"
	"fmt"
	"path"

	"github.com/averich/dav-bridge/internal/auth"
	"github.com/averich/dav-bridge/internal/dav"
	"github.com/averich/dav-bridge/internal/rest"
	"github.com/averich/dav-bridge/pkg/logger"
)

// Backend implements dav.PrincipalBackend for a single-principal world.
// One instance serves one request.
type Backend struct {
	prefix  string
	session *auth.Session
	logger  *logger.Logger
}

var _ dav.PrincipalBackend = (*Backend)(nil)

// New -.
func New(prefix string, session *auth.Session, l *logger.Logger) *Backend {
	return &Backend{
		prefix:  prefix,
		session: session,
		logger:  l,
	}
}

// PrincipalsByPrefix returns the current user's record when the prefix
// matches, an empty list otherwise. Unauthenticated requests get the empty
// list too; the engine is expected to have rejected them already, and this
// path must not fail.
func (b *Backend) PrincipalsByPrefix(ctx context.Context, prefix string) ([]dav.Principal, error) {
	b.logger.Debug("principal.PrincipalsByPrefix", "prefix", prefix)

	if prefix != b.prefix || !b.session.Authenticated() {
		return nil, nil
	}
	return []dav.Principal{b.toPrincipal(b.session.PrincipalInfo())}, nil
}

// PrincipalByPath resolves one principal by URI. Some engine code paths ask
// for principal info before the auth layer has rejected the request, so the
// unauthenticated case fails with the explicit not-authenticated condition
// that maps to a 401 Basic challenge.
func (b *Backend) PrincipalByPath(ctx context.Context, p string) (*dav.Principal, error) {
	b.logger.Debug("principal.PrincipalByPath", "path", p)

	if !b.session.Authenticated() {
		return nil, dav.ErrNotAuthenticated
	}

	principals, err := b.PrincipalsByPrefix(ctx, path.Dir(p))
	if err != nil {
		return nil, err
	}
	for i := range principals {
		if principals[i].URI == p {
			return &principals[i], nil
		}
	}
	return nil, dav.ErrNotFound
}

// UpdatePrincipal handles no properties: the engine reports every requested
// mutation as failed.
func (b *Backend) UpdatePrincipal(ctx context.Context, path string, patch *dav.PropPatch) error {
	b.logger.Debug("principal.UpdatePrincipal", "path", path)
	return nil
}

// SearchPrincipals is unsupported and reports zero matches.
func (b *Backend) SearchPrincipals(ctx context.Context, prefix string, query map[string]string) ([]string, error) {
	b.logger.Debug("principal.SearchPrincipals", "prefix", prefix)
	return nil, nil
}

// GroupMemberSet returns the principal as its own sole member: the backend
// has no group concept.
func (b *Backend) GroupMemberSet(ctx context.Context, path string) ([]string, error) {
	b.logger.Debug("principal.GroupMemberSet", "path", path)

	p, err := b.PrincipalByPath(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("principal not found: %w", err)
	}
	return []string{p.URI}, nil
}

// GroupMembership -.
func (b *Backend) GroupMembership(ctx context.Context, path string) ([]string, error) {
	b.logger.Debug("principal.GroupMembership", "path", path)
	return nil, nil
}

// SetGroupMemberSet always fails: group membership is immutable.
func (b *Backend) SetGroupMemberSet(ctx context.Context, path string, members []string) error {
	b.logger.Debug("principal.SetGroupMemberSet", "path", path)
	return fmt.Errorf("setting members of the group: %w", dav.ErrReadOnly)
}

func (b *Backend) toPrincipal(info *rest.PrincipalInfo) dav.Principal {
	displayName := info.DisplayName
	if displayName == "" {
		displayName = info.ProfileUsername
	}
	return dav.Principal{
		URI:         b.prefix + "/" + info.ProfileUsername,
		DisplayName: displayName,
		Email:       info.EmailAddress,
	}
}
