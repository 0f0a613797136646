package dav

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is a clean negative lookup result, not a backend failure.
	ErrNotFound = errors.New("dav: not found")

	// ErrNotAuthenticated signals that no principal is established for the
	// request. It must surface as 401 with a "WWW-Authenticate: Basic"
	// challenge, never as a generic failure.
	ErrNotAuthenticated = errors.New("dav: not authenticated")

	// ErrNotImplemented marks operations the bridge deliberately does not
	// support. Callers must not swallow it into an empty result.
	ErrNotImplemented = errors.New("dav: not implemented")

	// ErrReadOnly rejects mutations of derived state (ACLs, group members).
	ErrReadOnly = errors.New("dav: read-only")
)

// UnsupportedPropertyError fails a create/update for one property outside
// the supported whitelist; the engine reports it per-property.
type UnsupportedPropertyError struct {
	Name string
}

func (e *UnsupportedPropertyError) Error() string {
	return fmt.Sprintf("dav: unsupported property %s", e.Name)
}
