package app

import (
	"context"
	"errors"
	"net/http"
	"path"

	"github.com/ceres919/go-webdav"
	"github.com/ceres919/go-webdav/caldav"
	"github.com/ceres919/go-webdav/carddav"

	"github.com/averich/dav-bridge/internal/auth"
	"github.com/averich/dav-bridge/internal/dav"
	"github.com/averich/dav-bridge/internal/principal"
)

// userPrincipalBackend maps the authenticated session onto the URL space:
// every user lives under /<username>/.
type userPrincipalBackend struct{}

func (u *userPrincipalBackend) CurrentUserPrincipal(ctx context.Context) (string, error) {
	session, ok := auth.FromContext(ctx)
	if !ok || !session.Authenticated() {
		return "", dav.ErrNotAuthenticated
	}
	return "/" + session.User() + "/", nil
}

// davHandler answers principal-level requests: current-user-principal
// discovery and the home set pointers for both services.
type davHandler struct {
	realm           string
	principalPrefix string
	upBackend       webdav.UserPrincipalBackend
	caldavBackend   caldav.Backend
	carddavBackend  carddav.Backend
}

func (d *davHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userPrincipalPath, err := d.upBackend.CurrentUserPrincipal(r.Context())
	if err != nil {
		if errors.Is(err, dav.ErrNotAuthenticated) {
			auth.Challenge(w, d.realm)
			return
		}
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	// The principal record must resolve; a session whose user the backend
	// no longer knows gets no principal document.
	if pb, ok := principal.FromContext(r.Context()); ok {
		uri := path.Join(d.principalPrefix, path.Base(path.Clean(userPrincipalPath)))
		if _, err := pb.PrincipalByPath(r.Context(), uri); err != nil {
			if errors.Is(err, dav.ErrNotAuthenticated) {
				auth.Challenge(w, d.realm)
				return
			}
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
	}

	var homeSets []webdav.BackendSuppliedHomeSet
	if d.caldavBackend != nil {
		path, err := d.caldavBackend.CalendarHomeSetPath(r.Context())
		if err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		} else {
			homeSets = append(homeSets, caldav.NewCalendarHomeSet(path))
		}
	}
	if d.carddavBackend != nil {
		path, err := d.carddavBackend.AddressBookHomeSetPath(r.Context())
		if err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		} else {
			homeSets = append(homeSets, carddav.NewAddressBookHomeSet(path))
		}
	}

	if userPrincipalPath != "" {
		opts := webdav.ServePrincipalOptions{
			CurrentUserPrincipalPath: userPrincipalPath,
			HomeSets:                 homeSets,
			Capabilities: []webdav.Capability{
				carddav.CapabilityAddressBook,
				caldav.CapabilityCalendar,
			},
		}

		webdav.ServePrincipal(w, r, &opts)
		return
	}

	http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
}
