package caldav

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/ceres919/go-webdav"
	"github.com/ceres919/go-webdav/caldav"
	"github.com/emersion/go-ical"

	"github.com/averich/dav-bridge/internal/acl"
	"github.com/averich/dav-bridge/internal/dav"
	"github.com/averich/dav-bridge/pkg/logger"
)

// Engine adapts the per-request Backend to the protocol engine's calendar
// interface. One Engine serves the whole process; all request state (the
// session and the storage adapter) travels in the context, installed there
// by the auth middleware.
type Engine struct {
	webdav.UserPrincipalBackend
	prefix string
	logger *logger.Logger
}

// NewEngine -.
func NewEngine(upBackend webdav.UserPrincipalBackend, prefix string, l *logger.Logger) (caldav.Backend, error) {
	return &Engine{
		UserPrincipalBackend: upBackend,
		prefix:               prefix,
		logger:               l,
	}, nil
}

func (e *Engine) CalendarHomeSetPath(ctx context.Context) (string, error) {
	upPath, err := e.CurrentUserPrincipal(ctx)
	if err != nil {
		return "", err
	}
	return path.Join(upPath, e.prefix) + "/", nil
}

func (e *Engine) ListCalendars(ctx context.Context) ([]caldav.Calendar, error) {
	b, err := backendFromContext(ctx)
	if err != nil {
		return nil, err
	}
	homeSetPath, err := e.CalendarHomeSetPath(ctx)
	if err != nil {
		return nil, err
	}
	upPath, err := e.CurrentUserPrincipal(ctx)
	if err != nil {
		return nil, err
	}

	cals, err := b.CalendarsForUser(ctx, upPath)
	if err != nil {
		return nil, err
	}

	out := make([]caldav.Calendar, 0, len(cals))
	for _, cal := range cals {
		out = append(out, toEngineCalendar(homeSetPath, &cal))
	}
	return out, nil
}

func (e *Engine) GetCalendar(ctx context.Context, urlPath string) (*caldav.Calendar, error) {
	cal, homeSetPath, err := e.resolveCalendar(ctx, path.Base(path.Clean(urlPath)))
	if err != nil {
		return nil, err
	}
	out := toEngineCalendar(homeSetPath, cal)
	return &out, nil
}

func (e *Engine) CreateCalendar(ctx context.Context, calendar *caldav.Calendar) error {
	b, err := backendFromContext(ctx)
	if err != nil {
		return err
	}
	upPath, err := e.CurrentUserPrincipal(ctx)
	if err != nil {
		return err
	}

	props := map[string]string{
		dav.PropDisplayName: calendar.Name,
	}
	if calendar.Description != "" {
		props[dav.PropCalendarDescription] = calendar.Description
	}

	uid, err := b.CreateCalendar(ctx, upPath, path.Base(path.Clean(calendar.Path)), props)
	if err != nil {
		return err
	}

	homeSetPath, err := e.CalendarHomeSetPath(ctx)
	if err != nil {
		return err
	}
	calendar.Path = path.Join(homeSetPath, uid) + "/"
	return nil
}

func (e *Engine) GetCalendarObject(
	ctx context.Context,
	objPath string,
	req *caldav.CalendarCompRequest,
) (*caldav.CalendarObject, error) {
	b, err := backendFromContext(ctx)
	if err != nil {
		return nil, err
	}

	calendarID, href := splitObjectPath(objPath)
	obj, err := b.CalendarObject(ctx, calendarID, href)
	if err != nil {
		if errors.Is(err, dav.ErrNotFound) {
			return nil, webdav.NewHTTPError(http.StatusNotFound, fmt.Errorf("object for path: %s not found", objPath))
		}
		return nil, err
	}

	return toEngineObject(objPath, obj)
}

func (e *Engine) ListCalendarObjects(
	ctx context.Context,
	urlPath string,
	req *caldav.CalendarCompRequest,
) ([]caldav.CalendarObject, error) {
	b, err := backendFromContext(ctx)
	if err != nil {
		return nil, err
	}
	homeSetPath, err := e.CalendarHomeSetPath(ctx)
	if err != nil {
		return nil, err
	}

	calendarID := path.Base(path.Clean(urlPath))
	listing, err := b.CalendarObjects(ctx, calendarID)
	if err != nil {
		return nil, err
	}
	if len(listing) == 0 {
		return nil, nil
	}

	hrefs := make([]string, 0, len(listing))
	for _, obj := range listing {
		hrefs = append(hrefs, obj.Href)
	}

	// The listing primed the object cache with payloads, so this multiget
	// is served locally.
	objs, err := b.MultipleCalendarObjects(ctx, calendarID, hrefs)
	if err != nil {
		return nil, err
	}

	out := make([]caldav.CalendarObject, 0, len(objs))
	for i := range objs {
		objPath := path.Join(homeSetPath, calendarID, objs[i].Href)
		eo, err := toEngineObject(objPath, &objs[i])
		if err != nil {
			// One unparsable object must not hide the rest of the collection.
			e.logger.Error("caldav.ListCalendarObjects: skipping object", "href", objs[i].Href, logger.Err(err))
			continue
		}
		out = append(out, *eo)
	}
	return out, nil
}

func (e *Engine) QueryCalendarObjects(
	ctx context.Context,
	urlPath string,
	query *caldav.CalendarQuery,
) ([]caldav.CalendarObject, error) {
	b, err := backendFromContext(ctx)
	if err != nil {
		return nil, err
	}

	calendarID := path.Base(path.Clean(urlPath))
	_, err = b.CalendarQuery(ctx, calendarID, query)
	if err != nil && !errors.Is(err, dav.ErrNotImplemented) {
		return nil, err
	}

	// The storage side cannot evaluate filters, so fetch the collection and
	// filter here.
	objs, err := e.ListCalendarObjects(ctx, urlPath, &query.CompRequest)
	if err != nil {
		return nil, err
	}
	return caldav.Filter(query, objs)
}

func (e *Engine) PutCalendarObject(
	ctx context.Context,
	objPath string,
	calendar *ical.Calendar,
	opts *caldav.PutCalendarObjectOptions,
) (*caldav.CalendarObject, error) {
	b, err := backendFromContext(ctx)
	if err != nil {
		return nil, err
	}

	if _, _, err := caldav.ValidateCalendarObject(calendar); err != nil {
		return nil, caldav.NewPreconditionError(caldav.PreconditionValidCalendarObjectResource)
	}

	var buf bytes.Buffer
	f := bufio.NewWriter(&buf)
	if err := ical.NewEncoder(f).Encode(calendar); err != nil {
		return nil, err
	}
	if err := f.Flush(); err != nil {
		return nil, err
	}

	calendarID, href := splitObjectPath(objPath)

	// The backend distinguishes insert from update, the protocol does not.
	_, err = b.CalendarObject(ctx, calendarID, href)
	switch {
	case errors.Is(err, dav.ErrNotFound):
		_, err = b.CreateCalendarObject(ctx, calendarID, href, buf.String())
	case err == nil:
		_, err = b.UpdateCalendarObject(ctx, calendarID, href, buf.String())
	}
	if err != nil {
		return nil, err
	}

	// Re-fetch for the authoritative etag: the backend may rewrite the
	// payload on ingest.
	stored, err := b.CalendarObject(ctx, calendarID, href)
	if err != nil {
		return nil, err
	}
	return &caldav.CalendarObject{
		Path:          objPath,
		ModTime:       stored.LastModified,
		ContentLength: stored.Size,
		ETag:          dav.UnquoteETag(stored.ETag),
		Data:          calendar,
	}, nil
}

func (e *Engine) DeleteCalendarObject(ctx context.Context, objPath string) error {
	b, err := backendFromContext(ctx)
	if err != nil {
		return err
	}
	calendarID, href := splitObjectPath(objPath)
	return b.DeleteCalendarObject(ctx, calendarID, href)
}

// GetPrivileges reports the privileges on the calendar home set. Creating
// and removing whole calendars is always allowed there; everything below is
// governed per collection.
func (e *Engine) GetPrivileges(ctx context.Context) []string {
	return []string{"read", "bind", "unbind", "read-acl", "read-current-user-privilege-set"}
}

// GetCalendarPrivileges derives the per-collection privileges from the
// backend permission flags.
func (e *Engine) GetCalendarPrivileges(ctx context.Context, cal *caldav.Calendar) []string {
	stored, _, err := e.resolveCalendar(ctx, path.Base(path.Clean(cal.Path)))
	if err != nil {
		e.logger.Error("caldav.GetCalendarPrivileges", logger.Err(err))
		return []string{"read"}
	}

	upPath, err := e.CurrentUserPrincipal(ctx)
	if err != nil {
		return []string{"read"}
	}
	return privilegeNames(acl.Collection(upPath, stored.ACLFolder, stored.ACLElements, true))
}

func (e *Engine) resolveCalendar(ctx context.Context, calendarID string) (*dav.Calendar, string, error) {
	b, err := backendFromContext(ctx)
	if err != nil {
		return nil, "", err
	}
	homeSetPath, err := e.CalendarHomeSetPath(ctx)
	if err != nil {
		return nil, "", err
	}
	upPath, err := e.CurrentUserPrincipal(ctx)
	if err != nil {
		return nil, "", err
	}

	cals, err := b.CalendarsForUser(ctx, upPath)
	if err != nil {
		return nil, "", err
	}
	for i := range cals {
		if cals[i].ID == calendarID {
			return &cals[i], homeSetPath, nil
		}
	}
	return nil, "", webdav.NewHTTPError(http.StatusNotFound, fmt.Errorf("calendar %s not found", calendarID))
}

func backendFromContext(ctx context.Context) (*Backend, error) {
	b, ok := FromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("no calendar backend in request context")
	}
	return b, nil
}

// splitObjectPath maps an object URL onto the backend coordinates: the
// collection uid and the object href inside it.
func splitObjectPath(objPath string) (calendarID, href string) {
	return path.Base(path.Dir(objPath)), path.Base(objPath)
}

func toEngineCalendar(homeSetPath string, cal *dav.Calendar) caldav.Calendar {
	return caldav.Calendar{
		Path:                  path.Join(homeSetPath, cal.ID) + "/",
		Name:                  cal.DisplayName,
		Description:           cal.Description,
		SupportedComponentSet: cal.SupportedComponents,
	}
}

func toEngineObject(objPath string, obj *dav.Object) (*caldav.CalendarObject, error) {
	cal, err := ical.NewDecoder(strings.NewReader(obj.Data)).Decode()
	if err != nil {
		return nil, fmt.Errorf("decode icalendar for %s: %w", objPath, err)
	}
	return &caldav.CalendarObject{
		Path:          objPath,
		ModTime:       obj.LastModified,
		ContentLength: obj.Size,
		ETag:          dav.UnquoteETag(obj.ETag),
		Data:          cal,
	}, nil
}

// privilegeNames maps derived access control entries to the bare privilege
// names the engine serves in current-user-privilege-set.
func privilegeNames(aces []acl.ACE) []string {
	names := make([]string, 0, len(aces)+2)
	for _, ace := range aces {
		p := ace.Privilege
		if i := strings.LastIndex(p, "}"); i >= 0 {
			p = p[i+1:]
		}
		names = append(names, p)
	}
	return append(names, "read-acl", "read-current-user-privilege-set")
}
