// Package caldav adapts the protocol engine's calendar storage contract to
// the REST backend. All WebDAV bookkeeping the backend does not know about
// (quoted etags, ctags, sync-token normalization) is layered on here.
package caldav

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/averich/dav-bridge/internal/auth"
	"github.com/averich/dav-bridge/internal/cache"
	"github.com/averich/dav-bridge/internal/dav"
	"github.com/averich/dav-bridge/internal/rest"
	"github.com/averich/dav-bridge/pkg/logger"
)

// multigetChunkSize bounds the href count of a single backend fetch.
const multigetChunkSize = 50

// Backend implements dav.CalendarBackend. One instance serves one request;
// the object cache dies with it.
type Backend struct {
	session *auth.Session
	api     *rest.CalendarsAPI
	logger  *logger.Logger
	objects *cache.Store[rest.CalObject]
}

var _ dav.CalendarBackend = (*Backend)(nil)

// New -.
func New(session *auth.Session, api *rest.CalendarsAPI, l *logger.Logger) *Backend {
	return &Backend{
		session: session,
		api:     api,
		logger:  l,
		objects: cache.New[rest.CalObject](),
	}
}

// CalendarsForUser lists the calendars of the authenticated principal.
func (b *Backend) CalendarsForUser(ctx context.Context, principalURI string) ([]dav.Calendar, error) {
	b.logger.Debug("caldav.CalendarsForUser", "principalUri", principalURI)

	items, err := b.api.GetCalendars(ctx, b.session.CalDAVConfig())
	if err != nil {
		b.logger.Error("caldav.CalendarsForUser", logger.Err(err))
		return nil, err
	}

	calendars := make([]dav.Calendar, 0, len(items))
	for i, item := range items {
		calendars = append(calendars, b.toCalendar(principalURI, &item, i))
	}
	return calendars, nil
}

// CreateCalendar maps the supported properties onto a backend create and
// returns the backend-assigned uid. Any property outside the whitelist
// fails the call.
func (b *Backend) CreateCalendar(ctx context.Context, principalURI, uri string, props map[string]string) (string, error) {
	b.logger.Debug("caldav.CreateCalendar", "principalUri", principalURI, "uri", uri)

	item := &rest.CalendarNew{}
	for name, value := range props {
		switch name {
		case dav.PropDisplayName:
			item.DisplayName = value
		case dav.PropCalendarDescription:
			item.Description = value
		default:
			return "", &dav.UnsupportedPropertyError{Name: name}
		}
	}

	created, err := b.api.AddCalendar(ctx, b.session.CalDAVConfig(), item)
	if err != nil {
		b.logger.Error("caldav.CreateCalendar", logger.Err(err))
		return "", err
	}
	return created.UID, nil
}

// UpdateCalendar collects the supported mutations into a single backend
// update tagged with the changed fields. Unsupported properties stay
// unhandled and the engine reports them as failed.
func (b *Backend) UpdateCalendar(ctx context.Context, calendarID string, patch *dav.PropPatch) error {
	b.logger.Debug("caldav.UpdateCalendar", "calendarId", calendarID)

	supported := map[string]string{
		dav.PropDisplayName:         "displayName",
		dav.PropCalendarDescription: "description",
	}

	return patch.Handle([]string{dav.PropDisplayName, dav.PropCalendarDescription}, func(mutations map[string]string) error {
		item := &rest.CalendarUpdate{}
		for name, value := range mutations {
			switch field := supported[name]; field {
			case "displayName":
				item.DisplayName = value
			case "description":
				item.Description = value
			}
			item.UpdatedFields = append(item.UpdatedFields, supported[name])
		}

		if err := b.api.UpdateCalendar(ctx, b.session.CalDAVConfig(), calendarID, item); err != nil {
			b.logger.Error("caldav.UpdateCalendar", logger.Err(err))
			return err
		}
		return nil
	})
}

// DeleteCalendar -.
func (b *Backend) DeleteCalendar(ctx context.Context, calendarID string) error {
	b.logger.Debug("caldav.DeleteCalendar", "calendarId", calendarID)

	if err := b.api.DeleteCalendar(ctx, b.session.CalDAVConfig(), calendarID); err != nil {
		b.logger.Error("caldav.DeleteCalendar", logger.Err(err))
		return err
	}
	return nil
}

// CalendarObjects lists the collection and replaces the per-request object
// cache with the payload-bearing records; the listing handed back omits the
// payload. This is the cache's only writer.
func (b *Backend) CalendarObjects(ctx context.Context, calendarID string) ([]dav.Object, error) {
	b.logger.Debug("caldav.CalendarObjects", "calendarId", calendarID)

	items, err := b.api.GetCalObjects(ctx, b.session.CalDAVConfig(), calendarID, nil)
	if err != nil {
		b.logger.Error("caldav.CalendarObjects", logger.Err(err))
		return nil, err
	}

	objs := make([]dav.Object, 0, len(items))
	byHref := make(map[string]rest.CalObject, len(items))
	for _, item := range items {
		if item.Href == "" {
			// Backend data-integrity problem; skip the record, keep the rest.
			b.logger.Error("caldav.CalendarObjects: object with empty href", "uid", item.UID)
			continue
		}
		byHref[item.Href] = item
		objs = append(objs, toObject(&item, false))
	}
	b.objects.ReplaceAll(byHref)
	return objs, nil
}

// CalendarObject fetches a single object with payload. A cache hit from
// the last listing is served without a backend round trip. A clean miss on
// the backend is dav.ErrNotFound, not a failure.
func (b *Backend) CalendarObject(ctx context.Context, calendarID, href string) (*dav.Object, error) {
	b.logger.Debug("caldav.CalendarObject", "calendarId", calendarID, "href", href)

	if item, ok := b.objects.Get(href); ok && item.Icalendar != "" {
		b.logger.Debug("caldav.CalendarObject: cache hit", "href", href)
		obj := toObject(&item, true)
		return &obj, nil
	}

	items, err := b.api.GetCalObjects(ctx, b.session.CalDAVConfig(), calendarID, []string{href})
	if err != nil {
		b.logger.Error("caldav.CalendarObject", logger.Err(err))
		return nil, err
	}
	if len(items) != 1 {
		// Zero is a normal negative lookup; more than one should not happen
		// given href uniqueness and is treated the same way.
		return nil, dav.ErrNotFound
	}
	obj := toObject(&items[0], true)
	return &obj, nil
}

// MultipleCalendarObjects fetches the given hrefs with payloads. Hrefs
// cached by the last listing are served locally; only the rest goes to
// the backend, chunked to bound request size. Results preserve input
// order, unknown hrefs are dropped.
func (b *Backend) MultipleCalendarObjects(ctx context.Context, calendarID string, hrefs []string) ([]dav.Object, error) {
	b.logger.Debug("caldav.MultipleCalendarObjects", "calendarId", calendarID, "count", len(hrefs))

	if len(hrefs) == 0 {
		return nil, nil
	}

	found := make(map[string]rest.CalObject, len(hrefs))
	missing := make([]string, 0, len(hrefs))
	for _, href := range hrefs {
		if item, ok := b.objects.Get(href); ok && item.Icalendar != "" {
			found[href] = item
			continue
		}
		missing = append(missing, href)
	}

	for _, chunk := range dav.ChunkHrefs(missing, multigetChunkSize) {
		items, err := b.api.GetCalObjects(ctx, b.session.CalDAVConfig(), calendarID, chunk)
		if err != nil {
			b.logger.Error("caldav.MultipleCalendarObjects", logger.Err(err))
			return nil, err
		}
		for _, item := range items {
			found[item.Href] = item
		}
	}

	objs := make([]dav.Object, 0, len(hrefs))
	for _, href := range hrefs {
		item, ok := found[href]
		if !ok {
			continue
		}
		objs = append(objs, toObject(&item, true))
	}
	return objs, nil
}

// CreateCalendarObject stores a new object. No etag is returned: the
// backend does not guarantee a byte-identical echo, so the engine must
// re-fetch when it needs one.
func (b *Backend) CreateCalendarObject(ctx context.Context, calendarID, href, data string) (string, error) {
	b.logger.Debug("caldav.CreateCalendarObject", "calendarId", calendarID, "href", href)

	item := &rest.CalObjectNew{Href: href, Icalendar: data}
	if err := b.api.AddCalObject(ctx, b.session.CalDAVConfig(), calendarID, item); err != nil {
		b.logger.Error("caldav.CreateCalendarObject", logger.Err(err))
		return "", err
	}
	return "", nil
}

// UpdateCalendarObject has the same contract as CreateCalendarObject.
func (b *Backend) UpdateCalendarObject(ctx context.Context, calendarID, href, data string) (string, error) {
	b.logger.Debug("caldav.UpdateCalendarObject", "calendarId", calendarID, "href", href)

	if err := b.api.UpdateCalObject(ctx, b.session.CalDAVConfig(), calendarID, href, data); err != nil {
		b.logger.Error("caldav.UpdateCalendarObject", logger.Err(err))
		return "", err
	}
	return "", nil
}

// DeleteCalendarObject -.
func (b *Backend) DeleteCalendarObject(ctx context.Context, calendarID, href string) error {
	b.logger.Debug("caldav.DeleteCalendarObject", "calendarId", calendarID, "href", href)

	if err := b.api.DeleteCalObject(ctx, b.session.CalDAVConfig(), calendarID, href); err != nil {
		b.logger.Error("caldav.DeleteCalendarObject", logger.Err(err))
		return err
	}
	return nil
}

// CalendarQuery is not translated to the backend; callers fall back to the
// generic fetch-all-then-filter path. Known performance risk on large
// collections.
func (b *Backend) CalendarQuery(ctx context.Context, calendarID string, filters any) ([]string, error) {
	b.logger.Debug("caldav.CalendarQuery", "calendarId", calendarID)
	return nil, fmt.Errorf("calendar-query: %w", dav.ErrNotImplemented)
}

// CalendarObjectByUID is unsupported: the backend exposes no
// cross-collection UID index.
func (b *Backend) CalendarObjectByUID(ctx context.Context, principalURI, uid string) (string, error) {
	b.logger.Debug("caldav.CalendarObjectByUID", "principalUri", principalURI, "uid", uid)
	return "", fmt.Errorf("calendar object by uid: %w", dav.ErrNotImplemented)
}

// ChangesForCalendar passes the raw token through verbatim. A backend
// "gone" answer means the token expired and the client must resync from
// scratch: that is the (nil, nil) result, not an error.
func (b *Backend) ChangesForCalendar(ctx context.Context, calendarID, syncToken string, limit int) (*dav.Changes, error) {
	b.logger.Debug("caldav.ChangesForCalendar", "calendarId", calendarID, "syncToken", syncToken)

	changes, err := b.api.GetCalObjectsChanges(ctx, b.session.CalDAVConfig(), calendarID, syncToken, limit)
	if err != nil {
		var apiErr *rest.APIError
		if errors.As(err, &apiErr) && apiErr.IsGone() {
			b.logger.Debug("caldav.ChangesForCalendar: sync token expired", "syncToken", syncToken)
			return nil, nil
		}
		b.logger.Error("caldav.ChangesForCalendar", logger.Err(err))
		return nil, err
	}
	return dav.ChangesFromFeed(changes), nil
}

func (b *Backend) toCalendar(principalURI string, item *rest.Calendar, order int) dav.Calendar {
	return dav.Calendar{
		ID:                  item.UID,
		PrincipalURI:        principalURI,
		DisplayName:         item.DisplayName,
		Description:         item.Description,
		Color:               item.Color,
		Order:               order,
		CTag:                item.SyncToken,
		SyncToken:           dav.NormalizeSyncToken(item.SyncToken),
		SupportedComponents: []string{"VEVENT"},
		ACLFolder:           item.AclFol,
		ACLElements:         item.AclEle,
	}
}

func toObject(item *rest.CalObject, fillData bool) dav.Object {
	obj := dav.Object{
		UID:          item.UID,
		Href:         item.Href,
		LastModified: time.Unix(item.LastModified, 0).UTC(),
		ETag:         dav.QuoteETag(item.ETag),
		Size:         item.Size,
	}
	if fillData {
		obj.Data = item.Icalendar
	}
	return obj
}

