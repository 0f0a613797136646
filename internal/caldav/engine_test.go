package caldav_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cdav "github.com/ceres919/go-webdav/caldav"

	"github.com/averich/dav-bridge/internal/auth"
	"github.com/averich/dav-bridge/internal/caldav"
	"github.com/averich/dav-bridge/internal/rest"
	"github.com/averich/dav-bridge/pkg/logger"
)

// stubPrincipal pins the URL namespace of the test user.
type stubPrincipal struct{}

func (stubPrincipal) CurrentUserPrincipal(ctx context.Context) (string, error) {
	return "/jdoe/", nil
}

func icsEvent(uid string) string {
	return "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//test//EN\r\n" +
		"BEGIN:VEVENT\r\nUID:" + uid + "\r\nDTSTAMP:20240101T000000Z\r\n" +
		"DTSTART:20240102T100000Z\r\nSUMMARY:Event " + uid + "\r\nEND:VEVENT\r\nEND:VCALENDAR\r\n"
}

// newEngine builds the engine plus a request context with the per-request
// adapter installed, the same shape the auth middleware produces.
func newEngine(t *testing.T, f *fakeCalendars) (context.Context, cdav.Backend) {
	t.Helper()

	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)

	l := logger.New("error", "test")
	client := rest.NewClient(5*time.Second, l)
	hosts := auth.Hosts{DAV: srv.URL, CalDAV: srv.URL, CardDAV: srv.URL}
	session := auth.NewSession(hosts, "dav-bridge/test", rest.NewPrincipalsAPI(client), l)
	require.True(t, session.Authenticate(context.Background(), "jdoe", "secret"))

	ctx := caldav.NewContext(context.Background(), caldav.New(session, rest.NewCalendarsAPI(client), l))

	e, err := caldav.NewEngine(stubPrincipal{}, "calendars", l)
	require.NoError(t, err)
	return ctx, e
}

func TestEngineHomeSetPath(t *testing.T) {
	t.Parallel()

	ctx, e := newEngine(t, &fakeCalendars{})

	homeSet, err := e.CalendarHomeSetPath(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/jdoe/calendars/", homeSet)
}

func TestEngineListCalendars(t *testing.T) {
	t.Parallel()

	ctx, e := newEngine(t, &fakeCalendars{calendars: []rest.Calendar{
		{UID: "cal-1", DisplayName: "Work", Description: "Work events", SyncToken: "42"},
	}})

	cals, err := e.ListCalendars(ctx)
	require.NoError(t, err)
	require.Len(t, cals, 1)

	assert.Equal(t, "/jdoe/calendars/cal-1/", cals[0].Path)
	assert.Equal(t, "Work", cals[0].Name)
	assert.Equal(t, "Work events", cals[0].Description)
	assert.Equal(t, []string{"VEVENT"}, cals[0].SupportedComponentSet)
}

func TestEngineGetCalendar(t *testing.T) {
	t.Parallel()

	ctx, e := newEngine(t, &fakeCalendars{calendars: []rest.Calendar{
		{UID: "cal-1", DisplayName: "Work"},
	}})

	cal, err := e.GetCalendar(ctx, "/jdoe/calendars/cal-1/")
	require.NoError(t, err)
	assert.Equal(t, "/jdoe/calendars/cal-1/", cal.Path)

	_, err = e.GetCalendar(ctx, "/jdoe/calendars/ghost/")
	assert.Error(t, err)
}

func TestEngineGetCalendarObject(t *testing.T) {
	t.Parallel()

	ctx, e := newEngine(t, &fakeCalendars{objects: map[string]rest.CalObject{
		"a.ics": {UID: "1", Href: "a.ics", ETag: "e1", LastModified: 1700000000, Size: 64, Icalendar: icsEvent("1")},
	}})

	obj, err := e.GetCalendarObject(ctx, "/jdoe/calendars/cal-1/a.ics", nil)
	require.NoError(t, err)

	assert.Equal(t, "/jdoe/calendars/cal-1/a.ics", obj.Path)
	assert.Equal(t, "e1", obj.ETag, "engine-facing etags are unquoted")
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), obj.ModTime)
	require.NotNil(t, obj.Data)
	assert.Len(t, obj.Data.Events(), 1)

	_, err = e.GetCalendarObject(ctx, "/jdoe/calendars/cal-1/ghost.ics", nil)
	assert.Error(t, err)
}

func TestEngineListCalendarObjectsCarriesData(t *testing.T) {
	t.Parallel()

	ctx, e := newEngine(t, &fakeCalendars{objects: map[string]rest.CalObject{
		"a.ics": {UID: "1", Href: "a.ics", ETag: "e1", Icalendar: icsEvent("1")},
		"b.ics": {UID: "2", Href: "b.ics", ETag: "e2", Icalendar: icsEvent("2")},
	}})

	objs, err := e.ListCalendarObjects(ctx, "/jdoe/calendars/cal-1/", nil)
	require.NoError(t, err)
	require.Len(t, objs, 2)
	for _, obj := range objs {
		assert.True(t, strings.HasPrefix(obj.Path, "/jdoe/calendars/cal-1/"))
		assert.NotNil(t, obj.Data)
	}
}

func TestEngineCalendarPrivileges(t *testing.T) {
	t.Parallel()

	ctx, e := newEngine(t, &fakeCalendars{calendars: []rest.Calendar{
		{UID: "cal-1", DisplayName: "Work", AclFol: "ru", AclEle: "cud"},
		{UID: "cal-2", DisplayName: "Subscribed", AclFol: "r", AclEle: ""},
	}})

	writable, err := e.GetCalendar(ctx, "/jdoe/calendars/cal-1/")
	require.NoError(t, err)
	privs := e.GetCalendarPrivileges(ctx, writable)
	assert.Contains(t, privs, "read")
	assert.Contains(t, privs, "write-properties")
	assert.Contains(t, privs, "write-content")
	assert.Contains(t, privs, "bind")
	assert.Contains(t, privs, "unbind")
	assert.Contains(t, privs, "read-free-busy")

	readOnly, err := e.GetCalendar(ctx, "/jdoe/calendars/cal-2/")
	require.NoError(t, err)
	privs = e.GetCalendarPrivileges(ctx, readOnly)
	assert.Contains(t, privs, "read")
	assert.NotContains(t, privs, "write-content")
	assert.NotContains(t, privs, "bind")
	assert.NotContains(t, privs, "unbind")
}
