package rest_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/averich/dav-bridge/internal/rest"
	"github.com/averich/dav-bridge/pkg/logger"
)

func testConfig(host string) rest.Config {
	return rest.Config{
		Host:      host,
		Username:  "jdoe",
		Password:  "secret",
		UserAgent: "dav-bridge/test",
	}
}

func newClient() *rest.Client {
	return rest.NewClient(5*time.Second, logger.New("error", "test"))
}

func TestClientRequestShape(t *testing.T) {
	t.Parallel()

	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		_ = json.NewEncoder(w).Encode(rest.PrincipalInfo{ProfileUsername: "jdoe"})
	}))
	defer srv.Close()

	api := rest.NewPrincipalsAPI(newClient())
	info, err := api.GetPrincipalInfo(context.Background(), testConfig(srv.URL), "jdoe")
	require.NoError(t, err)
	assert.Equal(t, "jdoe", info.ProfileUsername)

	require.NotNil(t, got)
	assert.Equal(t, "/principals/jdoe", got.URL.Path)

	user, pass, ok := got.BasicAuth()
	require.True(t, ok)
	assert.Equal(t, "jdoe", user)
	assert.Equal(t, "secret", pass)
	assert.Equal(t, "dav-bridge/test", got.Header.Get("User-Agent"))
	assert.Equal(t, "application/json", got.Header.Get("Accept"))
	assert.NotEmpty(t, got.Header.Get("X-Request-Id"))
}

func TestClientAPIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such principal", http.StatusNotFound)
	}))
	defer srv.Close()

	api := rest.NewPrincipalsAPI(newClient())
	_, err := api.GetPrincipalInfo(context.Background(), testConfig(srv.URL), "ghost")
	require.Error(t, err)

	var apiErr *rest.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsNotFound())
	assert.False(t, apiErr.IsGone())
	assert.Contains(t, apiErr.Error(), "no such principal")
}

func TestClientGoneError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer srv.Close()

	api := rest.NewCalendarsAPI(newClient())
	_, err := api.GetCalObjectsChanges(context.Background(), testConfig(srv.URL), "cal-1", "42", 0)
	require.Error(t, err)

	var apiErr *rest.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsGone())
}

func TestClientScopedObjectListing(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/calendars/cal-1/objects", r.URL.Path)
		assert.Equal(t, []string{"a.ics", "b.ics"}, r.URL.Query()["href"])
		_ = json.NewEncoder(w).Encode([]rest.CalObject{
			{UID: "1", Href: "a.ics", ETag: "e1", Icalendar: "BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"},
			{UID: "2", Href: "b.ics", ETag: "e2", Icalendar: "BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"},
		})
	}))
	defer srv.Close()

	api := rest.NewCalendarsAPI(newClient())
	items, err := api.GetCalObjects(context.Background(), testConfig(srv.URL), "cal-1", []string{"a.ics", "b.ics"})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "a.ics", items[0].Href)
}
