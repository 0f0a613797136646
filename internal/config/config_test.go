package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/averich/dav-bridge/internal/config"
)

func TestServiceHostURLs(t *testing.T) {
	t.Parallel()

	api := config.API{
		BaseURL:     "http://backend.example.com",
		DAVPath:     "api/dav/v1",
		CalDAVPath:  "api/caldav/v1",
		CardDAVPath: "api/carddav/v1",
	}

	assert.Equal(t, "http://backend.example.com/api/dav/v1", api.DAVHostURL())
	assert.Equal(t, "http://backend.example.com/api/caldav/v1", api.CalDAVHostURL())
	assert.Equal(t, "http://backend.example.com/api/carddav/v1", api.CardDAVHostURL())
}

func TestServiceHostOverride(t *testing.T) {
	t.Parallel()

	api := config.API{
		BaseURL:    "http://backend.example.com/",
		CalDAVHost: "http://calendars.example.com:9000/",
		CalDAVPath: "api/caldav/v1",
		DAVPath:    "api/dav/v1",
	}

	assert.Equal(t, "http://calendars.example.com:9000/api/caldav/v1", api.CalDAVHostURL())
	assert.Equal(t, "http://backend.example.com/api/dav/v1", api.DAVHostURL(),
		"services without an override stay on the base URL")
}

func TestServiceHostTrailingSlashes(t *testing.T) {
	t.Parallel()

	api := config.API{
		BaseURL: "http://backend.example.com/root/",
		DAVPath: "/api/dav/v1/",
	}

	assert.Equal(t, "http://backend.example.com/root/api/dav/v1", api.DAVHostURL())
}
