package carddav_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/emersion/go-vcard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cardd "github.com/ceres919/go-webdav/carddav"

	"github.com/averich/dav-bridge/internal/auth"
	"github.com/averich/dav-bridge/internal/carddav"
	"github.com/averich/dav-bridge/internal/rest"
	"github.com/averich/dav-bridge/pkg/logger"
)

type stubPrincipal struct{}

func (stubPrincipal) CurrentUserPrincipal(ctx context.Context) (string, error) {
	return "/jdoe/", nil
}

func newEngine(t *testing.T, f *fakeAddressBooks) (context.Context, cardd.Backend) {
	t.Helper()

	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)

	l := logger.New("error", "test")
	client := rest.NewClient(5*time.Second, l)
	hosts := auth.Hosts{DAV: srv.URL, CalDAV: srv.URL, CardDAV: srv.URL}
	session := auth.NewSession(hosts, "dav-bridge/test", rest.NewPrincipalsAPI(client), l)
	require.True(t, session.Authenticate(context.Background(), "jdoe", "secret"))

	ctx := carddav.NewContext(context.Background(), carddav.New(session, rest.NewAddressBooksAPI(client), l))

	e, err := carddav.NewEngine(stubPrincipal{}, "contacts", l)
	require.NoError(t, err)
	return ctx, e
}

func TestEngineHomeSetPath(t *testing.T) {
	t.Parallel()

	ctx, e := newEngine(t, &fakeAddressBooks{})

	homeSet, err := e.AddressBookHomeSetPath(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/jdoe/contacts/", homeSet)
}

func TestEngineListAddressBooks(t *testing.T) {
	t.Parallel()

	ctx, e := newEngine(t, &fakeAddressBooks{books: []rest.AddressBook{
		{UID: "ab-1", DisplayName: "Contacts", Description: "All contacts"},
	}})

	books, err := e.ListAddressBooks(ctx)
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "/jdoe/contacts/ab-1/", books[0].Path)
	assert.Equal(t, "Contacts", books[0].Name)
	assert.Equal(t, "All contacts", books[0].Description)
}

func TestEngineListAddressBooksCreatesDefault(t *testing.T) {
	t.Parallel()

	f := &fakeAddressBooks{}
	ctx, e := newEngine(t, f)

	books, err := e.ListAddressBooks(ctx)
	require.NoError(t, err)
	require.Len(t, books, 1, "an empty account gets a default address book")

	assert.Equal(t, "/jdoe/contacts/ab-new/", books[0].Path)
	assert.Equal(t, "Contacts", books[0].Name)
	assert.Equal(t, "Default address book", books[0].Description)
	assert.Equal(t, int64(1), f.createCalls.Load())
}

func TestEngineGetAddressObject(t *testing.T) {
	t.Parallel()

	ctx, e := newEngine(t, &fakeAddressBooks{cards: map[string]rest.Card{
		"a.vcf": {UID: "1", Href: "a.vcf", ETag: "e1", LastModified: 1700000000, Size: 90, Vcard: vcf("1")},
	}})

	ao, err := e.GetAddressObject(ctx, "/jdoe/contacts/ab-1/a.vcf", nil)
	require.NoError(t, err)

	assert.Equal(t, "/jdoe/contacts/ab-1/a.vcf", ao.Path)
	assert.Equal(t, "e1", ao.ETag, "engine-facing etags are unquoted")
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), ao.ModTime)
	assert.Equal(t, "1", ao.Card.Value(vcard.FieldUID))

	_, err = e.GetAddressObject(ctx, "/jdoe/contacts/ab-1/ghost.vcf", nil)
	assert.Error(t, err)
}

func TestEngineAddressBookPrivileges(t *testing.T) {
	t.Parallel()

	ctx, e := newEngine(t, &fakeAddressBooks{books: []rest.AddressBook{
		{UID: "ab-1", DisplayName: "Contacts", AclFol: "r", AclEle: "u"},
	}})

	book, err := e.GetAddressBook(ctx, "/jdoe/contacts/ab-1/")
	require.NoError(t, err)

	privs := e.GetAddressBookPrivileges(ctx, book)
	assert.Contains(t, privs, "read")
	assert.NotContains(t, privs, "write-properties", "folder flags lack the update flag")
	assert.NotContains(t, privs, "read-free-busy", "no free-busy grant on address books")
}
