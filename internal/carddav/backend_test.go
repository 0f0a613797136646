package carddav_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/averich/dav-bridge/internal/auth"
	"github.com/averich/dav-bridge/internal/carddav"
	"github.com/averich/dav-bridge/internal/dav"
	"github.com/averich/dav-bridge/internal/rest"
	"github.com/averich/dav-bridge/pkg/logger"
)

const principalURI = "principals/jdoe"

type fakeAddressBooks struct {
	books        []rest.AddressBook
	cards        map[string]rest.Card
	changes      *rest.ObjectsChanges
	tokenExpired bool

	cardCalls   atomic.Int64
	createCalls atomic.Int64
}

func (f *fakeAddressBooks) handler(t *testing.T) http.Handler {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/principals/", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(rest.PrincipalInfo{ProfileUsername: "jdoe"})
	})

	mux.HandleFunc("/addressbooks", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			f.createCalls.Add(1)
			var item rest.AddressBookNew
			require.NoError(t, json.NewDecoder(r.Body).Decode(&item))
			created := rest.AddressBook{UID: "ab-new", DisplayName: item.DisplayName, Description: item.Description}
			f.books = append(f.books, created)
			_ = json.NewEncoder(w).Encode(created)
			return
		}
		_ = json.NewEncoder(w).Encode(f.books)
	})

	mux.HandleFunc("/addressbooks/ab-1/cards", func(w http.ResponseWriter, r *http.Request) {
		f.cardCalls.Add(1)
		hrefs := r.URL.Query()["href"]
		if len(hrefs) == 0 {
			out := make([]rest.Card, 0, len(f.cards))
			for _, card := range f.cards {
				out = append(out, card)
			}
			_ = json.NewEncoder(w).Encode(out)
			return
		}
		out := make([]rest.Card, 0, len(hrefs))
		for _, href := range hrefs {
			if card, ok := f.cards[href]; ok {
				out = append(out, card)
			}
		}
		_ = json.NewEncoder(w).Encode(out)
	})

	mux.HandleFunc("/addressbooks/ab-1/changes", func(w http.ResponseWriter, r *http.Request) {
		if f.tokenExpired {
			w.WriteHeader(http.StatusGone)
			return
		}
		_ = json.NewEncoder(w).Encode(f.changes)
	})

	return mux
}

func vcf(uid string) string {
	return fmt.Sprintf("BEGIN:VCARD\r\nVERSION:3.0\r\nUID:%s\r\nFN:Test\r\nEND:VCARD\r\n", uid)
}

func newBackend(t *testing.T, f *fakeAddressBooks) *carddav.Backend {
	t.Helper()

	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)

	l := logger.New("error", "test")
	client := rest.NewClient(5*time.Second, l)
	hosts := auth.Hosts{DAV: srv.URL, CalDAV: srv.URL, CardDAV: srv.URL}
	session := auth.NewSession(hosts, "dav-bridge/test", rest.NewPrincipalsAPI(client), l)
	require.True(t, session.Authenticate(context.Background(), "jdoe", "secret"))

	return carddav.New(session, rest.NewAddressBooksAPI(client), l)
}

func TestAddressBooksForUser(t *testing.T) {
	t.Parallel()

	f := &fakeAddressBooks{books: []rest.AddressBook{
		{UID: "ab-1", DisplayName: "Contacts", Description: "All contacts", SyncToken: "7", AclFol: "r", AclEle: "u"},
		{UID: "ab-2", DisplayName: "Shared"},
	}}
	b := newBackend(t, f)

	books, err := b.AddressBooksForUser(context.Background(), principalURI)
	require.NoError(t, err)
	require.Len(t, books, 2)

	assert.Equal(t, "ab-1", books[0].ID)
	assert.Equal(t, principalURI, books[0].PrincipalURI)
	assert.Equal(t, "7", books[0].CTag)
	assert.Equal(t, "7", books[0].SyncToken)
	assert.Equal(t, "r", books[0].ACLFolder)
	assert.Equal(t, "u", books[0].ACLElements)

	assert.Equal(t, dav.EpochSyncToken, books[1].SyncToken)
	assert.Equal(t, "", books[1].CTag)
}

func TestCardsAndCacheFlow(t *testing.T) {
	t.Parallel()

	f := &fakeAddressBooks{cards: map[string]rest.Card{
		"a.vcf": {UID: "1", Href: "a.vcf", ETag: "e1", LastModified: 1700000000, Size: 90, Vcard: vcf("1")},
	}}
	b := newBackend(t, f)

	cards, err := b.Cards(context.Background(), "ab-1")
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, `"e1"`, cards[0].ETag)
	assert.False(t, cards[0].HasData(), "listing records omit the payload")
	require.Equal(t, int64(1), f.cardCalls.Load())

	card, err := b.Card(context.Background(), "ab-1", "a.vcf")
	require.NoError(t, err)
	assert.True(t, card.HasData())
	assert.Contains(t, card.Data, "UID:1")
	assert.Equal(t, int64(1), f.cardCalls.Load(), "the cached payload serves the fetch locally")
}

func TestCardNotFound(t *testing.T) {
	t.Parallel()

	b := newBackend(t, &fakeAddressBooks{cards: map[string]rest.Card{}})

	_, err := b.Card(context.Background(), "ab-1", "ghost.vcf")
	assert.ErrorIs(t, err, dav.ErrNotFound)
}

func TestMultipleCardsChunks(t *testing.T) {
	t.Parallel()

	cards := make(map[string]rest.Card, 60)
	hrefs := make([]string, 0, 60)
	for i := 0; i < 60; i++ {
		href := fmt.Sprintf("card-%02d.vcf", i)
		hrefs = append(hrefs, href)
		cards[href] = rest.Card{UID: fmt.Sprintf("%d", i), Href: href, ETag: "e", Vcard: vcf(href)}
	}
	f := &fakeAddressBooks{cards: cards}
	b := newBackend(t, f)

	objs, err := b.MultipleCards(context.Background(), "ab-1", hrefs)
	require.NoError(t, err)
	assert.Len(t, objs, 60)
	assert.Equal(t, int64(2), f.cardCalls.Load(), "60 hrefs must go out as 50+10")
}

func TestMultipleCardsServedFromListingCache(t *testing.T) {
	t.Parallel()

	f := &fakeAddressBooks{cards: map[string]rest.Card{
		"a.vcf": {UID: "1", Href: "a.vcf", ETag: "e1", Vcard: vcf("1")},
		"b.vcf": {UID: "2", Href: "b.vcf", ETag: "e2", Vcard: vcf("2")},
	}}
	b := newBackend(t, f)

	_, err := b.Cards(context.Background(), "ab-1")
	require.NoError(t, err)
	require.Equal(t, int64(1), f.cardCalls.Load())

	objs, err := b.MultipleCards(context.Background(), "ab-1", []string{"a.vcf", "b.vcf"})
	require.NoError(t, err)
	require.Len(t, objs, 2)
	assert.Equal(t, int64(1), f.cardCalls.Load(), "the listing cache serves the whole multiget")
	assert.Equal(t, "a.vcf", objs[0].Href)
	assert.True(t, objs[0].HasData())
}

func TestChangesForAddressBook(t *testing.T) {
	t.Parallel()

	f := &fakeAddressBooks{changes: &rest.ObjectsChanges{
		SyncToken: "8",
		Inserted:  []rest.ObjectChanged{{Href: "new.vcf"}},
		Deleted:   []rest.ObjectChanged{{Href: "gone.vcf"}},
	}}
	b := newBackend(t, f)

	changes, err := b.ChangesForAddressBook(context.Background(), "ab-1", "7", 0)
	require.NoError(t, err)
	require.NotNil(t, changes)
	assert.Equal(t, "8", changes.SyncToken)
	assert.Equal(t, []string{"new.vcf"}, changes.Added)
	assert.Empty(t, changes.Modified)
	assert.Equal(t, []string{"gone.vcf"}, changes.Deleted)
}

func TestChangesForAddressBookExpiredToken(t *testing.T) {
	t.Parallel()

	b := newBackend(t, &fakeAddressBooks{tokenExpired: true})

	changes, err := b.ChangesForAddressBook(context.Background(), "ab-1", "stale", 0)
	require.NoError(t, err)
	assert.Nil(t, changes)
}

func TestCreateAddressBookRejectsUnsupportedProps(t *testing.T) {
	t.Parallel()

	b := newBackend(t, &fakeAddressBooks{})

	_, err := b.CreateAddressBook(context.Background(), principalURI, "new-ab", map[string]string{
		"{X:}sort-order": "asc",
	})
	require.Error(t, err)

	var unsupported *dav.UnsupportedPropertyError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "{X:}sort-order", unsupported.Name)
}
