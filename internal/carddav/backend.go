// Package carddav adapts the protocol engine's address book storage
// contract to the REST backend. Mirrors the caldav adapter; CardDAV has no
// query-by-filter or UID-lookup reports.
package carddav

import (
	"context"
	"errors"
	"time"

	"github.com/averich/dav-bridge/internal/auth"
	"github.com/averich/dav-bridge/internal/cache"
	"github.com/averich/dav-bridge/internal/dav"
	"github.com/averich/dav-bridge/internal/rest"
	"github.com/averich/dav-bridge/pkg/logger"
)

const multigetChunkSize = 50

// Backend implements dav.AddressBookBackend. One instance serves one
// request; the card cache dies with it.
type Backend struct {
	session *auth.Session
	api     *rest.AddressBooksAPI
	logger  *logger.Logger
	cards   *cache.Store[rest.Card]
}

var _ dav.AddressBookBackend = (*Backend)(nil)

// New -.
func New(session *auth.Session, api *rest.AddressBooksAPI, l *logger.Logger) *Backend {
	return &Backend{
		session: session,
		api:     api,
		logger:  l,
		cards:   cache.New[rest.Card](),
	}
}

// AddressBooksForUser lists the address books of the authenticated principal.
func (b *Backend) AddressBooksForUser(ctx context.Context, principalURI string) ([]dav.AddressBook, error) {
	b.logger.Debug("carddav.AddressBooksForUser", "principalUri", principalURI)

	items, err := b.api.GetAddressBooks(ctx, b.session.CardDAVConfig())
	if err != nil {
		b.logger.Error("carddav.AddressBooksForUser", logger.Err(err))
		return nil, err
	}

	books := make([]dav.AddressBook, 0, len(items))
	for _, item := range items {
		books = append(books, dav.AddressBook{
			ID:           item.UID,
			PrincipalURI: principalURI,
			DisplayName:  item.DisplayName,
			Description:  item.Description,
			CTag:         item.SyncToken,
			SyncToken:    dav.NormalizeSyncToken(item.SyncToken),
			ACLFolder:    item.AclFol,
			ACLElements:  item.AclEle,
		})
	}
	return books, nil
}

// CreateAddressBook maps the supported properties onto a backend create and
// returns the backend-assigned uid.
func (b *Backend) CreateAddressBook(ctx context.Context, principalURI, uri string, props map[string]string) (string, error) {
	b.logger.Debug("carddav.CreateAddressBook", "principalUri", principalURI, "uri", uri)

	item := &rest.AddressBookNew{}
	for name, value := range props {
		switch name {
		case dav.PropDisplayName:
			item.DisplayName = value
		case dav.PropAddressBookDescription:
			item.Description = value
		default:
			return "", &dav.UnsupportedPropertyError{Name: name}
		}
	}

	created, err := b.api.AddAddressBook(ctx, b.session.CardDAVConfig(), item)
	if err != nil {
		b.logger.Error("carddav.CreateAddressBook", logger.Err(err))
		return "", err
	}
	return created.UID, nil
}

// UpdateAddressBook collects the supported mutations into one backend
// update; everything else stays unhandled for the engine to report.
func (b *Backend) UpdateAddressBook(ctx context.Context, addressBookID string, patch *dav.PropPatch) error {
	b.logger.Debug("carddav.UpdateAddressBook", "addressBookId", addressBookID)

	supported := map[string]string{
		dav.PropDisplayName:            "displayName",
		dav.PropAddressBookDescription: "description",
	}

	return patch.Handle([]string{dav.PropDisplayName, dav.PropAddressBookDescription}, func(mutations map[string]string) error {
		item := &rest.AddressBookUpdate{}
		for name, value := range mutations {
			switch supported[name] {
			case "displayName":
				item.DisplayName = value
			case "description":
				item.Description = value
			}
			item.UpdatedFields = append(item.UpdatedFields, supported[name])
		}

		if err := b.api.UpdateAddressBook(ctx, b.session.CardDAVConfig(), addressBookID, item); err != nil {
			b.logger.Error("carddav.UpdateAddressBook", logger.Err(err))
			return err
		}
		return nil
	})
}

// DeleteAddressBook -.
func (b *Backend) DeleteAddressBook(ctx context.Context, addressBookID string) error {
	b.logger.Debug("carddav.DeleteAddressBook", "addressBookId", addressBookID)

	if err := b.api.DeleteAddressBook(ctx, b.session.CardDAVConfig(), addressBookID); err != nil {
		b.logger.Error("carddav.DeleteAddressBook", logger.Err(err))
		return err
	}
	return nil
}

// Cards lists the collection and replaces the per-request card cache with
// the payload-bearing records; the listing handed back omits the payload.
// This is the cache's only writer.
func (b *Backend) Cards(ctx context.Context, addressBookID string) ([]dav.Object, error) {
	b.logger.Debug("carddav.Cards", "addressBookId", addressBookID)

	items, err := b.api.GetCards(ctx, b.session.CardDAVConfig(), addressBookID, nil)
	if err != nil {
		b.logger.Error("carddav.Cards", logger.Err(err))
		return nil, err
	}

	objs := make([]dav.Object, 0, len(items))
	byHref := make(map[string]rest.Card, len(items))
	for _, item := range items {
		if item.Href == "" {
			// Backend data-integrity problem; skip the record, keep the rest.
			b.logger.Error("carddav.Cards: card with empty href", "uid", item.UID)
			continue
		}
		byHref[item.Href] = item
		objs = append(objs, toCard(&item, false))
	}
	b.cards.ReplaceAll(byHref)
	return objs, nil
}

// Card fetches a single card with payload. A cache hit from the last
// listing is served without a backend round trip. A clean backend miss is
// dav.ErrNotFound.
func (b *Backend) Card(ctx context.Context, addressBookID, href string) (*dav.Object, error) {
	b.logger.Debug("carddav.Card", "addressBookId", addressBookID, "href", href)

	if item, ok := b.cards.Get(href); ok && item.Vcard != "" {
		b.logger.Debug("carddav.Card: cache hit", "href", href)
		obj := toCard(&item, true)
		return &obj, nil
	}

	items, err := b.api.GetCards(ctx, b.session.CardDAVConfig(), addressBookID, []string{href})
	if err != nil {
		b.logger.Error("carddav.Card", logger.Err(err))
		return nil, err
	}
	if len(items) != 1 {
		return nil, dav.ErrNotFound
	}
	obj := toCard(&items[0], true)
	return &obj, nil
}

// MultipleCards fetches the given hrefs with payloads. Hrefs cached by the
// last listing are served locally; only the rest goes to the backend,
// chunked to bound request size. Results preserve input order, unknown
// hrefs are dropped.
func (b *Backend) MultipleCards(ctx context.Context, addressBookID string, hrefs []string) ([]dav.Object, error) {
	b.logger.Debug("carddav.MultipleCards", "addressBookId", addressBookID, "count", len(hrefs))

	if len(hrefs) == 0 {
		return nil, nil
	}

	found := make(map[string]rest.Card, len(hrefs))
	missing := make([]string, 0, len(hrefs))
	for _, href := range hrefs {
		if item, ok := b.cards.Get(href); ok && item.Vcard != "" {
			found[href] = item
			continue
		}
		missing = append(missing, href)
	}

	for _, chunk := range dav.ChunkHrefs(missing, multigetChunkSize) {
		items, err := b.api.GetCards(ctx, b.session.CardDAVConfig(), addressBookID, chunk)
		if err != nil {
			b.logger.Error("carddav.MultipleCards", logger.Err(err))
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
		objs = append(objs, toCard(&item, true))
	}
	return objs, nil
}

// CreateCard stores a new card; no etag is returned, the engine re-fetches
// when it needs one.
func (b *Backend) CreateCard(ctx context.Context, addressBookID, href, data string) (string, error) {
	b.logger.Debug("carddav.CreateCard", "addressBookId", addressBookID, "href", href)

	item := &rest.CardNew{Href: href, Vcard: data}
	if err := b.api.AddCard(ctx, b.session.CardDAVConfig(), addressBookID, item); err != nil {
		b.logger.Error("carddav.CreateCard", logger.Err(err))
		return "", err
	}
	return "", nil
}

// UpdateCard has the same contract as CreateCard.
func (b *Backend) UpdateCard(ctx context.Context, addressBookID, href, data string) (string, error) {
	b.logger.Debug("carddav.UpdateCard", "addressBookId", addressBookID, "href", href)

	if err := b.api.UpdateCard(ctx, b.session.CardDAVConfig(), addressBookID, href, data); err != nil {
		b.logger.Error("carddav.UpdateCard", logger.Err(err))
		return "", err
	}
	return "", nil
}

// DeleteCard -.
func (b *Backend) DeleteCard(ctx context.Context, addressBookID, href string) error {
	b.logger.Debug("carddav.DeleteCard", "addressBookId", addressBookID, "href", href)

	if err := b.api.DeleteCard(ctx, b.session.CardDAVConfig(), addressBookID, href); err != nil {
		b.logger.Error("carddav.DeleteCard", logger.Err(err))
		return err
	}
	return nil
}

// ChangesForAddressBook passes the raw token through verbatim; a backend
// "gone" answer means the client must resync from scratch, expressed as
// (nil, nil).
func (b *Backend) ChangesForAddressBook(ctx context.Context, addressBookID, syncToken string, limit int) (*dav.Changes, error) {
	b.logger.Debug("carddav.ChangesForAddressBook", "addressBookId", addressBookID, "syncToken", syncToken)

	changes, err := b.api.GetCardsChanges(ctx, b.session.CardDAVConfig(), addressBookID, syncToken, limit)
	if err != nil {
		var apiErr *rest.APIError
		if errors.As(err, &apiErr) && apiErr.IsGone() {
			b.logger.Debug("carddav.ChangesForAddressBook: sync token expired", "syncToken", syncToken)
			return nil, nil
		}
		b.logger.Error("carddav.ChangesForAddressBook", logger.Err(err))
		return nil, err
	}

	return dav.ChangesFromFeed(changes), nil
}

func toCard(item *rest.Card, fillData bool) dav.Object {
	obj := dav.Object{
		UID:          item.UID,
		Href:         item.Href,
		LastModified: time.Unix(item.LastModified, 0).UTC(),
		ETag:         dav.QuoteETag(item.ETag),
		Size:         item.Size,
	}
	if fillData {
		obj.Data = item.Vcard
	}
	return obj
}
