package carddav

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
	"github.com/ceres919/go-webdav/carddav"
	"github.com/emersion/go-vcard"

	"github.com/averich/dav-bridge/internal/acl"
	"github.com/averich/dav-bridge/internal/dav"
	"github.com/averich/dav-bridge/pkg/logger"
)

// Engine adapts the per-request Backend to the protocol engine's address
// book interface. Mirrors the calendar engine: one long-lived instance,
// request state in the context.
type Engine struct {
	webdav.UserPrincipalBackend
	prefix string
	logger *logger.Logger
}

// NewEngine -.
func NewEngine(upBackend webdav.UserPrincipalBackend, prefix string, l *logger.Logger) (carddav.Backend, error) {
	return &Engine{
		UserPrincipalBackend: upBackend,
		prefix:               prefix,
		logger:               l,
	}, nil
}

func (e *Engine) AddressBookHomeSetPath(ctx context.Context) (string, error) {
	upPath, err := e.CurrentUserPrincipal(ctx)
	if err != nil {
		return "", err
	}
	return path.Join(upPath, e.prefix) + "/", nil
}

func (e *Engine) CreateDefaultAddressBook(ctx context.Context) (*carddav.AddressBook, error) {
	b, err := backendFromContext(ctx)
	if err != nil {
		return nil, err
	}
	upPath, err := e.CurrentUserPrincipal(ctx)
	if err != nil {
		return nil, err
	}
	homeSetPath, err := e.AddressBookHomeSetPath(ctx)
	if err != nil {
		return nil, err
	}

	uid, err := b.CreateAddressBook(ctx, upPath, "contacts", map[string]string{
		dav.PropDisplayName:            "Contacts",
		dav.PropAddressBookDescription: "Default address book",
	})
	if err != nil {
		return nil, err
	}
	return &carddav.AddressBook{
		Path:        path.Join(homeSetPath, uid) + "/",
		Name:        "Contacts",
		Description: "Default address book",
	}, nil
}

func (e *Engine) ListAddressBooks(ctx context.Context) ([]carddav.AddressBook, error) {
	b, err := backendFromContext(ctx)
	if err != nil {
		return nil, err
	}
	homeSetPath, err := e.AddressBookHomeSetPath(ctx)
	if err != nil {
		return nil, err
	}
	upPath, err := e.CurrentUserPrincipal(ctx)
	if err != nil {
		return nil, err
	}

	books, err := b.AddressBooksForUser(ctx, upPath)
	if err != nil {
		return nil, err
	}

	if len(books) == 0 {
		defaultAB, err := e.CreateDefaultAddressBook(ctx)
		if err != nil {
			return nil, err
		}
		return []carddav.AddressBook{*defaultAB}, nil
	}

	out := make([]carddav.AddressBook, 0, len(books))
	for _, book := range books {
		out = append(out, toEngineAddressBook(homeSetPath, &book))
	}
	return out, nil
}

func (e *Engine) GetAddressBook(ctx context.Context, urlPath string) (*carddav.AddressBook, error) {
	book, homeSetPath, err := e.resolveAddressBook(ctx, path.Base(path.Clean(urlPath)))
	if err != nil {
		return nil, err
	}
	out := toEngineAddressBook(homeSetPath, book)
	return &out, nil
}

func (e *Engine) CreateAddressBook(ctx context.Context, addressBook *carddav.AddressBook) error {
	b, err := backendFromContext(ctx)
	if err != nil {
		return err
	}
	upPath, err := e.CurrentUserPrincipal(ctx)
	if err != nil {
		return err
	}

	props := map[string]string{
		dav.PropDisplayName: addressBook.Name,
	}
	if addressBook.Description != "" {
		props[dav.PropAddressBookDescription] = addressBook.Description
	}

	uid, err := b.CreateAddressBook(ctx, upPath, path.Base(path.Clean(addressBook.Path)), props)
	if err != nil {
		return err
	}

	homeSetPath, err := e.AddressBookHomeSetPath(ctx)
	if err != nil {
		return err
	}
	addressBook.Path = path.Join(homeSetPath, uid) + "/"
	return nil
}

func (e *Engine) DeleteAddressBook(ctx context.Context, urlPath string) error {
	b, err := backendFromContext(ctx)
	if err != nil {
		return err
	}
	return b.DeleteAddressBook(ctx, path.Base(path.Clean(urlPath)))
}

func (e *Engine) GetAddressObject(
	ctx context.Context,
	objPath string,
	req *carddav.AddressDataRequest,
) (*carddav.AddressObject, error) {
	b, err := backendFromContext(ctx)
	if err != nil {
		return nil, err
	}

	addressBookID, href := splitObjectPath(objPath)
	card, err := b.Card(ctx, addressBookID, href)
	if err != nil {
		if errors.Is(err, dav.ErrNotFound) {
			return nil, webdav.NewHTTPError(http.StatusNotFound, fmt.Errorf("address object for path: %s not found", objPath))
		}
		return nil, err
	}

	return toEngineCard(objPath, card)
}

func (e *Engine) ListAddressObjects(
	ctx context.Context,
	urlPath string,
	req *carddav.AddressDataRequest,
) ([]carddav.AddressObject, error) {
	b, err := backendFromContext(ctx)
	if err != nil {
		return nil, err
	}
	homeSetPath, err := e.AddressBookHomeSetPath(ctx)
	if err != nil {
		return nil, err
	}

	addressBookID := path.Base(path.Clean(urlPath))
	listing, err := b.Cards(ctx, addressBookID)
	if err != nil {
		return nil, err
	}
	if len(listing) == 0 {
		return nil, nil
	}

	hrefs := make([]string, 0, len(listing))
	for _, card := range listing {
		hrefs = append(hrefs, card.Href)
	}

	// The listing primed the card cache with payloads, so this multiget is
	// served locally.
	cards, err := b.MultipleCards(ctx, addressBookID, hrefs)
	if err != nil {
		return nil, err
	}

	out := make([]carddav.AddressObject, 0, len(cards))
	for i := range cards {
		objPath := path.Join(homeSetPath, addressBookID, cards[i].Href)
		eo, err := toEngineCard(objPath, &cards[i])
		if err != nil {
			e.logger.Error("carddav.ListAddressObjects: skipping card", "href", cards[i].Href, logger.Err(err))
			continue
		}
		out = append(out, *eo)
	}
	return out, nil
}

func (e *Engine) QueryAddressObjects(
	ctx context.Context,
	urlPath string,
	query *carddav.AddressBookQuery,
) ([]carddav.AddressObject, error) {
	// The backend has no card query surface; fetch the collection and
	// filter here.
	var req *carddav.AddressDataRequest
	if query != nil {
		req = &query.DataRequest
	}
	aos, err := e.ListAddressObjects(ctx, urlPath, req)
	if err != nil {
		return nil, err
	}
	return carddav.Filter(query, aos)
}

func (e *Engine) PutAddressObject(
	ctx context.Context,
	objPath string,
	card vcard.Card,
	opts *carddav.PutAddressObjectOptions,
) (*carddav.AddressObject, error) {
	b, err := backendFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	f := bufio.NewWriter(&buf)
	if err := vcard.NewEncoder(f).Encode(card); err != nil {
		return nil, err
	}
	if err := f.Flush(); err != nil {
		return nil, err
	}

	addressBookID, href := splitObjectPath(objPath)

	_, err = b.Card(ctx, addressBookID, href)
	switch {
	case errors.Is(err, dav.ErrNotFound):
		_, err = b.CreateCard(ctx, addressBookID, href, buf.String())
	case err == nil:
		_, err = b.UpdateCard(ctx, addressBookID, href, buf.String())
	}
	if err != nil {
		return nil, err
	}

	stored, err := b.Card(ctx, addressBookID, href)
	if err != nil {
		return nil, err
	}
	return &carddav.AddressObject{
		Path:          objPath,
		ModTime:       stored.LastModified,
		ContentLength: stored.Size,
		ETag:          dav.UnquoteETag(stored.ETag),
		Card:          card,
	}, nil
}

func (e *Engine) DeleteAddressObject(ctx context.Context, objPath string) error {
	b, err := backendFromContext(ctx)
	if err != nil {
		return err
	}
	addressBookID, href := splitObjectPath(objPath)
	return b.DeleteCard(ctx, addressBookID, href)
}

// GetPrivileges reports the privileges on the address book home set.
func (e *Engine) GetPrivileges(ctx context.Context) []string {
	return []string{"read", "bind", "unbind", "read-acl", "read-current-user-privilege-set"}
}

// GetAddressBookPrivileges derives the per-collection privileges from the
// backend permission flags. Address books have no free-busy grant.
func (e *Engine) GetAddressBookPrivileges(ctx context.Context, ab *carddav.AddressBook) []string {
	stored, _, err := e.resolveAddressBook(ctx, path.Base(path.Clean(ab.Path)))
	if err != nil {
		e.logger.Error("carddav.GetAddressBookPrivileges", logger.Err(err))
		return []string{"read"}
	}

	upPath, err := e.CurrentUserPrincipal(ctx)
	if err != nil {
		return []string{"read"}
	}
	return privilegeNames(acl.Collection(upPath, stored.ACLFolder, stored.ACLElements, false))
}

func (e *Engine) resolveAddressBook(ctx context.Context, addressBookID string) (*dav.AddressBook, string, error) {
	b, err := backendFromContext(ctx)
	if err != nil {
		return nil, "", err
	}
	homeSetPath, err := e.AddressBookHomeSetPath(ctx)
	if err != nil {
		return nil, "", err
	}
	upPath, err := e.CurrentUserPrincipal(ctx)
	if err != nil {
		return nil, "", err
	}

	books, err := b.AddressBooksForUser(ctx, upPath)
	if err != nil {
		return nil, "", err
	}
	for i := range books {
		if books[i].ID == addressBookID {
			return &books[i], homeSetPath, nil
		}
	}
	return nil, "", webdav.NewHTTPError(http.StatusNotFound, fmt.Errorf("addressbook %s not found", addressBookID))
}

func backendFromContext(ctx context.Context) (*Backend, error) {
	b, ok := FromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("no addressbook backend in request context")
	}
	return b, nil
}

func splitObjectPath(objPath string) (addressBookID, href string) {
	return path.Base(path.Dir(objPath)), path.Base(objPath)
}

func toEngineAddressBook(homeSetPath string, book *dav.AddressBook) carddav.AddressBook {
	return carddav.AddressBook{
		Path:        path.Join(homeSetPath, book.ID) + "/",
		Name:        book.DisplayName,
		Description: book.Description,
	}
}

func toEngineCard(objPath string, card *dav.Object) (*carddav.AddressObject, error) {
	c, err := vcard.NewDecoder(strings.NewReader(card.Data)).Decode()
	if err != nil {
		return nil, fmt.Errorf("decode vcard for %s: %w", objPath, err)
	}
	return &carddav.AddressObject{
		Path:          objPath,
		ModTime:       card.LastModified,
		ContentLength: card.Size,
		ETag:          dav.UnquoteETag(card.ETag),
		Card:          c,
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
