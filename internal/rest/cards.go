package rest

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

const serviceAddressBooks = "addressbooks"

// AddressBooksAPI talks to the contacts service: address books and cards.
type AddressBooksAPI struct {
	client *Client
}

// NewAddressBooksAPI -.
func NewAddressBooksAPI(client *Client) *AddressBooksAPI {
	return &AddressBooksAPI{client: client}
}

// GetAddressBooks lists the address books visible to the calling user.
func (a *AddressBooksAPI) GetAddressBooks(ctx context.Context, cfg Config) ([]AddressBook, error) {
	var items []AddressBook
	err := a.client.do(ctx, cfg, serviceAddressBooks, "getAddressBooks",
		http.MethodGet, "/addressbooks", nil, nil, &items)
	if err != nil {
		return nil, err
	}
	return items, nil
}

// AddAddressBook -.
func (a *AddressBooksAPI) AddAddressBook(ctx context.Context, cfg Config, item *AddressBookNew) (*AddressBook, error) {
	var created AddressBook
	err := a.client.do(ctx, cfg, serviceAddressBooks, "addAddressBook",
		http.MethodPost, "/addressbooks", nil, item, &created)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateAddressBook -.
func (a *AddressBooksAPI) UpdateAddressBook(ctx context.Context, cfg Config, addressBookUID string, item *AddressBookUpdate) error {
	return a.client.do(ctx, cfg, serviceAddressBooks, "updateAddressBook",
		http.MethodPut, "/addressbooks/"+url.PathEscape(addressBookUID), nil, item, nil)
}

// DeleteAddressBook -.
func (a *AddressBooksAPI) DeleteAddressBook(ctx context.Context, cfg Config, addressBookUID string) error {
	return a.client.do(ctx, cfg, serviceAddressBooks, "deleteAddressBook",
		http.MethodDelete, "/addressbooks/"+url.PathEscape(addressBookUID), nil, nil, nil)
}

// GetCards lists cards of one address book, payload included; scoped to
// exactly those cards when hrefs are given.
func (a *AddressBooksAPI) GetCards(ctx context.Context, cfg Config, addressBookUID string, hrefs []string) ([]Card, error) {
	query := url.Values{}
	for _, href := range hrefs {
		query.Add("href", href)
	}
	var items []Card
	err := a.client.do(ctx, cfg, serviceAddressBooks, "getCards",
		http.MethodGet, "/addressbooks/"+url.PathEscape(addressBookUID)+"/cards", query, nil, &items)
	if err != nil {
		return nil, err
	}
	return items, nil
}

// AddCard -.
func (a *AddressBooksAPI) AddCard(ctx context.Context, cfg Config, addressBookUID string, item *CardNew) error {
	return a.client.do(ctx, cfg, serviceAddressBooks, "addCard",
		http.MethodPost, "/addressbooks/"+url.PathEscape(addressBookUID)+"/cards", nil, item, nil)
}

// UpdateCard -.
func (a *AddressBooksAPI) UpdateCard(ctx context.Context, cfg Config, addressBookUID, href, vcardData string) error {
	return a.client.do(ctx, cfg, serviceAddressBooks, "updateCard",
		http.MethodPut, "/addressbooks/"+url.PathEscape(addressBookUID)+"/cards/"+url.PathEscape(href),
		nil, &CardNew{Href: href, Vcard: vcardData}, nil)
}

// DeleteCard -.
func (a *AddressBooksAPI) DeleteCard(ctx context.Context, cfg Config, addressBookUID, href string) error {
	return a.client.do(ctx, cfg, serviceAddressBooks, "deleteCard",
		http.MethodDelete, "/addressbooks/"+url.PathEscape(addressBookUID)+"/cards/"+url.PathEscape(href),
		nil, nil, nil)
}

// GetCardsChanges reports changes since syncToken; empty token means
// initial sync. The token goes out verbatim.
func (a *AddressBooksAPI) GetCardsChanges(ctx context.Context, cfg Config, addressBookUID, syncToken string, limit int) (*ObjectsChanges, error) {
	query := url.Values{}
	if syncToken != "" {
		query.Set("syncToken", syncToken)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var changes ObjectsChanges
	err := a.client.do(ctx, cfg, serviceAddressBooks, "getCardsChanges",
		http.MethodGet, "/addressbooks/"+url.PathEscape(addressBookUID)+"/changes", query, nil, &changes)
	if err != nil {
		return nil, err
	}
	return &changes, nil
}
