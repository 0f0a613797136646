// Package dav declares the storage-backend contracts driven by the DAV
// protocol engine, together with the record shapes those contracts exchange.
// The engine owns all XML and HTTP mechanics; implementations of these
// interfaces only translate between the engine's view of the world and the
// REST backend.
package dav

import (
	"context"
	"time"
)

// Property names in clark notation, as the protocol engine hands them over.
const (
	PropDisplayName            = "{DAV:}displayname"
	PropCalendarDescription    = "{urn:ietf:params:xml:ns:caldav}calendar-description"
	PropAddressBookDescription = "{urn:ietf:params:xml:ns:carddav}addressbook-description"
	PropEmailAddress           = "{http://sabredav.org/ns}email-address"
)

// Principal is a DAV identity record. URI is prefix-qualified
// (e.g. "principals/jdoe").
type Principal struct {
	URI         string
	DisplayName string
	// Email is included only when the backend supplies a non-empty address.
	Email string
}

// Calendar is one calendar collection as exposed to the engine. ID doubles
// as the URI segment of the collection.
type Calendar struct {
	ID           string
	PrincipalURI string
	DisplayName  string
	Description  string
	Color        string
	// Order is a 0-based display-order hint, the collection's position in
	// the backend listing.
	Order int
	// CTag mirrors the raw backend sync token for legacy clients; it may be
	// empty. SyncToken is the DAV-facing property and is never empty: an
	// absent backend token is exposed as "0".
	CTag      string
	SyncToken string
	// SupportedComponents is fixed to VEVENT: the backend stores events only.
	SupportedComponents []string
	// ACLFolder and ACLElements are the backend's raw permission-flag
	// strings, decoded by the acl package. Opaque here.
	ACLFolder   string
	ACLElements string
}

// AddressBook is one address book collection as exposed to the engine.
type AddressBook struct {
	ID           string
	PrincipalURI string
	DisplayName  string
	Description  string
	CTag         string
	SyncToken    string
	ACLFolder    string
	ACLElements  string
}

// Object is a calendar object or a card. Data is empty for records coming
// out of a collection listing and always present on a single-object fetch.
type Object struct {
	UID          string
	Href         string
	LastModified time.Time
	// ETag is quoted per WebDAV convention, exactly one pair of double
	// quotes around the backend token.
	ETag string
	Size int64
	Data string
}

// HasData reports whether the payload was fetched.
func (o *Object) HasData() bool { return o.Data != "" }

// Changes is the result of an incremental sync. The same href never appears
// in more than one of the three lists.
type Changes struct {
	SyncToken string
	Added     []string
	Modified  []string
	Deleted   []string
}

// PrincipalBackend is the engine's principal lookup contract.
type PrincipalBackend interface {
	// PrincipalsByPrefix returns the principals under a URI prefix. The
	// bridge knows a single principal: the authenticated user.
	PrincipalsByPrefix(ctx context.Context, prefix string) ([]Principal, error)
	// PrincipalByPath resolves one principal. It fails with
	// ErrNotAuthenticated when no user is authenticated yet; the engine
	// must turn that into a 401 with a Basic challenge.
	PrincipalByPath(ctx context.Context, path string) (*Principal, error)
	// UpdatePrincipal handles zero properties; the engine reports every
	// requested mutation as failed.
	UpdatePrincipal(ctx context.Context, path string, patch *PropPatch) error
	SearchPrincipals(ctx context.Context, prefix string, query map[string]string) ([]string, error)
	GroupMemberSet(ctx context.Context, path string) ([]string, error)
	GroupMembership(ctx context.Context, path string) ([]string, error)
	SetGroupMemberSet(ctx context.Context, path string, members []string) error
}

// CalendarBackend is the engine's calendar storage contract.
type CalendarBackend interface {
	CalendarsForUser(ctx context.Context, principalURI string) ([]Calendar, error)
	CreateCalendar(ctx context.Context, principalURI, uri string, props map[string]string) (string, error)
	UpdateCalendar(ctx context.Context, calendarID string, patch *PropPatch) error
	DeleteCalendar(ctx context.Context, calendarID string) error

	CalendarObjects(ctx context.Context, calendarID string) ([]Object, error)
	CalendarObject(ctx context.Context, calendarID, href string) (*Object, error)
	MultipleCalendarObjects(ctx context.Context, calendarID string, hrefs []string) ([]Object, error)
	CreateCalendarObject(ctx context.Context, calendarID, href, data string) (etag string, err error)
	UpdateCalendarObject(ctx context.Context, calendarID, href, data string) (etag string, err error)
	DeleteCalendarObject(ctx context.Context, calendarID, href string) error

	// CalendarQuery fails with ErrNotImplemented; callers fall back to
	// fetch-all-then-filter.
	CalendarQuery(ctx context.Context, calendarID string, filters any) ([]string, error)
	// CalendarObjectByUID fails with ErrNotImplemented; the backend exposes
	// no cross-collection UID index.
	CalendarObjectByUID(ctx context.Context, principalURI, uid string) (string, error)

	// ChangesForCalendar returns (nil, nil) when the backend reports the
	// token as expired or unknown: the client must resync from scratch.
	ChangesForCalendar(ctx context.Context, calendarID, syncToken string, limit int) (*Changes, error)
}

// AddressBookBackend is the engine's contacts storage contract. CardDAV has
// no query-by-filter or UID-lookup reports, hence no such methods here.
type AddressBookBackend interface {
	AddressBooksForUser(ctx context.Context, principalURI string) ([]AddressBook, error)
	CreateAddressBook(ctx context.Context, principalURI, uri string, props map[string]string) (string, error)
	UpdateAddressBook(ctx context.Context, addressBookID string, patch *PropPatch) error
	DeleteAddressBook(ctx context.Context, addressBookID string) error

	Cards(ctx context.Context, addressBookID string) ([]Object, error)
	Card(ctx context.Context, addressBookID, href string) (*Object, error)
	MultipleCards(ctx context.Context, addressBookID string, hrefs []string) ([]Object, error)
	CreateCard(ctx context.Context, addressBookID, href, data string) (etag string, err error)
	UpdateCard(ctx context.Context, addressBookID, href, data string) (etag string, err error)
	DeleteCard(ctx context.Context, addressBookID, href string) error

	ChangesForAddressBook(ctx context.Context, addressBookID, syncToken string, limit int) (*Changes, error)
}

// AuthBackend is the engine's credential validation hook.
type AuthBackend interface {
	ValidateUserPass(ctx context.Context, username, password string) bool
}
