package rest

// Wire models of the REST backend, field names as the backend emits them.

// PrincipalInfo -.
type PrincipalInfo struct {
	ProfileUsername string `json:"profileUsername"`
	DisplayName     string `json:"displayName"`
	EmailAddress    string `json:"emailAddress"`
}

// Calendar -.
type Calendar struct {
	UID         string `json:"uid"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
	Color       string `json:"color"`
	// SyncToken is empty when the collection has no change history yet.
	SyncToken string `json:"syncToken"`
	AclFol    string `json:"aclFol"`
	AclEle    string `json:"aclEle"`
}

// CalendarNew -.
type CalendarNew struct {
	DisplayName string `json:"displayName"`
	Description string `json:"description,omitempty"`
}

// CalendarUpdate carries only the mutated fields; UpdatedFields names them
// so the backend can distinguish "clear" from "untouched".
type CalendarUpdate struct {
	DisplayName   string   `json:"displayName,omitempty"`
	Description   string   `json:"description,omitempty"`
	UpdatedFields []string `json:"updatedFields"`
}

// CalObject is one calendar object. The backend fills Icalendar on both
// collection listings and targeted fetches.
type CalObject struct {
	UID          string `json:"uid"`
	Href         string `json:"href"`
	LastModified int64  `json:"lastModified"`
	ETag         string `json:"etag"`
	Size         int64  `json:"size"`
	Icalendar    string `json:"icalendar,omitempty"`
}

// CalObjectNew -.
type CalObjectNew struct {
	Href      string `json:"href"`
	Icalendar string `json:"icalendar"`
}

// ObjectChanged -.
type ObjectChanged struct {
	Href string `json:"href"`
}

// ObjectsChanges is the change feed, shared by the calendars and
// addressbooks services.
type ObjectsChanges struct {
	SyncToken string          `json:"syncToken"`
	Inserted  []ObjectChanged `json:"inserted"`
	Updated   []ObjectChanged `json:"updated"`
	Deleted   []ObjectChanged `json:"deleted"`
}

// AddressBook -.
type AddressBook struct {
	UID           string `json:"uid"`
	DisplayName   string `json:"displayName"`
	Description   string `json:"description"`
	OwnerUsername string `json:"ownerUsername"`
	SyncToken     string `json:"syncToken"`
	AclFol        string `json:"aclFol"`
	AclEle        string `json:"aclEle"`
}

// AddressBookNew -.
type AddressBookNew struct {
	DisplayName string `json:"displayName"`
	Description string `json:"description,omitempty"`
}

// AddressBookUpdate -.
type AddressBookUpdate struct {
	DisplayName   string   `json:"displayName,omitempty"`
	Description   string   `json:"description,omitempty"`
	UpdatedFields []string `json:"updatedFields"`
}

// Card is one vCard. The backend fills Vcard on both collection listings
// and targeted fetches.
type Card struct {
	UID          string `json:"uid"`
	Href         string `json:"href"`
	LastModified int64  `json:"lastModified"`
	ETag         string `json:"etag"`
	Size         int64  `json:"size"`
	Vcard        string `json:"vcard,omitempty"`
}

// CardNew -.
type CardNew struct {
	Href  string `json:"href"`
	Vcard string `json:"vcard"`
}

