// Package acl decodes the backend's permission-flag strings into DAV access
// control entries. Two strings arrive per collection: the folder flags and
// the element flags. ACLs are derived on every call, never stored and never
// client-settable.
//
// Folder flags: 'r' read, 'u' update folder properties, 'd' delete.
// Element flags: 'c' create child, 'u' update child content, 'd' delete child.
//
// Child read access is gated by the folder 'r' flag while child write access
// is gated by the element 'u' flag. The asymmetry is intentional and matches
// the backend's permission model; do not symmetrize it.
package acl

import (
	"errors"
	"strings"
)

// Privileges in clark notation.
const (
	PrivRead            = "{DAV:}read"
	PrivWriteProperties = "{DAV:}write-properties"
	PrivWriteContent    = "{DAV:}write-content"
	PrivBind            = "{DAV:}bind"
	PrivUnbind          = "{DAV:}unbind"
	PrivReadFreeBusy    = "{urn:ietf:params:xml:ns:caldav}read-free-busy"
)

// PrincipalAuthenticated is the generic authenticated-principal class.
const PrincipalAuthenticated = "{DAV:}authenticated"

// ErrReadOnly rejects ACL mutation: ACLs are derived from backend flags.
var ErrReadOnly = errors.New("acl: changing ACL is not supported")

// ACE is one protected privilege grant.
type ACE struct {
	Privilege string
	Principal string
	Protected bool
}

const (
	flagRead   = "r"
	flagCreate = "c"
	flagUpdate = "u"
	flagDelete = "d"
)

// Collection derives the ACL of a calendar or address book collection.
// freeBusy adds the calendar-only read-free-busy grant for the
// authenticated class; CardDAV has no equivalent privilege.
func Collection(owner, folderACL, elementsACL string, freeBusy bool) []ACE {
	acl := []ACE{
		{Privilege: PrivRead, Principal: owner, Protected: true},
	}
	if has(folderACL, flagUpdate) {
		acl = append(acl,
			ACE{Privilege: PrivWriteProperties, Principal: owner, Protected: true},
			ACE{Privilege: PrivWriteContent, Principal: owner, Protected: true},
		)
	}
	if has(elementsACL, flagCreate) {
		acl = append(acl, ACE{Privilege: PrivBind, Principal: owner, Protected: true})
	}
	if has(elementsACL, flagDelete) {
		acl = append(acl, ACE{Privilege: PrivUnbind, Principal: owner, Protected: true})
	}
	if freeBusy {
		acl = append(acl, ACE{Privilege: PrivReadFreeBusy, Principal: PrincipalAuthenticated, Protected: true})
	}
	return acl
}

// Children derives the ACL applied to every object inside the collection.
// The protocol engine exposes privilege hooks per collection only, so no
// serving path consumes these ACEs yet; keep the derivation in step with
// Collection until a per-object hook lands.
func Children(owner, folderACL, elementsACL string) []ACE {
	var acl []ACE
	if has(folderACL, flagRead) {
		acl = append(acl, ACE{Privilege: PrivRead, Principal: owner, Protected: true})
	}
	if has(elementsACL, flagUpdate) {
		acl = append(acl,
			ACE{Privilege: PrivWriteProperties, Principal: owner, Protected: true},
			ACE{Privilege: PrivWriteContent, Principal: owner, Protected: true},
		)
	}
	return acl
}

// Supported lists every privilege the derivation can grant.
func Supported() []string {
	return []string{
		PrivRead,
		PrivWriteProperties,
		PrivWriteContent,
		PrivBind,
		PrivUnbind,
		PrivReadFreeBusy,
	}
}

// SetACL always fails: the backend flags are the only source of truth.
func SetACL([]ACE) error {
	return ErrReadOnly
}

func has(flags, flag string) bool {
	return strings.Contains(flags, flag)
}
