package dav

import (
	"strings"

	"github.com/averich/dav-bridge/internal/rest"
)

// EpochSyncToken is the DAV-facing sync token of a collection with no
// change history yet. The raw backend token stays empty in that case and is
// passed back to the backend as-is.
const EpochSyncToken = "0"

// QuoteETag wraps a bare backend etag in one pair of double quotes, per
// WebDAV convention. Already-quoted input is returned unchanged so listing
// and fetch paths can share it safely.
func QuoteETag(etag string) string {
	if etag == "" {
		return ""
	}
	if strings.HasPrefix(etag, `"`) && strings.HasSuffix(etag, `"`) && len(etag) >= 2 {
		return etag
	}
	return `"` + etag + `"`
}

// UnquoteETag strips the WebDAV quoting for engine types that quote on
// their own.
func UnquoteETag(etag string) string {
	if strings.HasPrefix(etag, `"`) && strings.HasSuffix(etag, `"`) && len(etag) >= 2 {
		return etag[1 : len(etag)-1]
	}
	return etag
}

// NormalizeSyncToken maps an absent backend token to EpochSyncToken. The
// engine treats an empty sync-token property as "sync unsupported", so the
// exposed value is never empty.
func NormalizeSyncToken(raw string) string {
	if raw == "" {
		return EpochSyncToken
	}
	return raw
}

// ChunkHrefs splits hrefs into runs of at most size, preserving order.
// Bounds the size of a single backend multiget request.
func ChunkHrefs(hrefs []string, size int) [][]string {
	if len(hrefs) == 0 {
		return nil
	}
	chunks := make([][]string, 0, (len(hrefs)+size-1)/size)
	for size < len(hrefs) {
		chunks = append(chunks, hrefs[:size:size])
		hrefs = hrefs[size:]
	}
	return append(chunks, hrefs)
}

// ChangesFromFeed maps a backend change feed onto a Changes record. The
// feed's sync token is carried through raw; callers normalize it when a
// DAV-facing token is needed.
func ChangesFromFeed(feed *rest.ObjectsChanges) *Changes {
	changes := &Changes{SyncToken: feed.SyncToken}
	for _, c := range feed.Inserted {
		changes.Added = append(changes.Added, c.Href)
	}
	for _, c := range feed.Updated {
		changes.Modified = append(changes.Modified, c.Href)
	}
	for _, c := range feed.Deleted {
		changes.Deleted = append(changes.Deleted, c.Href)
	}
	return changes
}
