// Package cache holds the per-request object cache of a storage adapter.
// It is populated wholesale by collection listings and consulted
// opportunistically by single-object fetches; a miss always means another
// backend round trip, never an error. The cache dies with the request.
package cache

// Store maps object hrefs to the last listing's records. Not safe for
// concurrent use: one request is handled by one goroutine.
type Store[V any] struct {
	items map[string]V
	seen  bool
}

// New -.
func New[V any]() *Store[V] {
	return &Store[V]{}
}

// ReplaceAll discards the previous contents and installs the given records.
// Listing operations are the only writer.
func (s *Store[V]) ReplaceAll(items map[string]V) {
	s.items = items
	s.seen = true
}

// Get -.
func (s *Store[V]) Get(href string) (V, bool) {
	v, ok := s.items[href]
	return v, ok
}

// Populated reports whether a listing has run during this request.
func (s *Store[V]) Populated() bool { return s.seen }

// Clear -.
func (s *Store[V]) Clear() {
	s.items = nil
	s.seen = false
}

// Len -.
func (s *Store[V]) Len() int { return len(s.items) }
