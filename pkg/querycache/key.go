package querycache

import "strings"

// Key identifies a cache entry. Keys are ordered tuples and form a tree, so
// ["posts"] is a prefix of ["posts", "guitar"].
type Key []string

// NewKey builds a key from parts.
func NewKey(parts ...string) Key {
	return Key(parts)
}

// HasPrefix reports whether p is a prefix of k (or equal to it).
func (k Key) HasPrefix(p Key) bool {
	if len(p) > len(k) {
		return false
	}
	for i := range p {
		if k[i] != p[i] {
			return false
		}
	}
	return true
}

// Equal reports whether both keys have the same parts.
func (k Key) Equal(o Key) bool {
	return len(k) == len(o) && k.HasPrefix(o)
}

// Clone returns a copy that does not share the backing array.
func (k Key) Clone() Key {
	return append(Key(nil), k...)
}

func (k Key) String() string {
	return "[" + strings.Join(k, ", ") + "]"
}

// id is the map index for k. The unit separator never appears in ids or slugs.
func (k Key) id() string {
	return strings.Join(k, "\x1f")
}
