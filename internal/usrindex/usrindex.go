// Package usrindex interns USR strings into a compact 128-bit key during a
// single Worker's traversal of one translation unit. The traversal's
// symbol de-duplication cache keys on this rather than the raw USR string
// to keep the hot-path map comparison cheap; keys are compared by hash
// only, with no fallback comparison of the USR strings themselves.
package usrindex

import "github.com/cespare/xxhash/v2"

// Key is a 128-bit interned form of a USR string: two independently
// seeded 64-bit xxhash digests concatenated, keeping collision
// probability negligible for the symbol counts a single translation unit
// produces without paying for a cryptographic hash on every cursor.
type Key struct {
	lo uint64
	hi uint64
}

// loSeed and hiSeed just need to differ; their exact values carry no
// meaning beyond decorrelating the two digests.
const (
	loSeed uint64 = 0
	hiSeed uint64 = 0x9e3779b97f4a7c15
)

// Intern computes the Key for a USR string.
func Intern(usr string) Key {
	return Key{
		lo: xxhash.Sum64(append([]byte(usr), seedSuffix(loSeed)...)),
		hi: xxhash.Sum64(append([]byte(usr), seedSuffix(hiSeed)...)),
	}
}

// seedSuffix appends a fixed byte sequence derived from seed so the two
// digests are computed over different inputs without needing a
// seeded-hash constructor.
func seedSuffix(seed uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(seed >> (8 * i))
	}
	return b
}

// Cache is a single traversal's memoization table: USR -> whether a
// Symbol for that USR has already been emitted this pass, avoiding
// duplicate Symbol rows for a USR visited from multiple cursors (e.g. a
// function declared and then defined in the same translation unit).
type Cache struct {
	seen map[Key]struct{}
}

// NewCache creates an empty per-traversal cache.
func NewCache() *Cache {
	return &Cache{seen: make(map[Key]struct{}, 1024)}
}

// SeenOrMark reports whether usr was already marked seen, and marks it
// seen as a side effect. The Worker uses this to emit exactly one Symbol
// row per distinct USR per file even though a USR may be visited from
// several cursors.
func (c *Cache) SeenOrMark(usr string) bool {
	k := Intern(usr)
	if _, ok := c.seen[k]; ok {
		return true
	}
	c.seen[k] = struct{}{}
	return false
}
