package topology

import (
	"cmp"
	"slices"

	"github.com/arloliu/tokenaware/types"
)

// ringEntry is one token and the node that owns it.
type ringEntry struct {
	token Token
	owner types.NodeID
}

// Ring is the sorted token ring of a cluster. A token is owned by the node
// holding the smallest ring token greater than or equal to it, wrapping
// around after the largest.
//
// A Ring is immutable once built.
type Ring struct {
	entries []ringEntry
}

// NewRing builds a ring from per-node tokens. When two nodes claim the same
// token the smaller node ID wins, so the result does not depend on map order.
//
// Parameters:
//   - tokens: Tokens owned by each node
//
// Returns:
//   - *Ring: The sorted ring
func NewRing(tokens map[types.NodeID][]Token) *Ring {
	var entries []ringEntry
	for id, owned := range tokens {
		for _, t := range owned {
			entries = append(entries, ringEntry{token: t, owner: id})
		}
	}

	slices.SortFunc(entries, func(a, b ringEntry) int {
		if c := cmp.Compare(a.token, b.token); c != 0 {
			return c
		}
		return cmp.Compare(a.owner, b.owner)
	})
	entries = slices.CompactFunc(entries, func(a, b ringEntry) bool {
		return a.token == b.token
	})

	return &Ring{entries: entries}
}

// Len returns the number of tokens on the ring.
func (r *Ring) Len() int {
	if r == nil {
		return 0
	}

	return len(r.entries)
}

// Owner returns the primary owner of token.
func (r *Ring) Owner(token Token) (types.NodeID, bool) {
	if r.Len() == 0 {
		return "", false
	}

	return r.entries[r.search(token)].owner, true
}

// search returns the index of the first entry whose token is >= token,
// wrapping to 0.
func (r *Ring) search(token Token) int {
	i, _ := slices.BinarySearchFunc(r.entries, token, func(e ringEntry, t Token) int {
		return cmp.Compare(e.token, t)
	})
	if i == len(r.entries) {
		return 0
	}

	return i
}

// walk calls fn for every ring entry starting at index start, in ring order,
// until fn returns false.
func (r *Ring) walk(start int, fn func(owner types.NodeID) bool) {
	n := len(r.entries)
	for i := range n {
		if !fn(r.entries[(start+i)%n].owner) {
			return
		}
	}
}
