package trie

import (
	"github.com/iotaledger/merkletrie/nibble"
	"github.com/iotaledger/merkletrie/store"
)

// Handle is a reference to a child subtree: either a live slot in the
// session's arena, or a content hash not yet (or no longer) resident there.
// The zero value is not a valid Handle; use the constructors below.
type Handle struct {
	arena bool
	idx   int
	hash  store.Hash
}

// byArena wraps an arena slot index.
func byArena(idx int) Handle {
	return Handle{arena: true, idx: idx}
}

// byHash wraps a backing-store digest.
func byHash(h store.Hash) Handle {
	return Handle{hash: h}
}

func (h Handle) isArena() bool { return h.arena }

// Node is the algebraic node shape: Empty, Leaf, Extension, or Branch.
type Node interface {
	node()
}

// Empty is the unique null node.
type Empty struct{}

func (Empty) node() {}

// Leaf is a terminal node: partial is the nibble suffix to the implicit
// path, value is opaque caller bytes.
type Leaf struct {
	Partial nibble.Slice
	Value   []byte
}

func (*Leaf) node() {}

// Extension shares a prefix of at least one nibble leading to exactly one
// child, which must be a Branch once resolved.
type Extension struct {
	Partial nibble.Slice
	Child   Handle
}

func (*Extension) node() {}

// Branch has up to 16 nibble-indexed children and an optional terminal value.
type Branch struct {
	Children [16]*Handle
	Value    []byte
}

func (*Branch) node() {}

func (b *Branch) countEntries() int {
	n := 0
	if b.Value != nil {
		n++
	}
	for _, c := range b.Children {
		if c != nil {
			n++
		}
	}
	return n
}

func (b *Branch) soleChild() (int, bool) {
	idx, found := -1, 0
	for i, c := range b.Children {
		if c != nil {
			idx = i
			found++
		}
	}
	return idx, found == 1
}
