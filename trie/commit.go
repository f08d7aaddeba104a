package trie

import (
	"fmt"

	"github.com/iotaledger/merkletrie/codec"
	"github.com/iotaledger/merkletrie/nibble"
)

// Commit drains the death row, then flushes any arena-resident ("New")
// subtree hanging off the root in a single post-order pass: each New
// child is recursively encoded, inserted into the backing store (or
// inlined, if its encoding is smaller than the hasher's output width), and
// replaced by a hash (or inline token) reference in its parent's bytes.
// The external root-digest cell, if one was supplied, is updated in step.
func (t *Trie) Commit() error {
	for _, e := range t.deathRow {
		t.db.Remove(e.hash, e.prefix)
	}
	t.deathRow = make(map[string]deathRowEntry)
	t.hashCount = 0

	if !t.root.isArena() {
		if t.rootCell != nil {
			*t.rootCell = t.root.hash
		}
		return nil
	}

	s := t.arena.destroy(t.root.idx)
	if s.state == stateCached {
		if t.rootCell != nil {
			*t.rootCell = s.hash
		}
		newIdx := t.arena.alloc(&slot{node: s.node, state: stateCached, hash: s.hash})
		t.root = byArena(newIdx)
		return nil
	}

	encoded, err := t.encodeNode(s.node, nibble.EmptyPrefix)
	if err != nil {
		return err
	}
	hash := t.db.Insert(nibble.EmptyPrefix, encoded)
	t.hashCount++
	if t.rootCell != nil {
		*t.rootCell = hash
	}
	t.root = byHash(hash)
	return nil
}

// encodeNode is into_encoded: it turns a node held in memory into its byte
// record, resolving each outgoing child via commitChild.
func (t *Trie) encodeNode(n Node, prefix nibble.Prefix) ([]byte, error) {
	switch n := n.(type) {
	case Empty:
		return codec.EmptyNode(), nil
	case *Leaf:
		return codec.LeafNode(n.Partial, n.Value), nil
	case *Extension:
		ref, err := t.commitChild(n.Child, nibble.Combine(prefix, n.Partial))
		if err != nil {
			return nil, err
		}
		return codec.ExtNode(n.Partial, ref), nil
	case *Branch:
		var refs [16]*codec.ChildRef
		for i, c := range n.Children {
			if c == nil {
				continue
			}
			ref, err := t.commitChild(*c, nibble.Combine(prefix, nibble.Slice{byte(i)}))
			if err != nil {
				return nil, err
			}
			refs[i] = &ref
		}
		return codec.BranchNode(refs, n.Value), nil
	default:
		return nil, fmt.Errorf("trie: encodeNode: unknown node type %T", n)
	}
}

// commitChild resolves one outgoing handle into a reference usable inside
// the parent's encoded bytes: a hash reference for anything already
// resident in the store, or for a New node whose own encoding is at least
// the hasher's output width; an inline token (the encoding embedded
// verbatim) for a New node smaller than that.
func (t *Trie) commitChild(h Handle, prefix nibble.Prefix) (codec.ChildRef, error) {
	if !h.isArena() {
		return codec.ChildRef{Hash: h.hash}, nil
	}
	s := t.arena.destroy(h.idx)
	if s.state == stateCached {
		return codec.ChildRef{Hash: s.hash}, nil
	}

	encoded, err := t.encodeNode(s.node, prefix)
	if err != nil {
		return codec.ChildRef{}, err
	}
	if len(encoded) >= t.hasher.Length() {
		hash := t.db.Insert(prefix, encoded)
		t.hashCount++
		return codec.ChildRef{Hash: hash}, nil
	}
	return codec.ChildRef{Inline: encoded}, nil
}
