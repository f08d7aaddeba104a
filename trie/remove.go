package trie

import (
	"github.com/iotaledger/merkletrie/nibble"
)

// removeOutcome is the deletion inspector's verdict: Delete removes the
// slot entirely (Node is unused in that case); otherwise Node/changed carry
// the same Replace/Restore meaning as insertOutcome.
type removeOutcome struct {
	node    Node
	deleted bool
	changed bool
}

// Remove deletes key, returning its previous value if present.
func (t *Trie) Remove(key []byte) ([]byte, bool, error) {
	newRoot, _, old, hadOld, err := t.removeAt(t.root, nibble.FromBytes(key), nibble.EmptyPrefix)
	if err != nil {
		return nil, false, err
	}
	if newRoot == nil {
		t.root = byHash(hashedNullNode(t.hasher))
	} else {
		t.root = *newRoot
	}
	return old, hadOld, nil
}

// removeAt mirrors insertAt's demand-load/destroy/reinstate discipline, but
// the inspector may report Delete, in which case the caller gets back a nil
// handle and must splice the gap out of its own structure (a Branch slot
// emptied, or the sole child of an Extension gone).
func (t *Trie) removeAt(h Handle, cur nibble.Slice, prefix nibble.Prefix) (*Handle, bool, []byte, bool, error) {
	idx, err := t.resolve(h, prefix)
	if err != nil {
		return nil, false, nil, false, err
	}
	s := t.arena.destroy(idx)

	var (
		outcome removeOutcome
		old     []byte
		hadOld  bool
	)
	switch n := s.node.(type) {
	case Empty:
		outcome = removeOutcome{deleted: true}
	case *Leaf:
		outcome, old, hadOld = t.removeFromLeaf(n, cur)
	case *Branch:
		outcome, old, hadOld, err = t.removeFromBranch(n, cur, prefix)
	case *Extension:
		outcome, old, hadOld, err = t.removeFromExtension(n, cur, prefix)
	}
	if err != nil {
		return nil, false, nil, false, err
	}

	if outcome.deleted {
		if s.state == stateCached {
			t.scheduleDeletion(s.hash, prefix)
		}
		return nil, true, old, hadOld, nil
	}

	if !outcome.changed {
		var newIdx int
		if s.state == stateCached {
			newIdx = t.arena.alloc(&slot{node: outcome.node, state: stateCached, hash: s.hash})
		} else {
			newIdx = t.arena.alloc(&slot{node: outcome.node, state: stateNew})
		}
		h2 := byArena(newIdx)
		return &h2, false, old, hadOld, nil
	}

	if s.state == stateCached {
		t.scheduleDeletion(s.hash, prefix)
	}
	newIdx := t.arena.alloc(&slot{node: outcome.node, state: stateNew})
	h2 := byArena(newIdx)
	return &h2, true, old, hadOld, nil
}

func (t *Trie) removeFromLeaf(n *Leaf, cur nibble.Slice) (removeOutcome, []byte, bool) {
	if n.Partial.Equal(cur) {
		return removeOutcome{deleted: true}, n.Value, true
	}
	return removeOutcome{node: n, changed: false}, nil, false
}

func (t *Trie) removeFromBranch(n *Branch, cur nibble.Slice, prefix nibble.Prefix) (removeOutcome, []byte, bool, error) {
	if len(cur) == 0 {
		if n.Value == nil {
			return removeOutcome{node: n, changed: false}, nil, false, nil
		}
		old := n.Value
		fixed, err := t.fix(&Branch{Children: n.Children, Value: nil}, prefix)
		if err != nil {
			return removeOutcome{}, nil, false, err
		}
		return removeOutcome{node: fixed, changed: true}, old, true, nil
	}

	i := cur[0]
	rest := cur[1:]
	if n.Children[i] == nil {
		return removeOutcome{node: n, changed: false}, nil, false, nil
	}
	childPrefix := nibble.Combine(prefix, nibble.Slice{i})
	newChild, changed, old, hadOld, err := t.removeAt(*n.Children[i], rest, childPrefix)
	if err != nil {
		return removeOutcome{}, nil, false, err
	}
	if newChild == nil {
		n.Children[i] = nil
		fixed, err := t.fix(n, prefix)
		if err != nil {
			return removeOutcome{}, nil, false, err
		}
		return removeOutcome{node: fixed, changed: true}, old, hadOld, nil
	}
	n.Children[i] = newChild
	return removeOutcome{node: n, changed: changed}, old, hadOld, nil
}

func (t *Trie) removeFromExtension(n *Extension, cur nibble.Slice, prefix nibble.Prefix) (removeOutcome, []byte, bool, error) {
	cp := cur.CommonPrefix(n.Partial)
	if cp < len(n.Partial) {
		return removeOutcome{node: n, changed: false}, nil, false, nil
	}

	childPrefix := nibble.Combine(prefix, n.Partial)
	newChild, changed, old, hadOld, err := t.removeAt(n.Child, cur[cp:], childPrefix)
	if err != nil {
		return removeOutcome{}, nil, false, err
	}
	if newChild == nil {
		return removeOutcome{deleted: true}, old, hadOld, nil
	}
	if !changed {
		return removeOutcome{node: &Extension{Partial: n.Partial, Child: *newChild}, changed: false}, old, hadOld, nil
	}
	fixed, err := t.fix(&Extension{Partial: n.Partial, Child: *newChild}, prefix)
	if err != nil {
		return removeOutcome{}, nil, false, err
	}
	return removeOutcome{node: fixed, changed: true}, old, hadOld, nil
}
