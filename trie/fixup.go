package trie

import (
	"github.com/iotaledger/merkletrie/nibble"
)

// fix normalizes a possibly-invalid node back to canonical form after a
// deletion: a Branch left with fewer than two live entries, or an
// Extension whose immediate child turned out to be collapsible.
func (t *Trie) fix(n Node, prefix nibble.Prefix) (Node, error) {
	switch n := n.(type) {
	case *Branch:
		return t.fixBranch(n, prefix)
	case *Extension:
		return t.fixExtension(n, prefix)
	default:
		return n, nil
	}
}

func (t *Trie) fixBranch(n *Branch, prefix nibble.Prefix) (Node, error) {
	count := n.countEntries()
	switch {
	case count == 0:
		panic("trie: fix: branch has no value and no children")
	case count == 1 && n.Value != nil:
		return &Leaf{Partial: nibble.Slice{}, Value: n.Value}, nil
	case count == 1:
		idx, _ := n.soleChild()
		ext := &Extension{Partial: nibble.Slice{byte(idx)}, Child: *n.Children[idx]}
		return t.fix(ext, prefix)
	default:
		return n, nil
	}
}

func combinePartials(a, b nibble.Slice) nibble.Slice {
	out := make(nibble.Slice, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}

func (t *Trie) fixExtension(n *Extension, prefix nibble.Prefix) (Node, error) {
	childPrefix := nibble.Combine(prefix, n.Partial)
	idx, err := t.resolve(n.Child, childPrefix)
	if err != nil {
		return nil, err
	}
	s := t.arena.destroy(idx)

	switch c := s.node.(type) {
	case *Extension:
		if s.state == stateCached {
			t.scheduleDeletion(s.hash, childPrefix)
		}
		return t.fix(&Extension{Partial: combinePartials(n.Partial, c.Partial), Child: c.Child}, prefix)
	case *Leaf:
		if s.state == stateCached {
			t.scheduleDeletion(s.hash, childPrefix)
		}
		return &Leaf{Partial: combinePartials(n.Partial, c.Partial), Value: c.Value}, nil
	default:
		// Branch (or, defensively, Empty): not collapsible - re-slot and
		// keep the Extension as-is.
		var newIdx int
		if s.state == stateCached {
			newIdx = t.arena.alloc(&slot{node: c, state: stateCached, hash: s.hash})
		} else {
			newIdx = t.arena.alloc(&slot{node: c, state: stateNew})
		}
		return &Extension{Partial: n.Partial, Child: byArena(newIdx)}, nil
	}
}
