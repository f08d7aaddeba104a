package trie

import (
	"bytes"

	"github.com/iotaledger/merkletrie/nibble"
)

// insertOutcome is the inspector's verdict for one node: either the node is
// structurally unchanged (Restore, node returned as-is so the caller need
// not rehash it) or it was altered (Replace, node is the new shape).
type insertOutcome struct {
	node    Node
	changed bool
}

// Insert adds or updates key/value. It returns the previous value stored
// under key, if any. Inserting an empty value is equivalent to Remove, per
// the backing-layer convention that empty values represent absence.
func (t *Trie) Insert(key, value []byte) ([]byte, bool, error) {
	if len(value) == 0 {
		return t.Remove(key)
	}
	newRoot, _, old, hadOld, err := t.insertAt(t.root, nibble.FromBytes(key), value, nibble.EmptyPrefix)
	if err != nil {
		return nil, false, err
	}
	t.root = newRoot
	return old, hadOld, nil
}

// insertAt demand-loads handle h into the arena, destroys its slot, and
// dispatches to the per-variant inspector. The slot is then re-allocated:
// New if the inspector replaced the node, Cached-preserving (same hash) if
// it restored an unchanged Cached node, New otherwise. A Cached slot that
// gets replaced has its old (hash, prefix) scheduled for death-row removal.
func (t *Trie) insertAt(h Handle, cur nibble.Slice, value []byte, prefix nibble.Prefix) (Handle, bool, []byte, bool, error) {
	idx, err := t.resolve(h, prefix)
	if err != nil {
		return Handle{}, false, nil, false, err
	}
	s := t.arena.destroy(idx)

	var (
		outcome insertOutcome
		old     []byte
		hadOld  bool
	)
	switch n := s.node.(type) {
	case Empty:
		outcome = insertOutcome{node: &Leaf{Partial: cur.Clone(), Value: value}, changed: true}
	case *Branch:
		outcome, old, hadOld, err = t.insertIntoBranch(n, cur, value, prefix)
	case *Leaf:
		outcome, old, hadOld, err = t.insertIntoLeaf(n, cur, value, prefix)
	case *Extension:
		outcome, old, hadOld, err = t.insertIntoExtension(n, cur, value, prefix)
	}
	if err != nil {
		return Handle{}, false, nil, false, err
	}

	var newIdx int
	if outcome.changed {
		if s.state == stateCached {
			t.scheduleDeletion(s.hash, prefix)
		}
		newIdx = t.arena.alloc(&slot{node: outcome.node, state: stateNew})
	} else if s.state == stateCached {
		newIdx = t.arena.alloc(&slot{node: outcome.node, state: stateCached, hash: s.hash})
	} else {
		newIdx = t.arena.alloc(&slot{node: outcome.node, state: stateNew})
	}
	return byArena(newIdx), outcome.changed, old, hadOld, nil
}

func (t *Trie) insertIntoBranch(n *Branch, cur nibble.Slice, value []byte, prefix nibble.Prefix) (insertOutcome, []byte, bool, error) {
	if len(cur) == 0 {
		old := n.Value
		hadOld := old != nil
		if hadOld && bytes.Equal(old, value) {
			return insertOutcome{node: n, changed: false}, old, hadOld, nil
		}
		return insertOutcome{node: &Branch{Children: n.Children, Value: value}, changed: true}, old, hadOld, nil
	}

	i := cur[0]
	rest := cur[1:]
	childPrefix := nibble.Combine(prefix, nibble.Slice{i})
	if n.Children[i] != nil {
		newChild, changed, old, hadOld, err := t.insertAt(*n.Children[i], rest, value, childPrefix)
		if err != nil {
			return insertOutcome{}, nil, false, err
		}
		n.Children[i] = &newChild
		return insertOutcome{node: n, changed: changed}, old, hadOld, nil
	}

	leafIdx := t.arena.alloc(&slot{node: &Leaf{Partial: rest.Clone(), Value: value}, state: stateNew})
	h := byArena(leafIdx)
	n.Children[i] = &h
	return insertOutcome{node: n, changed: true}, nil, false, nil
}

func (t *Trie) insertIntoLeaf(n *Leaf, cur nibble.Slice, value []byte, prefix nibble.Prefix) (insertOutcome, []byte, bool, error) {
	cp := cur.CommonPrefix(n.Partial)

	switch {
	case cp == len(n.Partial) && cp == len(cur):
		old := n.Value
		if bytes.Equal(old, value) {
			return insertOutcome{node: n, changed: false}, old, true, nil
		}
		return insertOutcome{node: &Leaf{Partial: n.Partial, Value: value}, changed: true}, old, true, nil

	case cp == 0:
		branch := &Branch{}
		if len(n.Partial) == 0 {
			branch.Value = n.Value
		} else {
			idx := t.arena.alloc(&slot{node: &Leaf{Partial: n.Partial[1:].Clone(), Value: n.Value}, state: stateNew})
			h := byArena(idx)
			branch.Children[n.Partial[0]] = &h
		}
		outcome, old, hadOld, err := t.insertIntoBranch(branch, cur, value, prefix)
		if err != nil {
			return insertOutcome{}, nil, false, err
		}
		return insertOutcome{node: outcome.node, changed: true}, old, hadOld, nil

	case cp == len(n.Partial):
		branch := &Branch{Value: n.Value}
		outcome, old, hadOld, err := t.insertIntoBranch(branch, cur[cp:], value, nibble.Combine(prefix, n.Partial))
		if err != nil {
			return insertOutcome{}, nil, false, err
		}
		idx := t.arena.alloc(&slot{node: outcome.node, state: stateNew})
		ext := &Extension{Partial: n.Partial.Clone(), Child: byArena(idx)}
		return insertOutcome{node: ext, changed: true}, old, hadOld, nil

	default: // 0 < cp < len(existing)
		suffix := &Leaf{Partial: n.Partial[cp:].Clone(), Value: n.Value}
		outcome, old, hadOld, err := t.insertIntoLeaf(suffix, cur[cp:], value, nibble.Combine(prefix, n.Partial[:cp]))
		if err != nil {
			return insertOutcome{}, nil, false, err
		}
		idx := t.arena.alloc(&slot{node: outcome.node, state: stateNew})
		ext := &Extension{Partial: n.Partial[:cp].Clone(), Child: byArena(idx)}
		return insertOutcome{node: ext, changed: true}, old, hadOld, nil
	}
}

func (t *Trie) insertIntoExtension(n *Extension, cur nibble.Slice, value []byte, prefix nibble.Prefix) (insertOutcome, []byte, bool, error) {
	cp := cur.CommonPrefix(n.Partial)

	switch {
	case cp == 0:
		branch := &Branch{}
		if len(n.Partial) == 1 {
			branch.Children[n.Partial[0]] = &n.Child
		} else {
			idx := t.arena.alloc(&slot{node: &Extension{Partial: n.Partial[1:].Clone(), Child: n.Child}, state: stateNew})
			h := byArena(idx)
			branch.Children[n.Partial[0]] = &h
		}
		outcome, old, hadOld, err := t.insertIntoBranch(branch, cur, value, prefix)
		if err != nil {
			return insertOutcome{}, nil, false, err
		}
		return insertOutcome{node: outcome.node, changed: true}, old, hadOld, nil

	case cp == len(n.Partial):
		newChild, changed, old, hadOld, err := t.insertAt(n.Child, cur[cp:], value, nibble.Combine(prefix, n.Partial))
		if err != nil {
			return insertOutcome{}, nil, false, err
		}
		return insertOutcome{node: &Extension{Partial: n.Partial, Child: newChild}, changed: changed}, old, hadOld, nil

	default: // 0 < cp < len(existing)
		ext2 := &Extension{Partial: n.Partial[cp:].Clone(), Child: n.Child}
		outcome, old, hadOld, err := t.insertIntoExtension(ext2, cur[cp:], value, nibble.Combine(prefix, n.Partial[:cp]))
		if err != nil {
			return insertOutcome{}, nil, false, err
		}
		idx := t.arena.alloc(&slot{node: outcome.node, state: stateNew})
		wrap := &Extension{Partial: n.Partial[:cp].Clone(), Child: byArena(idx)}
		return insertOutcome{node: wrap, changed: true}, old, hadOld, nil
	}
}
