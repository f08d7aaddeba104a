package trie

import (
	"github.com/iotaledger/merkletrie/codec"
	"github.com/iotaledger/merkletrie/nibble"
	"github.com/iotaledger/merkletrie/store"
)

// Get looks up key, returning its value and true on a hit. It observes
// arena state but never mutates it: descending into a not-yet-cached hash
// handle falls through to a read-only walk of the backing store that never
// demand-loads into the arena.
func (t *Trie) Get(key []byte) ([]byte, bool, error) {
	return t.get(t.root, nibble.FromBytes(key), nibble.EmptyPrefix)
}

func (t *Trie) get(h Handle, cur nibble.Slice, prefix nibble.Prefix) ([]byte, bool, error) {
	if !h.isArena() {
		return t.lookupByHash(h.hash, cur, prefix)
	}
	switch n := t.arena.get(h.idx).node.(type) {
	case Empty:
		return nil, false, nil
	case *Leaf:
		if n.Partial.Equal(cur) {
			return n.Value, true, nil
		}
		return nil, false, nil
	case *Extension:
		cp := cur.CommonPrefix(n.Partial)
		if cp != len(n.Partial) {
			return nil, false, nil
		}
		return t.get(n.Child, cur[cp:], nibble.Combine(prefix, n.Partial))
	case *Branch:
		if len(cur) == 0 {
			if n.Value != nil {
				return n.Value, true, nil
			}
			return nil, false, nil
		}
		c := n.Children[cur[0]]
		if c == nil {
			return nil, false, nil
		}
		return t.get(*c, cur[1:], nibble.Combine(prefix, nibble.Slice{cur[0]}))
	default:
		return nil, false, nil
	}
}

// lookupByHash is the read-only lookup component: it descends into a fully
// committed subtree addressed by hash, fetching and decoding nodes on the
// fly without ever touching the session's arena.
func (t *Trie) lookupByHash(hash store.Hash, cur nibble.Slice, prefix nibble.Prefix) ([]byte, bool, error) {
	if hash.Equal(hashedNullNode(t.hasher)) {
		return nil, false, nil
	}
	raw, ok := t.db.Get(hash, prefix)
	if !ok {
		return nil, false, &IncompleteDatabaseError{Hash: hash}
	}
	return t.lookupEncoded(raw, cur, prefix)
}

// lookupEncoded continues the read-only walk from already-fetched node
// bytes, used both for the top of a by-hash subtree and for inline children
// that never got a store entry of their own.
func (t *Trie) lookupEncoded(raw []byte, cur nibble.Slice, prefix nibble.Prefix) ([]byte, bool, error) {
	dn, err := codec.Decode(raw)
	if err != nil {
		// A malformed node record resolves to Empty at this layer, the same
		// as decodeNode's demand-load path: a miss, not an aborted lookup.
		return nil, false, nil
	}
	switch dn.Kind {
	case codec.KindEmpty:
		return nil, false, nil
	case codec.KindLeaf:
		if dn.Partial.Equal(cur) {
			return dn.Value, true, nil
		}
		return nil, false, nil
	case codec.KindExtension:
		cp := cur.CommonPrefix(dn.Partial)
		if cp != len(dn.Partial) {
			return nil, false, nil
		}
		return t.descendRef(dn.Child, cur[cp:], nibble.Combine(prefix, dn.Partial))
	case codec.KindBranch:
		if len(cur) == 0 {
			if dn.Value != nil {
				return dn.Value, true, nil
			}
			return nil, false, nil
		}
		childRaw := dn.Children[cur[0]]
		if childRaw == nil {
			return nil, false, nil
		}
		return t.descendRef(childRaw, cur[1:], nibble.Combine(prefix, nibble.Slice{cur[0]}))
	default:
		return nil, false, nil
	}
}

func (t *Trie) descendRef(raw []byte, cur nibble.Slice, prefix nibble.Prefix) ([]byte, bool, error) {
	if h, ok := codec.TryDecodeHash(raw); ok {
		return t.lookupByHash(h, cur, prefix)
	}
	inline, err := codec.DecodeInline(raw)
	if err != nil {
		return nil, false, &CodecError{Inner: err}
	}
	return t.lookupEncoded(inline, cur, prefix)
}
