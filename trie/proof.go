package trie

import (
	"fmt"

	"github.com/iotaledger/merkletrie/codec"
	"github.com/iotaledger/merkletrie/nibble"
	"github.com/iotaledger/merkletrie/store"
)

// Prove commits any pending mutations and returns a compact inclusion (or
// exclusion) proof for key: the raw encoded bytes of every node visited
// while descending from the committed root to key's position, in
// top-down order. VerifyProof checks such a proof against a root hash
// without touching the backing store.
func (t *Trie) Prove(key []byte) ([][]byte, bool, error) {
	if err := t.Commit(); err != nil {
		return nil, false, err
	}
	rootHash, err := t.committedRootHash()
	if err != nil {
		return nil, false, err
	}
	proof := make([][]byte, 0, 8)
	found, err := t.proveByHash(rootHash, nibble.FromBytes(key), nibble.EmptyPrefix, &proof)
	if err != nil {
		return nil, false, err
	}
	return proof, found, nil
}

func (t *Trie) committedRootHash() (store.Hash, error) {
	if !t.root.isArena() {
		return t.root.hash, nil
	}
	s := t.arena.get(t.root.idx)
	if s.state != stateCached {
		return nil, fmt.Errorf("trie: root has uncommitted mutations")
	}
	return s.hash, nil
}

func (t *Trie) proveByHash(hash store.Hash, cur nibble.Slice, prefix nibble.Prefix, proof *[][]byte) (bool, error) {
	if hash.Equal(hashedNullNode(t.hasher)) {
		return false, nil
	}
	raw, ok := t.db.Get(hash, prefix)
	if !ok {
		return false, &IncompleteDatabaseError{Hash: hash}
	}
	return t.proveEncoded(raw, cur, prefix, proof)
}

func (t *Trie) proveEncoded(raw []byte, cur nibble.Slice, prefix nibble.Prefix, proof *[][]byte) (bool, error) {
	*proof = append(*proof, raw)
	dn, err := codec.Decode(raw)
	if err != nil {
		// A malformed node record resolves to Empty at this layer: the walk
		// simply terminates here as "not found", same as codec.KindEmpty.
		return false, nil
	}
	switch dn.Kind {
	case codec.KindEmpty:
		return false, nil
	case codec.KindLeaf:
		return dn.Partial.Equal(cur), nil
	case codec.KindExtension:
		cp := cur.CommonPrefix(dn.Partial)
		if cp != len(dn.Partial) {
			return false, nil
		}
		return t.proveRef(dn.Child, cur[cp:], nibble.Combine(prefix, dn.Partial), proof)
	case codec.KindBranch:
		if len(cur) == 0 {
			return dn.Value != nil, nil
		}
		childRaw := dn.Children[cur[0]]
		if childRaw == nil {
			return false, nil
		}
		return t.proveRef(childRaw, cur[1:], nibble.Combine(prefix, nibble.Slice{cur[0]}), proof)
	default:
		return false, nil
	}
}

func (t *Trie) proveRef(raw []byte, cur nibble.Slice, prefix nibble.Prefix, proof *[][]byte) (bool, error) {
	if h, ok := codec.TryDecodeHash(raw); ok {
		return t.proveByHash(h, cur, prefix, proof)
	}
	inline, err := codec.DecodeInline(raw)
	if err != nil {
		return false, &CodecError{Inner: err}
	}
	return t.proveEncoded(inline, cur, prefix, proof)
}

// VerifyProof checks proof against rootHash and key without any access to
// a backing store: each step's raw bytes must hash to the digest its
// parent referenced, and inline children (too small to have been hashed
// separately) are decoded straight out of the parent's bytes instead of
// being popped off proof.
func VerifyProof(hasher store.Hasher, rootHash store.Hash, key []byte, proof [][]byte) ([]byte, bool, error) {
	cur := nibble.FromBytes(key)
	pos := 0

	pop := func(expect store.Hash) ([]byte, error) {
		if pos >= len(proof) {
			return nil, fmt.Errorf("trie: proof exhausted before reaching leaf")
		}
		raw := proof[pos]
		pos++
		if !hasher.Hash(raw).Equal(expect) {
			return nil, fmt.Errorf("trie: proof node hash mismatch")
		}
		return raw, nil
	}

	var walk func(raw []byte) ([]byte, bool, error)
	var descend func(ref []byte) ([]byte, bool, error)

	walk = func(raw []byte) ([]byte, bool, error) {
		dn, err := codec.Decode(raw)
		if err != nil {
			// A malformed node record resolves to Empty at this layer: the
			// walk simply terminates here as "not found", same as
			// codec.KindEmpty.
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
			cur = cur[cp:]
			return descend(dn.Child)
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
			cur = cur[1:]
			return descend(childRaw)
		default:
			return nil, false, nil
		}
	}

	descend = func(ref []byte) ([]byte, bool, error) {
		if h, ok := codec.TryDecodeHash(ref); ok {
			raw, err := pop(h)
			if err != nil {
				return nil, false, err
			}
			return walk(raw)
		}
		inline, err := codec.DecodeInline(ref)
		if err != nil {
			return nil, false, &CodecError{Inner: err}
		}
		return walk(inline)
	}

	if rootHash.Equal(hashedNullNode(hasher)) {
		return nil, false, nil
	}
	raw, err := pop(rootHash)
	if err != nil {
		return nil, false, err
	}
	return walk(raw)
}
