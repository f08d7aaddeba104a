package trie

import (
	"github.com/iotaledger/merkletrie/codec"
	"github.com/iotaledger/merkletrie/store"
)

// hashedNullNode is the digest of the canonical empty trie.
func hashedNullNode(hasher store.Hasher) store.Hash {
	return hasher.Hash(codec.EmptyNode())
}

// decodeNode turns a raw encoded node record into a Node, resolving each
// outgoing child reference via inlineOrHash: a hash reference becomes a
// lazy ByHash handle, an inline reference is decoded recursively straight
// into the arena (it was never given its own store entry, so it cannot be
// Cached under a hash - it is New).
//
// The codec is expected to be total on well-formed inputs; a decode
// failure here means malformed bytes reached this layer, and resolves to
// Empty rather than aborting the caller's operation.
func (t *Trie) decodeNode(raw []byte) (Node, error) {
	dn, err := codec.Decode(raw)
	if err != nil {
		return Empty{}, nil
	}
	switch dn.Kind {
	case codec.KindEmpty:
		return Empty{}, nil
	case codec.KindLeaf:
		return &Leaf{Partial: dn.Partial, Value: dn.Value}, nil
	case codec.KindExtension:
		h, err := t.inlineOrHash(dn.Child)
		if err != nil {
			return nil, err
		}
		return &Extension{Partial: dn.Partial, Child: h}, nil
	case codec.KindBranch:
		b := &Branch{Value: dn.Value}
		for i, raw := range dn.Children {
			if raw == nil {
				continue
			}
			h, err := t.inlineOrHash(raw)
			if err != nil {
				return nil, err
			}
			b.Children[i] = &h
		}
		return b, nil
	default:
		return Empty{}, nil
	}
}

func (t *Trie) inlineOrHash(raw []byte) (Handle, error) {
	if h, ok := codec.TryDecodeHash(raw); ok {
		return byHash(h), nil
	}
	inline, err := codec.DecodeInline(raw)
	if err != nil {
		return Handle{}, err
	}
	node, err := t.decodeNode(inline)
	if err != nil {
		return Handle{}, err
	}
	idx := t.arena.alloc(&slot{node: node, state: stateNew})
	return byArena(idx), nil
}
