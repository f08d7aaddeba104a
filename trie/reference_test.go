package trie

import (
	"github.com/iotaledger/merkletrie/codec"
	"github.com/iotaledger/merkletrie/nibble"
	"github.com/iotaledger/merkletrie/store"
)

// referenceRoot builds the canonical trie encoding directly from a
// key/value multiset, independent of the mutation engine, and returns its
// root hash. It exists purely to give tests an oracle for property 2
// (reference equivalence) and property 1 (order-independence): unlike the
// session, it has no notion of insertion order at all.
type refKV struct {
	key   nibble.Slice
	value []byte
}

func referenceRoot(hasher store.Hasher, pairs []refKV) store.Hash {
	if len(pairs) == 0 {
		return hashedNullNode(hasher)
	}
	return hasher.Hash(referenceBuild(hasher, pairs))
}

func referenceBuild(hasher store.Hasher, pairs []refKV) []byte {
	if len(pairs) == 0 {
		return codec.EmptyNode()
	}
	if len(pairs) == 1 {
		return codec.LeafNode(pairs[0].key, pairs[0].value)
	}

	cp := commonPrefixAll(pairs)
	if cp > 0 {
		child := referenceBuild(hasher, stripPrefix(pairs, cp))
		return codec.ExtNode(pairs[0].key[:cp], referenceChildRef(hasher, child))
	}
	return referenceBranch(hasher, pairs)
}

func referenceBranch(hasher store.Hasher, pairs []refKV) []byte {
	var value []byte
	groups := make(map[byte][]refKV)
	for _, p := range pairs {
		if len(p.key) == 0 {
			value = p.value
			continue
		}
		groups[p.key[0]] = append(groups[p.key[0]], refKV{key: p.key[1:], value: p.value})
	}
	var refs [16]*codec.ChildRef
	for i := 0; i < 16; i++ {
		g, ok := groups[byte(i)]
		if !ok {
			continue
		}
		childEncoded := referenceBuild(hasher, g)
		ref := referenceChildRef(hasher, childEncoded)
		refs[i] = &ref
	}
	return codec.BranchNode(refs, value)
}

func referenceChildRef(hasher store.Hasher, encoded []byte) codec.ChildRef {
	if len(encoded) >= hasher.Length() {
		return codec.ChildRef{Hash: hasher.Hash(encoded)}
	}
	return codec.ChildRef{Inline: encoded}
}

// commonPrefixAll returns the length of the longest nibble prefix shared by
// every pair's key (pairs with an empty key contribute 0). Since all keys
// that share a prefix with pairs[0].key up to some length necessarily share
// it with each other, the overall common prefix is the minimum of the
// pairwise common prefixes against that one reference key.
func commonPrefixAll(pairs []refKV) int {
	if len(pairs[0].key) == 0 {
		return 0
	}
	cp := len(pairs[0].key)
	for _, p := range pairs {
		if len(p.key) == 0 {
			return 0
		}
		if shared := pairs[0].key.CommonPrefix(p.key); shared < cp {
			cp = shared
		}
	}
	return cp
}

func stripPrefix(pairs []refKV, cp int) []refKV {
	out := make([]refKV, len(pairs))
	for i, p := range pairs {
		out[i] = refKV{key: p.key[cp:], value: p.value}
	}
	return out
}
