// Package codec implements the node record encode/decode contract the trie
// mutation engine treats as an external collaborator: it turns the four
// algebraic node shapes into bytes and back, and defines the empty-trie
// sentinel hash.
package codec

import (
	"bytes"
	"fmt"

	"github.com/iotaledger/merkletrie/common"
	"github.com/iotaledger/merkletrie/nibble"
	"github.com/iotaledger/merkletrie/store"
)

const (
	tagEmpty     byte = 0
	tagLeaf      byte = 1
	tagExtension byte = 2
	tagBranch    byte = 3
)

const (
	refTagHash   byte = 0
	refTagInline byte = 1
)

// Kind discriminates the decoded node shapes.
type Kind int

const (
	KindEmpty Kind = iota
	KindLeaf
	KindExtension
	KindBranch
)

// DecodedNode is the result of Decode: children are left as raw, unresolved
// reference bytes (as produced by encodeChildRef) so the caller can choose,
// via TryDecodeHash, whether to follow a hash or recurse into an inline
// node without the codec needing to know about the arena.
type DecodedNode struct {
	Kind     Kind
	Partial  nibble.Slice
	Value    []byte
	Child    []byte      // set for KindExtension
	Children [16][]byte  // set for KindBranch, nil entries are absent children
}

// EmptyNode is the canonical encoding of the Empty node.
func EmptyNode() []byte {
	return []byte{tagEmpty}
}

// HashedNullNode is the digest of the empty trie.
func HashedNullNode(hasher store.Hasher) store.Hash {
	return hasher.Hash(EmptyNode())
}

// LeafNode encodes a terminal node.
func LeafNode(partial nibble.Slice, value []byte) []byte {
	var buf bytes.Buffer
	buf.WriteByte(tagLeaf)
	mustWrite(common.WriteBytes16(&buf, nibble.HexPrefix(partial, true)))
	mustWrite(common.WriteBytes32(&buf, value))
	return buf.Bytes()
}

// ExtNode encodes an extension node given its already-resolved child reference.
func ExtNode(partial nibble.Slice, child ChildRef) []byte {
	var buf bytes.Buffer
	buf.WriteByte(tagExtension)
	mustWrite(common.WriteBytes16(&buf, nibble.HexPrefix(partial, false)))
	encodeChildRef(&buf, child)
	return buf.Bytes()
}

// BranchNode encodes a branch node. children[i] == nil means no child at
// nibble i; value == nil means no terminal value at this node.
func BranchNode(children [16]*ChildRef, value []byte) []byte {
	var buf bytes.Buffer
	buf.WriteByte(tagBranch)
	var bitmap uint16
	for i, c := range children {
		if c != nil {
			bitmap |= 1 << uint(i)
		}
	}
	mustWrite(common.WriteUint16(&buf, bitmap))
	for _, c := range children {
		if c != nil {
			encodeChildRef(&buf, *c)
		}
	}
	if value != nil {
		buf.WriteByte(1)
		mustWrite(common.WriteBytes32(&buf, value))
	} else {
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

// ChildRef is a resolved outgoing reference to a child node: either its
// content hash, or (when its encoded length is below the hasher's output
// width) the child's own encoded bytes, embedded verbatim.
type ChildRef struct {
	Hash   store.Hash
	Inline []byte
}

func encodeChildRef(buf *bytes.Buffer, ref ChildRef) {
	if ref.Inline != nil {
		buf.WriteByte(refTagInline)
		mustWrite(common.WriteBytes16(buf, ref.Inline))
		return
	}
	buf.WriteByte(refTagHash)
	mustWrite(common.WriteBytes16(buf, ref.Hash))
}

// TryDecodeHash recognizes a hash reference within a raw child-ref slice, as
// produced by Decode (DecodedNode.Child / DecodedNode.Children[i]).
func TryDecodeHash(raw []byte) (store.Hash, bool) {
	if len(raw) == 0 || raw[0] != refTagHash {
		return nil, false
	}
	h, err := common.ReadBytes16(bytes.NewReader(raw[1:]))
	if err != nil {
		return nil, false
	}
	return store.Hash(h), true
}

// DecodeInline extracts the embedded node bytes from a raw child-ref slice
// that TryDecodeHash rejected as not being a hash.
func DecodeInline(raw []byte) ([]byte, error) {
	if len(raw) == 0 || raw[0] != refTagInline {
		return nil, fmt.Errorf("codec: not an inline child reference")
	}
	return common.ReadBytes16(bytes.NewReader(raw[1:]))
}

// Decode is the inverse of EmptyNode/LeafNode/ExtNode/BranchNode.
func Decode(data []byte) (DecodedNode, error) {
	r := bytes.NewReader(data)
	tag, err := common.ReadByte(r)
	if err != nil {
		return DecodedNode{}, err
	}
	switch tag {
	case tagEmpty:
		return DecodedNode{Kind: KindEmpty}, nil
	case tagLeaf:
		enc, err := common.ReadBytes16(r)
		if err != nil {
			return DecodedNode{}, err
		}
		partial, _, err := nibble.DecodeHexPrefix(enc)
		if err != nil {
			return DecodedNode{}, err
		}
		value, err := common.ReadBytes32(r)
		if err != nil {
			return DecodedNode{}, err
		}
		return DecodedNode{Kind: KindLeaf, Partial: partial, Value: value}, nil
	case tagExtension:
		enc, err := common.ReadBytes16(r)
		if err != nil {
			return DecodedNode{}, err
		}
		partial, _, err := nibble.DecodeHexPrefix(enc)
		if err != nil {
			return DecodedNode{}, err
		}
		child, err := readChildRefRaw(data, r)
		if err != nil {
			return DecodedNode{}, err
		}
		return DecodedNode{Kind: KindExtension, Partial: partial, Child: child}, nil
	case tagBranch:
		var bitmap uint16
		if err := common.ReadUint16(r, &bitmap); err != nil {
			return DecodedNode{}, err
		}
		var children [16][]byte
		for i := 0; i < 16; i++ {
			if bitmap&(1<<uint(i)) == 0 {
				continue
			}
			raw, err := readChildRefRaw(data, r)
			if err != nil {
				return DecodedNode{}, err
			}
			children[i] = raw
		}
		hasValue, err := common.ReadByte(r)
		if err != nil {
			return DecodedNode{}, err
		}
		var value []byte
		if hasValue == 1 {
			value, err = common.ReadBytes32(r)
			if err != nil {
				return DecodedNode{}, err
			}
		}
		return DecodedNode{Kind: KindBranch, Children: children, Value: value}, nil
	default:
		return DecodedNode{}, fmt.Errorf("codec: unknown node tag %d", tag)
	}
}

// readChildRefRaw reads one child-ref entry (tag + length-prefixed payload)
// and returns the exact span of bytes it occupied in data, so that later
// TryDecodeHash/DecodeInline calls see the same framing encodeChildRef wrote.
func readChildRefRaw(data []byte, r *bytes.Reader) ([]byte, error) {
	before := r.Len()
	tag, err := common.ReadByte(r)
	if err != nil {
		return nil, err
	}
	if tag != refTagHash && tag != refTagInline {
		return nil, fmt.Errorf("codec: bad child ref tag %d", tag)
	}
	if _, err := common.ReadBytes16(r); err != nil {
		return nil, err
	}
	after := r.Len()
	start := len(data) - before
	end := len(data) - after
	return data[start:end], nil
}

func mustWrite(err error) {
	if err != nil {
		panic(err)
	}
}
