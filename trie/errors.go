package trie

import (
	"golang.org/x/xerrors"

	"github.com/iotaledger/merkletrie/store"
)

// InvalidStateRootError is returned by FromExisting when the supplied root
// digest cannot be resolved against the backing store.
type InvalidStateRootError struct {
	Hash store.Hash
}

func (e *InvalidStateRootError) Error() string {
	return xerrors.Errorf("trie: invalid state root %s: not found in backing store", e.Hash).Error()
}

// IncompleteDatabaseError is returned when a demand-load during descent
// finds no entry for a referenced hash.
type IncompleteDatabaseError struct {
	Hash store.Hash
}

func (e *IncompleteDatabaseError) Error() string {
	return xerrors.Errorf("trie: incomplete database: missing node %s", e.Hash).Error()
}

// CodecError wraps a failure surfaced by the node codec. A malformed node
// record (codec.Decode on the bytes a hash or inline reference points at)
// is not reported this way: per the codec's totality contract, that
// resolves to Empty instead. CodecError remains for the framing failures
// that are not "this node's bytes didn't parse", such as a corrupt inline
// child-reference tag.
type CodecError struct {
	Inner error
}

func (e *CodecError) Error() string {
	return xerrors.Errorf("trie: codec error: %w", e.Inner).Error()
}

func (e *CodecError) Unwrap() error { return e.Inner }
