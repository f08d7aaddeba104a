package store

import "github.com/iotaledger/merkletrie/nibble"

// Database is the backing store the trie mutation engine edits against.
// Prefix is the encoded nibble path from the root to the node being
// addressed (nibble.EmptyPrefix at the root); it lets a single physical key
// space host several logically independent tries.
type Database interface {
	// Get fetches the encoded node bytes stored under hash, or reports absence.
	Get(hash Hash, prefix nibble.Prefix) ([]byte, bool)
	// Insert stores bytes and returns their content hash, incrementing any
	// existing reference count for that hash under that prefix.
	Insert(prefix nibble.Prefix, data []byte) Hash
	// Remove decrements the reference count for hash under prefix, deleting
	// the entry once it reaches zero.
	Remove(hash Hash, prefix nibble.Prefix)
	Contains(hash Hash, prefix nibble.Prefix) bool
}
