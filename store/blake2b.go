package store

import "golang.org/x/crypto/blake2b"

// Blake2bHasher is the default Hasher, producing 32-byte blake2b digests.
type Blake2bHasher struct{}

const Blake2bLength = 32

func (Blake2bHasher) Length() int { return Blake2bLength }

func (Blake2bHasher) Hash(data []byte) Hash {
	h := blake2b.Sum256(data)
	return h[:]
}
