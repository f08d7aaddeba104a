package store

import (
	"github.com/iotaledger/merkletrie/nibble"
)

type memoryEntry struct {
	data []byte
	refs int
}

// MemoryDatabase is a reference-counted, in-memory Database. Entries are
// addressed by (prefix, hash); inserting the same bytes under the same
// prefix twice bumps a reference count instead of duplicating storage, and
// Remove only deletes the entry once its count reaches zero.
type MemoryDatabase struct {
	hasher  Hasher
	entries map[string]*memoryEntry
}

func NewMemoryDatabase(hasher Hasher) *MemoryDatabase {
	return &MemoryDatabase{
		hasher:  hasher,
		entries: make(map[string]*memoryEntry),
	}
}

func memKey(hash Hash, prefix nibble.Prefix) string {
	return string(prefix) + string(hash)
}

func (m *MemoryDatabase) Get(hash Hash, prefix nibble.Prefix) ([]byte, bool) {
	e, ok := m.entries[memKey(hash, prefix)]
	if !ok {
		return nil, false
	}
	return e.data, true
}

func (m *MemoryDatabase) Insert(prefix nibble.Prefix, data []byte) Hash {
	hash := m.hasher.Hash(data)
	key := memKey(hash, prefix)
	if e, ok := m.entries[key]; ok {
		e.refs++
		return hash
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	m.entries[key] = &memoryEntry{data: stored, refs: 1}
	return hash
}

func (m *MemoryDatabase) Remove(hash Hash, prefix nibble.Prefix) {
	key := memKey(hash, prefix)
	e, ok := m.entries[key]
	if !ok {
		return
	}
	e.refs--
	if e.refs <= 0 {
		delete(m.entries, key)
	}
}

func (m *MemoryDatabase) Contains(hash Hash, prefix nibble.Prefix) bool {
	_, ok := m.entries[memKey(hash, prefix)]
	return ok
}

// Len reports the number of distinct stored entries; exposed for tests that
// assert the backing store is left consistent after a sequence of mutations.
func (m *MemoryDatabase) Len() int {
	return len(m.entries)
}
