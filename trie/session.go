// Package trie implements the mutable hash-indexed radix trie: an in-memory
// editing layer over a content-addressed backing store (store.Database)
// that supports ordered key/value insert, lookup and deletion while
// maintaining a canonical root hash for the committed state.
//
// A Trie is a single mutation session: it owns an arena of in-memory nodes,
// a death-row set of backing-store entries to drop at commit, and exclusive
// access to the backing store and the caller's root-digest cell for its
// entire lifetime. Sessions are not safe for concurrent use.
package trie

import (
	"runtime"

	"github.com/iotaledger/merkletrie/nibble"
	"github.com/iotaledger/merkletrie/store"
)

// deathRowEntry is one (hash, prefix) pair scheduled for removal from the
// backing store at commit. Prefix is the store key-space the hash was
// addressed under; both are needed to call store.Database.Remove.
type deathRowEntry struct {
	hash   store.Hash
	prefix nibble.Prefix
}

// Trie is a mutation session over a backing store. Construct with New or
// FromExisting; call Commit to flush, or rely on the finalizer to commit on
// garbage collection as a last-resort safety net (see Close).
type Trie struct {
	db     store.Database
	hasher store.Hasher

	arena    *arena
	root     Handle
	rootCell *store.Hash

	deathRow  map[string]deathRowEntry
	hashCount int

	closed bool
}

// New starts an empty mutation session. rootCell, if non-nil, is written
// with the codec's null-hash immediately and kept in sync at every commit.
func New(db store.Database, hasher store.Hasher, rootCell *store.Hash) *Trie {
	null := hashedNullNode(hasher)
	if rootCell != nil {
		*rootCell = null
	}
	t := &Trie{
		db:       db,
		hasher:   hasher,
		arena:    newArena(),
		root:     byHash(null),
		rootCell: rootCell,
		deathRow: make(map[string]deathRowEntry),
	}
	runtime.SetFinalizer(t, (*Trie).finalize)
	return t
}

// FromExisting opens a session against a trie already committed at
// *rootCell. It fails with InvalidStateRootError if that digest is not
// resolvable in the backing store.
func FromExisting(db store.Database, hasher store.Hasher, rootCell *store.Hash) (*Trie, error) {
	h := *rootCell
	if !db.Contains(h, nibble.EmptyPrefix) {
		return nil, &InvalidStateRootError{Hash: h}
	}
	t := &Trie{
		db:       db,
		hasher:   hasher,
		arena:    newArena(),
		root:     byHash(h),
		rootCell: rootCell,
		deathRow: make(map[string]deathRowEntry),
	}
	runtime.SetFinalizer(t, (*Trie).finalize)
	return t, nil
}

// Db exposes the backing store the session edits against.
func (t *Trie) Db() store.Database { return t.db }

// Hasher exposes the digest function the session addresses nodes with.
func (t *Trie) Hasher() store.Hasher { return t.hasher }

// HashCount reports the number of backing-store insertions performed by the
// most recent Commit (nodes below the inline threshold are not counted).
func (t *Trie) HashCount() int { return t.hashCount }

// IsEmpty reports whether the trie currently holds no key/value pairs.
func (t *Trie) IsEmpty() bool {
	if !t.root.isArena() {
		return t.root.hash.Equal(hashedNullNode(t.hasher))
	}
	_, isEmpty := t.arena.get(t.root.idx).node.(Empty)
	return isEmpty
}

// Root commits any pending mutations and returns the canonical root digest.
func (t *Trie) Root() (store.Hash, error) {
	if err := t.Commit(); err != nil {
		return nil, err
	}
	return t.committedRootHash()
}

// deathRowKey makes a stable, order-independent map key for (hash, prefix).
func deathRowKey(hash store.Hash, prefix nibble.Prefix) string {
	return string(prefix) + "\x00" + string(hash)
}

// scheduleDeletion adds (hash, prefix) to the death row. The null-hash
// sentinel is never actually stored, so scheduling its removal would be a
// no-op at best and a false assumption about store contents at worst; it is
// silently skipped.
func (t *Trie) scheduleDeletion(hash store.Hash, prefix nibble.Prefix) {
	if hash.Equal(hashedNullNode(t.hasher)) {
		return
	}
	k := deathRowKey(hash, prefix)
	t.deathRow[k] = deathRowEntry{hash: hash, prefix: prefix}
}

// resolve ensures the node addressed by h lives in the arena, demand-loading
// it from the backing store via the codec when necessary, and returns its
// arena index.
func (t *Trie) resolve(h Handle, prefix nibble.Prefix) (int, error) {
	if h.isArena() {
		return h.idx, nil
	}
	if h.hash.Equal(hashedNullNode(t.hasher)) {
		return t.arena.alloc(&slot{node: Empty{}, state: stateCached, hash: h.hash}), nil
	}
	raw, ok := t.db.Get(h.hash, prefix)
	if !ok {
		return 0, &IncompleteDatabaseError{Hash: h.hash}
	}
	node, err := t.decodeNode(raw)
	if err != nil {
		node = Empty{}
	}
	idx := t.arena.alloc(&slot{node: node, state: stateCached, hash: h.hash})
	return idx, nil
}

// finalize is the drop-safety net: a session that is garbage collected
// without an explicit Commit still flushes its pending mutations.
func (t *Trie) finalize() {
	if t.closed {
		return
	}
	_ = t.Commit()
}

// Close commits pending mutations and detaches the finalizer. Safe to call
// multiple times.
func (t *Trie) Close() error {
	if t.closed {
		return nil
	}
	err := t.Commit()
	t.closed = true
	runtime.SetFinalizer(t, nil)
	return err
}
