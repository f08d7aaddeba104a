package store

import (
	"errors"

	"github.com/iotaledger/hive.go/core/kvstore"
	"github.com/iotaledger/merkletrie/common"
	"github.com/iotaledger/merkletrie/nibble"
)

// HiveDatabase adapts a hive.go kvstore.KVStore into a Database, persisting
// the reference count alongside the node bytes so Remove can drop an entry
// only once nothing else references it.
type HiveDatabase struct {
	hasher Hasher
	kvs    kvstore.KVStore
}

func NewHiveDatabase(kvs kvstore.KVStore, hasher Hasher) *HiveDatabase {
	return &HiveDatabase{hasher: hasher, kvs: kvs}
}

func hiveKey(hash Hash, prefix nibble.Prefix) []byte {
	return common.Concat([]byte(prefix), []byte(hash))
}

func mustNoErr(err error) {
	if err != nil {
		panic(err)
	}
}

func (h *HiveDatabase) get(hash Hash, prefix nibble.Prefix) (*memoryEntry, bool) {
	raw, err := h.kvs.Get(hiveKey(hash, prefix))
	if errors.Is(err, kvstore.ErrKeyNotFound) {
		return nil, false
	}
	mustNoErr(err)
	refs := common.MustUint32From4Bytes(raw[:4])
	return &memoryEntry{data: raw[4:], refs: int(refs)}, true
}

func (h *HiveDatabase) put(hash Hash, prefix nibble.Prefix, e *memoryEntry) {
	raw := common.Concat(common.Uint32To4Bytes(uint32(e.refs)), e.data)
	mustNoErr(h.kvs.Set(hiveKey(hash, prefix), raw))
}

func (h *HiveDatabase) Get(hash Hash, prefix nibble.Prefix) ([]byte, bool) {
	e, ok := h.get(hash, prefix)
	if !ok {
		return nil, false
	}
	return e.data, true
}

func (h *HiveDatabase) Insert(prefix nibble.Prefix, data []byte) Hash {
	hash := h.hasher.Hash(data)
	if e, ok := h.get(hash, prefix); ok {
		e.refs++
		h.put(hash, prefix, e)
		return hash
	}
	h.put(hash, prefix, &memoryEntry{data: data, refs: 1})
	return hash
}

func (h *HiveDatabase) Remove(hash Hash, prefix nibble.Prefix) {
	e, ok := h.get(hash, prefix)
	if !ok {
		return
	}
	e.refs--
	if e.refs <= 0 {
		mustNoErr(h.kvs.Delete(hiveKey(hash, prefix)))
		return
	}
	h.put(hash, prefix, e)
}

func (h *HiveDatabase) Contains(hash Hash, prefix nibble.Prefix) bool {
	ok, err := h.kvs.Has(hiveKey(hash, prefix))
	mustNoErr(err)
	return ok
}
