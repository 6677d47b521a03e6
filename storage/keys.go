// Package storage persists the chain's UTXO set, block/header/index
// records, and undo log behind the §6 persistent-store contract, with a
// bbolt-backed implementation and an in-memory test double.
package storage

import (
	"encoding/binary"

	"vulkan.dev/core/consensus"
)

// Key prefixes, matching spec.md §4.6's byte-prefixed ranges. BoltStore
// does not write these bytes: it keeps UTXOs, blocks, the height index, the
// tip and undo records in buckets of their own (plus a block-index bucket
// with no prefix here) rather than a shared keyspace, and it has no mempool
// bucket, since the mempool is held only in memory. The prefixes are kept
// here as the cross-reference back to the spec.
const (
	PrefixUTXO     = 'U' // tx_hash(32) || index(u32 LE) -> serialized UtxoEntry
	PrefixBlock    = 'B' // block_hash(32) -> serialized block
	PrefixHeight   = 'H' // height(u32 LE) -> block_hash
	PrefixTip      = 'T' // (no key) -> tip block_hash(32) || height(u64 LE)
	PrefixUndo     = 'X' // block_hash(32) -> undo record
	PrefixMempool  = 'M' // tx_hash(32) -> mempool transaction
)

// EncodeOutpointKey renders an Outpoint as the UTXO bucket key.
func EncodeOutpointKey(op consensus.Outpoint) []byte {
	key := make([]byte, consensus.HashSize+4)
	copy(key, op.TxHash[:])
	binary.LittleEndian.PutUint32(key[consensus.HashSize:], op.Index)
	return key
}

// EncodeHeightKey renders a height as the height-index bucket key.
func EncodeHeightKey(height uint64) []byte {
	key := make([]byte, 4)
	binary.LittleEndian.PutUint32(key, uint32(height))
	return key
}
