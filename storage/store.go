package storage

import "vulkan.dev/core/consensus"

// Store is the persistent-store contract of spec.md §6, narrowed to the
// operations the chain manager and UTXO index actually need. Both BoltStore
// and MemStore implement it, so tests can swap a real bbolt database for an
// in-process map without touching chain manager code.
type Store interface {
	// GetUTXO returns the entry at point, if any.
	GetUTXO(point consensus.Outpoint) (UtxoEntry, bool, error)

	// GetBlock returns the stored block bytes for hash, if any.
	GetBlock(hash consensus.Hash256) ([]byte, bool, error)
	// PutBlock stores block bytes, independent of chain-index state — a
	// block can be known (e.g. an orphan or alt-branch block) before it is
	// ever connected.
	PutBlock(hash consensus.Hash256, raw []byte) error

	// GetIndex returns the chain-index entry for hash (height, parent,
	// cumulative work, status).
	GetIndex(hash consensus.Hash256) (IndexEntry, bool, error)
	PutIndex(hash consensus.Hash256, entry IndexEntry) error

	// GetHeightHash returns the connected block hash at height.
	GetHeightHash(height uint64) (consensus.Hash256, bool, error)

	// Tip returns the current connected tip's hash and height.
	Tip() (hash consensus.Hash256, height uint64, ok bool, err error)

	// GetUndo returns the undo record for a connected block.
	GetUndo(hash consensus.Hash256) (UndoRecord, bool, error)

	// ApplyBlock atomically: removes every outpoint in spentOutpoints
	// (recording their prior entries into an undo record), inserts every
	// entry in createdOutputs, advances the height index and tip to
	// (newTipHash, newHeight), and persists the undo record — all in one
	// durable write. Spec.md §4.6: "no intermediate state is ever
	// observable."
	ApplyBlock(newTipHash consensus.Hash256, newHeight uint64, spentOutpoints []consensus.Outpoint, createdOutputs []RemovedOutput, index IndexEntry) error

	// UndoBlock atomically inverts the effect of ApplyBlock for the block
	// at the current tip, using its stored undo record, and sets the tip
	// back to parentHash/parentHeight.
	UndoBlock(blockHash consensus.Hash256, parentHash consensus.Hash256, parentHeight uint64) error

	// Close releases any underlying resources (file handles, etc).
	Close() error
}

// BlockStatus classifies a block the chain manager has learned about.
type BlockStatus byte

const (
	StatusUnknown BlockStatus = iota
	StatusValid
	StatusInvalid
	StatusOrphan
)

// IndexEntry is the per-block metadata the chain manager needs regardless
// of whether the block is on the active chain: its height, parent, and
// classification. CumulativeWork is stored as a decimal string since it can
// exceed 64 bits.
type IndexEntry struct {
	Height             uint64
	ParentHash         consensus.Hash256
	CumulativeWorkDec  string
	Status             BlockStatus
}
