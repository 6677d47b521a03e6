package storage

import (
	"fmt"
	"sync"

	"vulkan.dev/core/consensus"
)

// MemStore is an in-process Store backed by plain maps, grounded on the
// teacher's InMemoryChainState test double. It honors the same atomicity
// contract as BoltStore (a single mutex serializes ApplyBlock/UndoBlock),
// so chain-manager tests can run against either implementation
// interchangeably.
type MemStore struct {
	mu sync.Mutex

	utxo   map[consensus.Outpoint]UtxoEntry
	blocks map[consensus.Hash256][]byte
	index  map[consensus.Hash256]IndexEntry
	height map[uint64]consensus.Hash256
	undo   map[consensus.Hash256]UndoRecord

	tipHash   consensus.Hash256
	tipHeight uint64
	hasTip    bool
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		utxo:   make(map[consensus.Outpoint]UtxoEntry),
		blocks: make(map[consensus.Hash256][]byte),
		index:  make(map[consensus.Hash256]IndexEntry),
		height: make(map[uint64]consensus.Hash256),
		undo:   make(map[consensus.Hash256]UndoRecord),
	}
}

func (m *MemStore) GetUTXO(point consensus.Outpoint) (UtxoEntry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.utxo[point]
	return e, ok, nil
}

func (m *MemStore) GetBlock(hash consensus.Hash256) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blocks[hash]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), b...), true, nil
}

func (m *MemStore) PutBlock(hash consensus.Hash256, raw []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocks[hash] = append([]byte(nil), raw...)
	return nil
}

func (m *MemStore) GetIndex(hash consensus.Hash256) (IndexEntry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.index[hash]
	return e, ok, nil
}

func (m *MemStore) PutIndex(hash consensus.Hash256, entry IndexEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.index[hash] = entry
	return nil
}

func (m *MemStore) GetHeightHash(height uint64) (consensus.Hash256, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.height[height]
	return h, ok, nil
}

func (m *MemStore) Tip() (consensus.Hash256, uint64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tipHash, m.tipHeight, m.hasTip, nil
}

func (m *MemStore) GetUndo(hash consensus.Hash256) (UndoRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.undo[hash]
	return u, ok, nil
}

func (m *MemStore) ApplyBlock(newTipHash consensus.Hash256, newHeight uint64, spent []consensus.Outpoint, created []RemovedOutput, index IndexEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, op := range spent {
		if _, ok := m.utxo[op]; !ok {
			return fmt.Errorf("memstore: apply: spent outpoint not found: %v", op)
		}
	}

	undo := UndoRecord{
		Removed: make([]RemovedOutput, 0, len(spent)),
		Created: make([]consensus.Outpoint, 0, len(created)),
	}
	for _, op := range spent {
		prior := m.utxo[op]
		undo.Removed = append(undo.Removed, RemovedOutput{Outpoint: op, Entry: prior})
		delete(m.utxo, op)
	}
	for _, c := range created {
		m.utxo[c.Outpoint] = c.Entry
		undo.Created = append(undo.Created, c.Outpoint)
	}

	m.index[newTipHash] = index
	m.height[newHeight] = newTipHash
	m.undo[newTipHash] = undo
	m.tipHash = newTipHash
	m.tipHeight = newHeight
	m.hasTip = true
	return nil
}

func (m *MemStore) UndoBlock(blockHash, parentHash consensus.Hash256, parentHeight uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	undo, ok := m.undo[blockHash]
	if !ok {
		return fmt.Errorf("memstore: undo: no undo record for %v", blockHash)
	}

	for _, op := range undo.Created {
		delete(m.utxo, op)
	}
	for _, r := range undo.Removed {
		m.utxo[r.Outpoint] = r.Entry
	}

	delete(m.height, m.tipHeight)
	delete(m.undo, blockHash)
	m.tipHash = parentHash
	m.tipHeight = parentHeight
	return nil
}

func (m *MemStore) Close() error { return nil }
