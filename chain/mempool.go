package chain

import (
	"container/heap"
	"fmt"
	"sync"

	"vulkan.dev/core/consensus"
	"vulkan.dev/core/storage"
)

// storeView adapts a storage.Store (at a fixed height) to
// consensus.UTXOView, so the validators never need to know about bbolt or
// maps directly.
type storeView struct {
	store  storage.Store
	height uint64
}

func (v storeView) Get(point consensus.Outpoint) (consensus.TxOut, bool) {
	e, ok, err := v.store.GetUTXO(point)
	if err != nil || !ok {
		return consensus.TxOut{}, false
	}
	return e.Output, true
}

func (v storeView) CoinbaseCreationHeight(point consensus.Outpoint) (uint64, bool, bool) {
	e, ok, err := v.store.GetUTXO(point)
	if err != nil || !ok {
		return 0, false, false
	}
	return e.CreationHeight, e.FromCoinbase, true
}

type pooledTx struct {
	tx      *consensus.Tx
	size    int
	fee     uint64
	heapIdx int
}

func (p *pooledTx) feeRate() float64 {
	if p.size == 0 {
		return 0
	}
	return float64(p.fee) / float64(p.size)
}

// feeRateHeap is a min-heap over pooled transactions ordered by fee rate,
// so Admit can evict the cheapest entries first when the pool is full.
// Grounded on spec.md §4.8's "evict lowest-fee-rate" rule; no ecosystem
// priority-queue library appears anywhere in the example pack, so this is
// a justified stdlib container/heap use (see DESIGN.md).
type feeRateHeap []*pooledTx

func (h feeRateHeap) Len() int            { return len(h) }
func (h feeRateHeap) Less(i, j int) bool  { return h[i].feeRate() < h[j].feeRate() }
func (h feeRateHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIdx, h[j].heapIdx = i, j
}
func (h *feeRateHeap) Push(x any) {
	p := x.(*pooledTx)
	p.heapIdx = len(*h)
	*h = append(*h, p)
}
func (h *feeRateHeap) Pop() any {
	old := *h
	n := len(old)
	p := old[n-1]
	old[n-1] = nil
	p.heapIdx = -1
	*h = old[:n-1]
	return p
}

// Mempool holds not-yet-confirmed transactions admitted against the
// current chain tip, per spec.md §4.8: a tx_hash -> Transaction map plus a
// claimed-outpoint index that prevents two pooled transactions from
// spending the same input.
type Mempool struct {
	mu sync.Mutex

	store    storage.Store
	maxBytes int

	byID    map[consensus.Hash256]*pooledTx
	claimed map[consensus.Outpoint]consensus.Hash256
	byFee   feeRateHeap

	totalBytes int
}

func NewMempool(store storage.Store, maxBytes int) *Mempool {
	return &Mempool{
		store:    store,
		maxBytes: maxBytes,
		byID:     make(map[consensus.Hash256]*pooledTx),
		claimed:  make(map[consensus.Outpoint]consensus.Hash256),
	}
}

// Admit runs context-free and context-sensitive validation against the
// current tip's UTXO view, then inserts tx, evicting the pool's lowest
// fee-rate entries if needed to stay under maxBytes.
func (m *Mempool) Admit(tx *consensus.Tx, height uint64) error {
	if err := consensus.ValidTransaction(tx); err != nil {
		return err
	}
	if tx.IsCoinbase() {
		return consensus.NewError(consensus.KindInvalidTransaction, consensus.ReasonCoinbaseInMempool)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byID[tx.ID]; exists {
		return consensus.NewError(consensus.KindDuplicateTransaction, consensus.ReasonDuplicateTx)
	}
	for _, in := range tx.Inputs {
		op := consensus.Outpoint{TxHash: in.PrevTxHash, Index: in.PrevTxOutIndex}
		if owner, claimed := m.claimed[op]; claimed {
			return consensus.NewError(consensus.KindInvalidTransaction, fmt.Sprintf("%s: already claimed by %x", consensus.ReasonAlreadyClaimed, owner))
		}
	}

	view := storeView{store: m.store, height: height}
	fee, err := consensus.ValidateAgainstView(tx, view, height)
	if err != nil {
		return err
	}

	size := len(consensus.EncodeTx(tx))
	p := &pooledTx{tx: tx, size: size, fee: fee}

	for m.totalBytes+size > m.maxBytes && m.byFee.Len() > 0 {
		cheapest := heap.Pop(&m.byFee).(*pooledTx)
		m.removeLocked(cheapest)
	}
	if m.totalBytes+size > m.maxBytes {
		return consensus.NewError(consensus.KindInvalidTransaction, consensus.ReasonMempoolFull)
	}

	m.byID[tx.ID] = p
	heap.Push(&m.byFee, p)
	for _, in := range tx.Inputs {
		m.claimed[consensus.Outpoint{TxHash: in.PrevTxHash, Index: in.PrevTxOutIndex}] = tx.ID
	}
	m.totalBytes += size
	return nil
}

// removeLocked drops p from every index. Caller holds m.mu.
func (m *Mempool) removeLocked(p *pooledTx) {
	delete(m.byID, p.tx.ID)
	m.totalBytes -= p.size
	for _, in := range p.tx.Inputs {
		op := consensus.Outpoint{TxHash: in.PrevTxHash, Index: in.PrevTxOutIndex}
		if m.claimed[op] == p.tx.ID {
			delete(m.claimed, op)
		}
	}
	if p.heapIdx >= 0 && p.heapIdx < m.byFee.Len() && m.byFee[p.heapIdx] == p {
		heap.Remove(&m.byFee, p.heapIdx)
	}
}

// OnBlockConnected removes every pooled transaction that the block
// confirmed, plus every pooled transaction left conflicting with an input
// the block consumed.
func (m *Mempool) OnBlockConnected(block *consensus.Block) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range block.Transactions {
		tx := &block.Transactions[i]
		if p, ok := m.byID[tx.ID]; ok {
			m.removeLocked(p)
		}
		if tx.IsCoinbase() {
			continue
		}
		for _, in := range tx.Inputs {
			op := consensus.Outpoint{TxHash: in.PrevTxHash, Index: in.PrevTxOutIndex}
			if owner, claimed := m.claimed[op]; claimed {
				if p, ok := m.byID[owner]; ok {
					m.removeLocked(p)
				}
			}
		}
	}
}

// OnBlockDisconnected re-admits the block's non-coinbase transactions,
// ignoring failures, per spec.md §4.8.
func (m *Mempool) OnBlockDisconnected(block *consensus.Block, height uint64) {
	for i := range block.Transactions {
		tx := &block.Transactions[i]
		if tx.IsCoinbase() {
			continue
		}
		_ = m.Admit(tx, height)
	}
}

// Size returns the number of pooled transactions.
func (m *Mempool) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

// Has reports whether a transaction is currently pooled.
func (m *Mempool) Has(id consensus.Hash256) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.byID[id]
	return ok
}
