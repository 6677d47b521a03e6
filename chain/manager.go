package chain

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"vulkan.dev/core/consensus"
	"vulkan.dev/core/storage"
)

// Manager is the single chain worker of spec.md §5: it owns exclusive
// write access to the UTXO set, tip, and mempool, and serializes every
// mutation through one goroutine reading a bounded ingress channel.
// Grounded on the teacher's node/store reorg+chainstate split, collapsed
// into one worker loop per the spec's concurrency model.
type Manager struct {
	store   storage.Store
	mempool *Mempool
	log     *zap.Logger
	cfg     Config

	ingress chan workItem
	done    chan struct{}

	orphans     map[consensus.Hash256]*orphanEntry
	orphanOrder []consensus.Hash256
	invalid     map[consensus.Hash256]struct{}
	subscribers []func(Event)
}

type orphanEntry struct {
	block *consensus.Block
}

type workKind int

const (
	workSubmitBlock workKind = iota
	workSubmitTx
	workQuery
)

type workItem struct {
	kind   workKind
	block  *consensus.Block
	tx     *consensus.Tx
	query  func()
	result chan error
}

// NewManager constructs a Manager bound to store and cfg. Call Run in its
// own goroutine, then Submit*/Query* from any number of callers.
func NewManager(store storage.Store, cfg Config, log *zap.Logger) *Manager {
	m := &Manager{
		store:   store,
		mempool: NewMempool(store, cfg.MempoolMaxBytes),
		log:     log,
		cfg:     cfg,
		ingress: make(chan workItem, cfg.IngressQueueDepth),
		done:    make(chan struct{}),
		orphans: make(map[consensus.Hash256]*orphanEntry),
		invalid: make(map[consensus.Hash256]struct{}),
	}
	return m
}

// Subscribe registers fn to receive every Event the worker emits. Must be
// called before Run starts processing submissions that would race it. The
// worker updates the mempool directly, not through Subscribe.
func (m *Manager) Subscribe(fn func(Event)) {
	m.subscribers = append(m.subscribers, fn)
}

func (m *Manager) emit(ev Event) {
	for _, fn := range m.subscribers {
		fn(ev)
	}
}

// InitGenesis installs the compiled-in genesis block directly, bypassing
// ValidBlock/ValidateBlockAgainstChain — see DESIGN.md "Genesis and
// proof-of-work" for why a placeholder-nonce constant cannot satisfy its
// own PoW check.
func (m *Manager) InitGenesis() error {
	_, _, ok, err := m.store.Tip()
	if err != nil {
		return consensus.WrapError(consensus.KindStorage, "read_tip", err)
	}
	if ok {
		return nil
	}

	g := consensus.Genesis()
	raw := consensus.EncodeBlock(g)
	if err := m.store.PutBlock(g.Hash, raw); err != nil {
		return consensus.WrapError(consensus.KindStorage, "store_genesis_block", err)
	}

	work := consensus.WorkFromTarget(mustTarget(g.Header.Bits))
	if err := m.store.PutIndex(g.Hash, storage.IndexEntry{
		Height:            0,
		ParentHash:        consensus.ZeroHash,
		CumulativeWorkDec: work.Text(10),
		Status:            storage.StatusValid,
	}); err != nil {
		return consensus.WrapError(consensus.KindStorage, "index_genesis", err)
	}

	created := make([]storage.RemovedOutput, 0, len(g.Transactions[0].Outputs))
	for i, out := range g.Transactions[0].Outputs {
		created = append(created, storage.RemovedOutput{
			Outpoint: consensus.Outpoint{TxHash: g.Transactions[0].ID, Index: uint32(i)},
			Entry:    storage.UtxoEntry{Output: out, CreationHeight: 0, FromCoinbase: true},
		})
	}
	if err := m.store.ApplyBlock(g.Hash, 0, nil, created, storage.IndexEntry{
		Height:            0,
		ParentHash:        consensus.ZeroHash,
		CumulativeWorkDec: work.Text(10),
		Status:            storage.StatusValid,
	}); err != nil {
		return consensus.WrapError(consensus.KindStorage, "apply_genesis", err)
	}
	return nil
}

func mustTarget(bits uint32) [consensus.HashSize]byte {
	t, err := consensus.DecodeCompactTarget(bits)
	if err != nil {
		// Genesis bits are a compiled-in constant; a decode failure here is
		// a build-time bug, not a runtime input-validation case.
		panic(fmt.Sprintf("chain: genesis bits undecodable: %v", err))
	}
	return t
}

// Run processes the ingress channel until Close is called or a storage
// failure makes further processing unsafe. Spec.md §5: a StorageError
// aborts the current write batch, and on unrecoverable storage failure the
// worker exits rather than risk writing on top of a database it can no
// longer trust.
func (m *Manager) Run() {
	for {
		select {
		case item, ok := <-m.ingress:
			if !ok {
				return
			}
			if err := m.process(item); isStorageError(err) {
				m.logStorageFailure(err)
				return
			}
		case <-m.done:
			m.drain()
			return
		}
	}
}

// drain processes every item already queued on the ingress channel after a
// shutdown signal and then returns; queued items are not discarded. It
// stops early, for the same reason Run does, if draining itself hits a
// storage failure.
func (m *Manager) drain() {
	for {
		select {
		case item, ok := <-m.ingress:
			if !ok {
				return
			}
			if err := m.process(item); isStorageError(err) {
				m.logStorageFailure(err)
				return
			}
		default:
			return
		}
	}
}

func (m *Manager) logStorageFailure(err error) {
	if m.log != nil {
		m.log.Error("unrecoverable storage failure; worker exiting", zap.Error(err))
	}
}

// isStorageError reports whether err carries consensus.KindStorage,
// per spec.md §7's errors.As-friendly taxonomy.
func isStorageError(err error) bool {
	var ce *consensus.ConsensusError
	if errors.As(err, &ce) {
		return ce.Kind == consensus.KindStorage
	}
	return false
}

// Close signals Run to stop after draining pending work.
func (m *Manager) Close() {
	close(m.done)
}

func (m *Manager) process(item workItem) error {
	var err error
	switch item.kind {
	case workSubmitBlock:
		err = m.submitBlock(item.block)
	case workSubmitTx:
		err = m.submitTx(item.tx)
	case workQuery:
		item.query()
	}
	item.result <- err
	return err
}

// SubmitBlock enqueues block for processing and blocks until the worker
// has decided its fate.
func (m *Manager) SubmitBlock(block *consensus.Block) error {
	res := make(chan error, 1)
	m.ingress <- workItem{kind: workSubmitBlock, block: block, result: res}
	return <-res
}

// SubmitTx enqueues tx for mempool admission.
func (m *Manager) SubmitTx(tx *consensus.Tx) error {
	res := make(chan error, 1)
	m.ingress <- workItem{kind: workSubmitTx, tx: tx, result: res}
	return <-res
}

// Query runs fn on the worker goroutine and waits for it to finish — use
// for reads that must be serialized with in-flight mutations. Read-only
// snapshot queries that don't need this ordering should read the store
// directly instead (spec.md §5: "queries...may execute on a snapshot
// without serializing behind the worker").
func (m *Manager) Query(fn func()) {
	res := make(chan error, 1)
	m.ingress <- workItem{kind: workQuery, query: fn, result: res}
	<-res
}

func (m *Manager) submitTx(tx *consensus.Tx) error {
	_, height, ok, err := m.store.Tip()
	if err != nil {
		return consensus.WrapError(consensus.KindStorage, "read_tip", err)
	}
	if !ok {
		return errors.New("chain: no tip; genesis not initialized")
	}
	return m.mempool.Admit(tx, height+1)
}

func (m *Manager) submitBlock(block *consensus.Block) error {
	hash := consensus.ComputeBlockHash(&block.Header)
	block.Hash = hash

	if _, bad := m.invalid[hash]; bad {
		return consensus.NewError(consensus.KindInvalidBlock, "previously_rejected")
	}
	if _, ok, err := m.store.GetIndex(hash); err != nil {
		return consensus.WrapError(consensus.KindStorage, "read_index", err)
	} else if ok {
		return consensus.NewError(consensus.KindDuplicateBlock, "already_known")
	}

	if err := consensus.ValidBlock(block, time.Now()); err != nil {
		m.reject(hash, err)
		return err
	}

	parentIdx, ok, err := m.store.GetIndex(block.Header.PreviousHash)
	if err != nil {
		return consensus.WrapError(consensus.KindStorage, "read_parent_index", err)
	}
	if !ok {
		m.bufferOrphan(block)
		return nil
	}
	if parentIdx.Status == storage.StatusInvalid {
		m.reject(hash, consensus.NewError(consensus.KindInvalidBlock, "invalid_ancestor"))
		return consensus.NewError(consensus.KindInvalidBlock, "invalid_ancestor")
	}

	if err := m.storeCandidate(block, hash, parentIdx); err != nil {
		return err
	}

	tipHash, _, ok, err := m.store.Tip()
	if err != nil {
		return consensus.WrapError(consensus.KindStorage, "read_tip", err)
	}
	if ok && block.Header.PreviousHash == tipHash {
		if err := m.extend(block, hash, parentIdx); err != nil {
			return err
		}
		m.tryConnectOrphans(hash)
		return nil
	}

	// Alt-fork: re-evaluate branch weights and reorganize if heavier.
	if err := m.maybeReorg(hash); err != nil {
		return err
	}
	m.tryConnectOrphans(hash)
	return nil
}

// storeCandidate persists a structurally-valid block and its provisional
// index entry (parent + cumulative work), without yet running
// context-sensitive validation against the UTXO set.
func (m *Manager) storeCandidate(block *consensus.Block, hash consensus.Hash256, parentIdx storage.IndexEntry) error {
	raw := consensus.EncodeBlock(block)
	if err := m.store.PutBlock(hash, raw); err != nil {
		return consensus.WrapError(consensus.KindStorage, "store_block", err)
	}

	parentWork, ok := new(big.Int).SetString(parentIdx.CumulativeWorkDec, 10)
	if !ok {
		return consensus.NewError(consensus.KindStorage, "corrupt_cumulative_work")
	}
	target, err := consensus.DecodeCompactTarget(block.Header.Bits)
	if err != nil {
		return err
	}
	work := new(big.Int).Add(parentWork, consensus.WorkFromTarget(target))

	if err := m.store.PutIndex(hash, storage.IndexEntry{
		Height:            parentIdx.Height + 1,
		ParentHash:        block.Header.PreviousHash,
		CumulativeWorkDec: work.Text(10),
		Status:            storage.StatusValid,
	}); err != nil {
		return consensus.WrapError(consensus.KindStorage, "store_index", err)
	}
	return nil
}

// extend validates and applies block directly onto the current tip.
func (m *Manager) extend(block *consensus.Block, hash consensus.Hash256, parentIdx storage.IndexEntry) error {
	height := parentIdx.Height + 1
	view := storeView{store: m.store, height: height}

	expectedBits, err := m.expectedBits(height, block.Header.PreviousHash, parentIdx)
	if err != nil {
		return err
	}

	ctx := consensus.BlockValidationContext{
		Height:          height,
		ExpectedBits:    expectedBits,
		BaseSubsidy:     consensus.BaseSubsidy(height),
		Now:             time.Now(),
		ExpectedParent:  block.Header.PreviousHash,
		HaveParentCheck: true,
	}
	if _, err := consensus.ValidateBlockAgainstChain(block, view, ctx); err != nil {
		m.reject(hash, err)
		return err
	}

	spent, created := spentAndCreated(block, height)
	idx := storage.IndexEntry{Height: height, ParentHash: block.Header.PreviousHash, Status: storage.StatusValid}
	idx.CumulativeWorkDec = mustIndexWork(m.store, hash)

	if err := m.store.ApplyBlock(hash, height, spent, created, idx); err != nil {
		return consensus.WrapError(consensus.KindStorage, "apply_block", err)
	}

	m.mempool.OnBlockConnected(block)
	m.emit(Event{Kind: BlockConnected, Block: block, Height: height})
	if m.log != nil {
		m.log.Info("block connected", zap.Uint64("height", height), zap.String("hash", fmt.Sprintf("%x", hash)))
	}
	return nil
}

func mustIndexWork(store storage.Store, hash consensus.Hash256) string {
	idx, ok, err := store.GetIndex(hash)
	if err != nil || !ok {
		return "0"
	}
	return idx.CumulativeWorkDec
}

func (m *Manager) expectedBits(height uint64, parentHash consensus.Hash256, parentIdx storage.IndexEntry) (uint32, error) {
	// Retargeting needs the period boundary timestamps; for heights that
	// are not a retarget boundary the bits simply repeat the parent's.
	if height%consensus.DifficultyPeriod != 0 {
		parentBlock, err := m.loadBlockByHash(parentHash)
		if err != nil {
			return 0, err
		}
		return parentBlock.Header.Bits, nil
	}
	return m.retargetBits(height, parentIdx)
}

func (m *Manager) loadBlockByHash(hash consensus.Hash256) (*consensus.Block, error) {
	raw, ok, err := m.store.GetBlock(hash)
	if err != nil {
		return nil, consensus.WrapError(consensus.KindStorage, "read_block", err)
	}
	if !ok {
		return nil, consensus.NewError(consensus.KindStorage, "missing_block")
	}
	return consensus.DecodeBlock(raw)
}

func (m *Manager) retargetBits(height uint64, parentIdx storage.IndexEntry) (uint32, error) {
	periodFirstHeight := height - consensus.DifficultyPeriod
	firstHash, ok, err := m.store.GetHeightHash(periodFirstHeight)
	if err != nil {
		return 0, consensus.WrapError(consensus.KindStorage, "read_height_hash", err)
	}
	if !ok {
		return 0, consensus.NewError(consensus.KindStorage, "missing_height_hash")
	}
	firstBlock, err := m.loadBlockByHash(firstHash)
	if err != nil {
		return 0, err
	}
	lastHash, ok, err := m.store.GetHeightHash(height - 1)
	if err != nil {
		return 0, consensus.WrapError(consensus.KindStorage, "read_height_hash", err)
	}
	if !ok {
		return 0, consensus.NewError(consensus.KindStorage, "missing_height_hash")
	}
	lastBlock, err := m.loadBlockByHash(lastHash)
	if err != nil {
		return 0, err
	}

	prevTarget, err := consensus.DecodeCompactTarget(lastBlock.Header.Bits)
	if err != nil {
		return 0, err
	}
	nextTarget, err := consensus.ExpectedTarget(height, prevTarget, int64(firstBlock.Header.Timestamp), int64(lastBlock.Header.Timestamp))
	if err != nil {
		return 0, err
	}
	return consensus.EncodeCompactTarget(nextTarget), nil
}

// spentAndCreated derives ApplyBlock's spent/created lists from a block
// that has already passed ValidateBlockAgainstChain.
func spentAndCreated(block *consensus.Block, height uint64) ([]consensus.Outpoint, []storage.RemovedOutput) {
	var spent []consensus.Outpoint
	var created []storage.RemovedOutput
	for i := range block.Transactions {
		tx := &block.Transactions[i]
		isCoinbase := tx.IsCoinbase()
		if !isCoinbase {
			for _, in := range tx.Inputs {
				spent = append(spent, consensus.Outpoint{TxHash: in.PrevTxHash, Index: in.PrevTxOutIndex})
			}
		}
		for idx, out := range tx.Outputs {
			created = append(created, storage.RemovedOutput{
				Outpoint: consensus.Outpoint{TxHash: tx.ID, Index: uint32(idx)},
				Entry:    storage.UtxoEntry{Output: out, CreationHeight: height, FromCoinbase: isCoinbase},
			})
		}
	}
	return spent, created
}

func (m *Manager) reject(hash consensus.Hash256, cause error) {
	m.invalid[hash] = struct{}{}
	idx, ok, _ := m.store.GetIndex(hash)
	idx.Status = storage.StatusInvalid
	if !ok {
		idx.ParentHash = consensus.ZeroHash
	}
	_ = m.store.PutIndex(hash, idx)
	if m.log != nil {
		m.log.Warn("block rejected", zap.String("hash", fmt.Sprintf("%x", hash)), zap.Error(cause))
	}
}

func (m *Manager) bufferOrphan(block *consensus.Block) {
	hash := block.Hash
	if _, exists := m.orphans[hash]; exists {
		return
	}
	if len(m.orphanOrder) >= m.cfg.MaxOrphans {
		oldest := m.orphanOrder[0]
		m.orphanOrder = m.orphanOrder[1:]
		delete(m.orphans, oldest)
	}
	m.orphans[hash] = &orphanEntry{block: block}
	m.orphanOrder = append(m.orphanOrder, hash)
}

// tryConnectOrphans re-submits any buffered orphan whose parent is now
// known, following the freshly connected/stored block parentHash.
func (m *Manager) tryConnectOrphans(parentHash consensus.Hash256) {
	var ready []consensus.Hash256
	for hash, entry := range m.orphans {
		if entry.block.Header.PreviousHash == parentHash {
			ready = append(ready, hash)
		}
	}
	for _, hash := range ready {
		entry := m.orphans[hash]
		delete(m.orphans, hash)
		for i, h := range m.orphanOrder {
			if h == hash {
				m.orphanOrder = append(m.orphanOrder[:i], m.orphanOrder[i+1:]...)
				break
			}
		}
		_ = m.submitBlock(entry.block)
	}
}

// maybeReorg compares the stored candidate's branch to the current tip
// and, if heavier, undoes down to the fork point and replays the new
// branch — spec.md §4.7's Reorganize transition.
func (m *Manager) maybeReorg(candidateHash consensus.Hash256) error {
	tipHash, _, ok, err := m.store.Tip()
	if err != nil {
		return consensus.WrapError(consensus.KindStorage, "read_tip", err)
	}
	if !ok {
		return nil
	}

	candWork, err := cumulativeWork(m.store, candidateHash)
	if err != nil {
		return err
	}
	tipWork, err := cumulativeWork(m.store, tipHash)
	if err != nil {
		return err
	}
	if candWork.Cmp(tipWork) <= 0 {
		return nil // lighter or equal: stored but not selected.
	}

	fork, err := m.findForkPoint(tipHash, candidateHash)
	if err != nil {
		return err
	}

	cur := tipHash
	for cur != fork {
		idx, ok, err := m.store.GetIndex(cur)
		if err != nil {
			return consensus.WrapError(consensus.KindStorage, "read_index", err)
		}
		if !ok {
			return consensus.NewError(consensus.KindStorage, "missing_index")
		}
		block, err := m.loadBlockByHash(cur)
		if err != nil {
			return err
		}
		if err := m.store.UndoBlock(cur, idx.ParentHash, idx.Height-1); err != nil {
			return consensus.WrapError(consensus.KindStorage, "undo_block", err)
		}
		// The tip is now idx.Height-1, so re-admission is checked at the
		// next block's height, as submitTx does.
		m.mempool.OnBlockDisconnected(block, idx.Height)
		m.emit(Event{Kind: BlockDisconnected, Block: block, Height: idx.Height})
		if m.log != nil {
			m.log.Info("block disconnected", zap.Uint64("height", idx.Height), zap.String("hash", fmt.Sprintf("%x", cur)))
		}
		cur = idx.ParentHash
	}

	path, err := m.pathFromAncestor(fork, candidateHash)
	if err != nil {
		return err
	}
	for _, hash := range path {
		block, err := m.loadBlockByHash(hash)
		if err != nil {
			return err
		}
		parentIdx, ok, err := m.store.GetIndex(block.Header.PreviousHash)
		if err != nil {
			return consensus.WrapError(consensus.KindStorage, "read_parent_index", err)
		}
		if !ok {
			return consensus.NewError(consensus.KindStorage, "missing_parent_index")
		}
		if err := m.extend(block, hash, parentIdx); err != nil {
			// Stop the reorg; the chain remains at whatever prefix of the
			// new branch connected successfully.
			return err
		}
	}
	if m.log != nil {
		m.log.Info("chain reorganized", zap.String("fork", fmt.Sprintf("%x", fork)), zap.String("new_tip", fmt.Sprintf("%x", candidateHash)))
	}
	return nil
}

func cumulativeWork(store storage.Store, hash consensus.Hash256) (*big.Int, error) {
	idx, ok, err := store.GetIndex(hash)
	if err != nil {
		return nil, consensus.WrapError(consensus.KindStorage, "read_index", err)
	}
	if !ok {
		return nil, consensus.NewError(consensus.KindStorage, "missing_index")
	}
	w, ok := new(big.Int).SetString(idx.CumulativeWorkDec, 10)
	if !ok {
		return nil, consensus.NewError(consensus.KindStorage, "corrupt_cumulative_work")
	}
	return w, nil
}

func (m *Manager) findForkPoint(a, b consensus.Hash256) (consensus.Hash256, error) {
	ia, ok, err := m.store.GetIndex(a)
	if err != nil {
		return consensus.Hash256{}, consensus.WrapError(consensus.KindStorage, "read_index", err)
	}
	if !ok {
		return consensus.Hash256{}, consensus.NewError(consensus.KindStorage, "missing_index")
	}
	ib, ok, err := m.store.GetIndex(b)
	if err != nil {
		return consensus.Hash256{}, consensus.WrapError(consensus.KindStorage, "read_index", err)
	}
	if !ok {
		return consensus.Hash256{}, consensus.NewError(consensus.KindStorage, "missing_index")
	}
	for ia.Height > ib.Height {
		a = ia.ParentHash
		ia, ok, err = m.store.GetIndex(a)
		if err != nil {
			return consensus.Hash256{}, consensus.WrapError(consensus.KindStorage, "read_index", err)
		}
		if !ok {
			return consensus.Hash256{}, consensus.NewError(consensus.KindStorage, "missing_index")
		}
	}
	for ib.Height > ia.Height {
		b = ib.ParentHash
		ib, ok, err = m.store.GetIndex(b)
		if err != nil {
			return consensus.Hash256{}, consensus.WrapError(consensus.KindStorage, "read_index", err)
		}
		if !ok {
			return consensus.Hash256{}, consensus.NewError(consensus.KindStorage, "missing_index")
		}
	}
	for a != b {
		a = ia.ParentHash
		b = ib.ParentHash
		ia, ok, err = m.store.GetIndex(a)
		if err != nil {
			return consensus.Hash256{}, consensus.WrapError(consensus.KindStorage, "read_index", err)
		}
		if !ok {
			return consensus.Hash256{}, consensus.NewError(consensus.KindStorage, "missing_index")
		}
		ib, ok, err = m.store.GetIndex(b)
		if err != nil {
			return consensus.Hash256{}, consensus.WrapError(consensus.KindStorage, "read_index", err)
		}
		if !ok {
			return consensus.Hash256{}, consensus.NewError(consensus.KindStorage, "missing_index")
		}
	}
	return a, nil
}

func (m *Manager) pathFromAncestor(ancestor, tip consensus.Hash256) ([]consensus.Hash256, error) {
	if ancestor == tip {
		return nil, nil
	}
	cur := tip
	out := make([]consensus.Hash256, 0, 16)
	for cur != ancestor {
		out = append(out, cur)
		idx, ok, err := m.store.GetIndex(cur)
		if err != nil {
			return nil, consensus.WrapError(consensus.KindStorage, "read_index", err)
		}
		if !ok {
			return nil, consensus.NewError(consensus.KindStorage, "missing_index")
		}
		cur = idx.ParentHash
		if cur == consensus.ZeroHash && ancestor != consensus.ZeroHash {
			return nil, consensus.NewError(consensus.KindStorage, "fork_point_not_found")
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
