package chain

import (
	"testing"

	"github.com/stretchr/testify/require"

	"vulkan.dev/core/consensus"
	"vulkan.dev/core/storage"
)

func newTestManager(t *testing.T) (*Manager, storage.Store) {
	t.Helper()
	store := storage.NewMemStore()
	cfg := Config{Network: "devnet", DataDir: t.TempDir(), LogLevel: "info", MempoolMaxBytes: consensus.MempoolMaxBytes, IngressQueueDepth: 16, MaxOrphans: 10}
	m := NewManager(store, cfg, nil)
	require.NoError(t, m.InitGenesis())
	return m, store
}

// mineOn finds a nonce producing a hash satisfying MaxTarget (the expansion
// of bits 0x1e00ffff: three zero bytes, then 0xffff, then zero bytes) for a
// coinbase-only block extending prevHash at height.
func mineOn(t *testing.T, prevHash consensus.Hash256, height uint64, timestamp uint32) *consensus.Block {
	t.Helper()
	subsidy := consensus.BaseSubsidy(height)
	coinbase := consensus.Tx{
		Inputs:  []consensus.TxIn{{PrevTxHash: consensus.ZeroHash, PrevTxOutIndex: 0xffffffff}},
		Outputs: []consensus.TxOut{{Amount: subsidy, Address: consensus.Address{consensus.AddressVersion}}},
	}
	coinbase.ID = consensus.ComputeTxID(&coinbase)
	root, err := consensus.MerkleRoot([]consensus.Hash256{coinbase.ID})
	require.NoError(t, err)

	header := consensus.BlockHeader{
		Version:            consensus.BlockVersion,
		Timestamp:          timestamp,
		Bits:               0x1e00ffff,
		CumulativeEmission: subsidy,
		PreviousHash:       prevHash,
		MerkleRoot:         root,
	}
	for nonce := uint32(0); ; nonce++ {
		header.Nonce = nonce
		hash := consensus.ComputeBlockHash(&header)
		if consensus.CheckProofOfWork(hash, consensus.MaxTarget) == nil {
			return &consensus.Block{Header: header, Hash: hash, Transactions: []consensus.Tx{coinbase}}
		}
	}
}

func TestManager_InitGenesis_Idempotent(t *testing.T) {
	m, store := newTestManager(t)
	tip, height, ok, err := store.Tip()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(0), height)
	require.Equal(t, consensus.Genesis().Hash, tip)

	require.NoError(t, m.InitGenesis())
	tip2, height2, _, _ := store.Tip()
	require.Equal(t, tip, tip2)
	require.Equal(t, height, height2)
}

func TestManager_SubmitBlock_ExtendsTip(t *testing.T) {
	m, store := newTestManager(t)
	genesis := consensus.Genesis()

	block := mineOn(t, genesis.Hash, 1, genesis.Header.Timestamp+60)
	require.NoError(t, m.SubmitBlock(block))

	tip, height, ok, err := store.Tip()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(1), height)
	require.Equal(t, block.Hash, tip)
}

func TestManager_SubmitBlock_RejectsTamperedBlock(t *testing.T) {
	m, _ := newTestManager(t)
	genesis := consensus.Genesis()

	block := mineOn(t, genesis.Hash, 1, genesis.Header.Timestamp+60)
	block.Header.MerkleRoot[0] ^= 0xff
	err := m.SubmitBlock(block)
	require.Error(t, err)
}

func TestManager_SubmitBlock_BuffersOrphan(t *testing.T) {
	m, store := newTestManager(t)
	genesis := consensus.Genesis()

	unknownParent := consensus.SHA256d([]byte("nonexistent"))
	orphan := mineOn(t, unknownParent, 1, genesis.Header.Timestamp+60)
	require.NoError(t, m.SubmitBlock(orphan))

	_, height, _, _ := store.Tip()
	require.Equal(t, uint64(0), height, "orphan must not advance the tip")

	_, ok := m.orphans[orphan.Hash]
	require.True(t, ok, "orphan should be buffered")
}

func TestManager_SubmitBlock_ConnectsBufferedOrphanOnParentArrival(t *testing.T) {
	m, store := newTestManager(t)
	genesis := consensus.Genesis()

	block1 := mineOn(t, genesis.Hash, 1, genesis.Header.Timestamp+60)
	block2 := mineOn(t, block1.Hash, 2, genesis.Header.Timestamp+120)

	// Submit the child before its parent: it buffers as an orphan.
	require.NoError(t, m.SubmitBlock(block2))
	_, height, _, _ := store.Tip()
	require.Equal(t, uint64(0), height)

	// Submitting the parent should connect both.
	require.NoError(t, m.SubmitBlock(block1))
	_, height, _, _ = store.Tip()
	require.Equal(t, uint64(2), height, "orphan should connect once its parent arrives")
}

func TestManager_Reorg_SwitchesToHeavierBranch(t *testing.T) {
	m, store := newTestManager(t)
	genesis := consensus.Genesis()

	// Active branch: genesis -> a (height 1).
	a := mineOn(t, genesis.Hash, 1, genesis.Header.Timestamp+60)
	require.NoError(t, m.SubmitBlock(a))

	// Competing branch: genesis -> b (height 1) -> c (height 2), heavier.
	b := mineOn(t, genesis.Hash, 1, genesis.Header.Timestamp+61)
	require.NoError(t, m.SubmitBlock(b))

	tip, _, _, _ := store.Tip()
	require.Equal(t, a.Hash, tip, "equal-work alt branch must not dethrone the active tip")

	c := mineOn(t, b.Hash, 2, genesis.Header.Timestamp+120)
	require.NoError(t, m.SubmitBlock(c))

	tip, height, _, _ := store.Tip()
	require.Equal(t, c.Hash, tip, "heavier branch should become the new tip")
	require.Equal(t, uint64(2), height)
}

func TestManager_SubmitTx_RejectsUnsignedImmatureCoinbaseSpend(t *testing.T) {
	m, _ := newTestManager(t)
	genesis := consensus.Genesis()

	block := mineOn(t, genesis.Hash, 1, genesis.Header.Timestamp+60)
	require.NoError(t, m.SubmitBlock(block))

	// An unsigned spend of block's not-yet-mature coinbase: mempool
	// admission must reject it (the signature check is the first to fail).
	coinbase := &block.Transactions[0]
	prev := consensus.Outpoint{TxHash: coinbase.ID, Index: 0}
	tx := consensus.Tx{
		Inputs:  []consensus.TxIn{{PrevTxHash: prev.TxHash, PrevTxOutIndex: prev.Index}},
		Outputs: []consensus.TxOut{{Amount: 1, Address: consensus.Address{consensus.AddressVersion}}},
	}
	tx.ID = consensus.ComputeTxID(&tx)
	err := m.SubmitTx(&tx)
	require.Error(t, err, "spending an immature coinbase must be rejected")
}
