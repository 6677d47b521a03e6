package storage

import (
	"testing"

	"vulkan.dev/core/consensus"
)

func TestUndoRecordCodec_RoundTrip(t *testing.T) {
	removedOp := consensus.Outpoint{TxHash: consensus.SHA256d([]byte("spent")), Index: 1}
	createdOp := consensus.Outpoint{TxHash: consensus.SHA256d([]byte("created")), Index: 0}

	u := UndoRecord{
		Removed: []RemovedOutput{{Outpoint: removedOp, Entry: UtxoEntry{Output: consensus.TxOut{Amount: 5}, CreationHeight: 3}}},
		Created: []consensus.Outpoint{createdOp},
	}

	decoded, err := DecodeUndoRecord(EncodeUndoRecord(u))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded.Removed) != 1 || decoded.Removed[0].Outpoint != removedOp {
		t.Fatalf("removed mismatch: %+v", decoded.Removed)
	}
	if decoded.Removed[0].Entry.Output.Amount != 5 {
		t.Fatalf("removed entry amount mismatch: %+v", decoded.Removed[0].Entry)
	}
	if len(decoded.Created) != 1 || decoded.Created[0] != createdOp {
		t.Fatalf("created mismatch: %+v", decoded.Created)
	}
}

func TestMemStore_ApplyThenUndo_RestoresUTXOSet(t *testing.T) {
	store := NewMemStore()

	coinbaseOutpoint := consensus.Outpoint{TxHash: consensus.SHA256d([]byte("genesis-coinbase")), Index: 0}
	genesisHash := consensus.SHA256d([]byte("genesis"))
	err := store.ApplyBlock(genesisHash, 0, nil, []RemovedOutput{
		{Outpoint: coinbaseOutpoint, Entry: UtxoEntry{Output: consensus.TxOut{Amount: 50}, FromCoinbase: true}},
	}, IndexEntry{Height: 0, Status: StatusValid, CumulativeWorkDec: "1"})
	if err != nil {
		t.Fatalf("apply genesis: %v", err)
	}

	preState, ok, _ := store.GetUTXO(coinbaseOutpoint)
	if !ok {
		t.Fatalf("expected coinbase outpoint present after genesis apply")
	}

	spendOutpoint := consensus.Outpoint{TxHash: consensus.SHA256d([]byte("spend-tx")), Index: 0}
	blockHash := consensus.SHA256d([]byte("block-1"))
	err = store.ApplyBlock(blockHash, 1, []consensus.Outpoint{coinbaseOutpoint}, []RemovedOutput{
		{Outpoint: spendOutpoint, Entry: UtxoEntry{Output: consensus.TxOut{Amount: 45}}},
	}, IndexEntry{Height: 1, ParentHash: genesisHash, Status: StatusValid, CumulativeWorkDec: "2"})
	if err != nil {
		t.Fatalf("apply block 1: %v", err)
	}

	if _, ok, _ := store.GetUTXO(coinbaseOutpoint); ok {
		t.Fatalf("expected coinbase outpoint spent after block 1")
	}
	if _, ok, _ := store.GetUTXO(spendOutpoint); !ok {
		t.Fatalf("expected spend output present after block 1")
	}

	if err := store.UndoBlock(blockHash, genesisHash, 0); err != nil {
		t.Fatalf("undo block 1: %v", err)
	}

	if _, ok, _ := store.GetUTXO(spendOutpoint); ok {
		t.Fatalf("expected spend output gone after undo")
	}
	postState, ok, _ := store.GetUTXO(coinbaseOutpoint)
	if !ok {
		t.Fatalf("expected coinbase outpoint restored after undo")
	}
	if postState != preState {
		t.Fatalf("restored entry does not byte-equal its pre-spend state: got %+v want %+v", postState, preState)
	}

	tipHash, tipHeight, hasTip, _ := store.Tip()
	if !hasTip || tipHash != genesisHash || tipHeight != 0 {
		t.Fatalf("expected tip rolled back to genesis, got hash=%x height=%d", tipHash, tipHeight)
	}
}
