package consensus

import (
	"bytes"
	"crypto/ed25519"
	"testing"
)

func TestEncodeDecodeTx_RoundTrip(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	addr := DeriveAddress(pub)
	prev := Outpoint{TxHash: SHA256d([]byte("prev")), Index: 3}

	tx := &Tx{
		Inputs:  []TxIn{{PrevTxHash: prev.TxHash, PrevTxOutIndex: prev.Index}},
		Outputs: []TxOut{{Amount: 42, Address: addr}, {Amount: 8, Address: addr}},
	}
	digest := SHA256d(tx.SigningHeader())
	sig := Sign(priv, digest)
	copy(tx.Inputs[0].Signature[:], sig)
	copy(tx.Inputs[0].PublicKey[:], pub)
	tx.ID = ComputeTxID(tx)

	encoded := EncodeTx(tx)
	decoded, err := DecodeTx(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.ID != tx.ID {
		t.Fatalf("id mismatch after round-trip")
	}
	if len(decoded.Outputs) != 2 || decoded.Outputs[0].Amount != 42 || decoded.Outputs[1].Amount != 8 {
		t.Fatalf("outputs mismatch after round-trip: %+v", decoded.Outputs)
	}
	if decoded.Inputs[0].PrevTxOutIndex != 3 {
		t.Fatalf("input index mismatch after round-trip")
	}
}

func TestDecodeTx_RejectsTrailingBytes(t *testing.T) {
	pub, _, _ := ed25519.GenerateKey(nil)
	addr := DeriveAddress(pub)
	tx := &Tx{
		Inputs:  []TxIn{{PrevTxHash: ZeroHash, PrevTxOutIndex: 0xffffffff}},
		Outputs: []TxOut{{Amount: 1, Address: addr}},
	}
	tx.ID = ComputeTxID(tx)

	encoded := append(EncodeTx(tx), 0x00)
	if _, err := DecodeTx(encoded); err == nil {
		t.Fatalf("expected trailing-bytes rejection")
	}
}

func TestDecodeTx_RejectsTruncated(t *testing.T) {
	pub, _, _ := ed25519.GenerateKey(nil)
	addr := DeriveAddress(pub)
	tx := &Tx{
		Inputs:  []TxIn{{PrevTxHash: ZeroHash, PrevTxOutIndex: 0xffffffff}},
		Outputs: []TxOut{{Amount: 1, Address: addr}},
	}
	tx.ID = ComputeTxID(tx)

	encoded := EncodeTx(tx)
	if _, err := DecodeTx(encoded[:len(encoded)-1]); err == nil {
		t.Fatalf("expected truncated-input rejection")
	}
}

func TestEncodeDecodeBlock_RoundTrip(t *testing.T) {
	pub, _, _ := ed25519.GenerateKey(nil)
	addr := DeriveAddress(pub)
	coinbase := Tx{
		Inputs:  []TxIn{{PrevTxHash: ZeroHash, PrevTxOutIndex: 0xffffffff}},
		Outputs: []TxOut{{Amount: 50_00000000, Address: addr}},
	}
	coinbase.ID = ComputeTxID(&coinbase)

	root, err := MerkleRoot(txIDs([]Tx{coinbase}))
	if err != nil {
		t.Fatalf("merkle root: %v", err)
	}
	header := BlockHeader{Version: 1, Timestamp: 1000, Bits: 0x1e00ffff, CumulativeEmission: 50_00000000, PreviousHash: ZeroHash, MerkleRoot: root}
	block := &Block{Header: header, Hash: ComputeBlockHash(&header), Transactions: []Tx{coinbase}}

	encoded := EncodeBlock(block)
	decoded, err := DecodeBlock(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Hash != block.Hash {
		t.Fatalf("hash mismatch after round-trip")
	}
	if !bytes.Equal(HeaderBytes(&decoded.Header), HeaderBytes(&block.Header)) {
		t.Fatalf("header mismatch after round-trip")
	}
	if len(decoded.Transactions) != 1 || decoded.Transactions[0].ID != coinbase.ID {
		t.Fatalf("transactions mismatch after round-trip")
	}
}

func TestDecodeBlock_RejectsEmptyTransactionList(t *testing.T) {
	header := BlockHeader{Version: 1, PreviousHash: ZeroHash, MerkleRoot: ZeroHash}
	out := make([]byte, 0)
	out = append(out, HeaderBytes(&header)...)
	out = append(out, ZeroHash[:]...)
	out = appendU32LE(out, 0)
	if _, err := DecodeBlock(out); err == nil {
		t.Fatalf("expected rejection of zero-transaction block")
	}
}
