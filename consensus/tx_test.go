package consensus

import (
	"crypto/ed25519"
	"testing"
)

type fakeView struct {
	outs      map[Outpoint]TxOut
	coinbase  map[Outpoint]uint64
}

func newFakeView() *fakeView {
	return &fakeView{outs: make(map[Outpoint]TxOut), coinbase: make(map[Outpoint]uint64)}
}

func (v *fakeView) Get(p Outpoint) (TxOut, bool) {
	o, ok := v.outs[p]
	return o, ok
}

func (v *fakeView) CoinbaseCreationHeight(p Outpoint) (uint64, bool, bool) {
	h, ok := v.coinbase[p]
	return h, ok, ok
}

func signedTx(t *testing.T, priv ed25519.PrivateKey, pub ed25519.PublicKey, in Outpoint, outs []TxOut) *Tx {
	t.Helper()
	tx := &Tx{
		Inputs: []TxIn{{PrevTxHash: in.TxHash, PrevTxOutIndex: in.Index}},
		Outputs: outs,
	}
	digest := SHA256d(tx.SigningHeader())
	sig := Sign(priv, digest)
	copy(tx.Inputs[0].Signature[:], sig)
	copy(tx.Inputs[0].PublicKey[:], pub)
	tx.ID = ComputeTxID(tx)
	return tx
}

func TestValidTransaction_CoinbaseSkipsSignature(t *testing.T) {
	coinbase := &Tx{
		Inputs:  []TxIn{{PrevTxHash: ZeroHash, PrevTxOutIndex: 0xffffffff}},
		Outputs: []TxOut{{Amount: 50, Address: Address{}}},
	}
	coinbase.ID = ComputeTxID(coinbase)
	if err := ValidTransaction(coinbase); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidTransaction_RejectsBadSignature(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	addr := DeriveAddress(pub)
	tx := signedTx(t, priv, pub, Outpoint{TxHash: SHA256d([]byte("prev")), Index: 0}, []TxOut{{Amount: 10, Address: addr}})
	tx.Inputs[0].Signature[0] ^= 0xff
	if err := ValidTransaction(tx); err == nil {
		t.Fatalf("expected signature failure")
	}
}

func TestValidTransaction_RejectsDuplicateInput(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	addr := DeriveAddress(pub)
	prev := Outpoint{TxHash: SHA256d([]byte("prev")), Index: 0}
	tx := &Tx{
		Inputs: []TxIn{
			{PrevTxHash: prev.TxHash, PrevTxOutIndex: prev.Index},
			{PrevTxHash: prev.TxHash, PrevTxOutIndex: prev.Index},
		},
		Outputs: []TxOut{{Amount: 10, Address: addr}},
	}
	digest := SHA256d(tx.SigningHeader())
	sig := Sign(priv, digest)
	copy(tx.Inputs[0].Signature[:], sig)
	copy(tx.Inputs[0].PublicKey[:], pub)
	copy(tx.Inputs[1].Signature[:], sig)
	copy(tx.Inputs[1].PublicKey[:], pub)
	tx.ID = ComputeTxID(tx)
	if err := ValidTransaction(tx); err == nil {
		t.Fatalf("expected duplicate input rejection")
	}
}

func TestValidateAgainstView_SpendAndFee(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	addr := DeriveAddress(pub)
	prev := Outpoint{TxHash: SHA256d([]byte("coinbase")), Index: 0}

	view := newFakeView()
	view.outs[prev] = TxOut{Amount: 100, Address: addr}
	view.coinbase[prev] = 0

	destPub, _, _ := ed25519.GenerateKey(nil)
	destAddr := DeriveAddress(destPub)
	tx := signedTx(t, priv, pub, prev, []TxOut{{Amount: 90, Address: destAddr}})

	fee, err := ValidateAgainstView(tx, view, CoinbaseMaturity+1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fee != 10 {
		t.Fatalf("expected fee 10, got %d", fee)
	}
}

func TestValidateAgainstView_RejectsImmatureCoinbase(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	addr := DeriveAddress(pub)
	prev := Outpoint{TxHash: SHA256d([]byte("coinbase")), Index: 0}

	view := newFakeView()
	view.outs[prev] = TxOut{Amount: 100, Address: addr}
	view.coinbase[prev] = 10

	tx := signedTx(t, priv, pub, prev, []TxOut{{Amount: 90, Address: addr}})
	if _, err := ValidateAgainstView(tx, view, 11); err == nil {
		t.Fatalf("expected immaturity rejection")
	}
}

func TestValidateAgainstView_RejectsOutputsExceedInputs(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	addr := DeriveAddress(pub)
	prev := Outpoint{TxHash: SHA256d([]byte("coinbase")), Index: 0}

	view := newFakeView()
	view.outs[prev] = TxOut{Amount: 10, Address: addr}
	view.coinbase[prev] = 0

	tx := signedTx(t, priv, pub, prev, []TxOut{{Amount: 20, Address: addr}})
	if _, err := ValidateAgainstView(tx, view, CoinbaseMaturity+1); err == nil {
		t.Fatalf("expected outputs-exceed-inputs rejection")
	}
}
